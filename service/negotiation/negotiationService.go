// Package negotiation drives a book from available through proposal, owner
// decision and active rental to returned. Every transition is also recorded
// as a system message in the thread.
package negotiation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookshare/model"
	bookrepo "bookshare/repository/book"
	messagerepo "bookshare/repository/message"
	rentalrepo "bookshare/repository/rental"
	threadrepo "bookshare/repository/thread"
	"bookshare/service/availability"
	"bookshare/service/errs"
	"bookshare/util/database"
	"bookshare/util/inflight"
)

// Recomputer refreshes the availability projection of a book.
type Recomputer interface {
	Recompute(ctx context.Context, bookID string) (availability.Availability, error)
}

type StartInput struct {
	BookID        string
	CounterpartID string
	Text          string
	From          *time.Time
	To            *time.Time
}

// Navigation asks the client to open the thread view for Counterpart about
// Book.
type Navigation struct {
	ThreadID      string `json:"thread_id"`
	BookID        string `json:"book_id"`
	CounterpartID string `json:"counterpart_id"`
}

type Started struct {
	Thread     model.Thread    `json:"thread"`
	Messages   []model.Message `json:"messages"`
	Navigation Navigation      `json:"navigation"`
}

type Service interface {
	StartThread(ctx context.Context, callerID string, in StartInput) (*Started, error)
	SendReply(ctx context.Context, callerID, threadID, text string) (*model.Message, error)
	AgreeOnRent(ctx context.Context, callerID, threadID string) (*model.Rental, error)
	DisagreeOnRent(ctx context.Context, callerID, threadID string) error
	// CloseDiscussion is idempotent; closing a closed thread writes nothing.
	CloseDiscussion(ctx context.Context, callerID, threadID string) error
	FinishRental(ctx context.Context, callerID, bookID string) (*model.Rental, error)
	// RemindReturn asks the borrower to agree on a new return date.
	RemindReturn(ctx context.Context, callerID, bookID string) error
}

type Deps struct {
	Books     bookrepo.Repo
	Threads   threadrepo.Repo
	Messages  messagerepo.Repo
	Rentals   rentalrepo.Repo
	Guard     inflight.Guard
	Projector Recomputer
	Log       *slog.Logger
	Now       func() time.Time
}

type service struct {
	books     bookrepo.Repo
	threads   threadrepo.Repo
	messages  messagerepo.Repo
	rentals   rentalrepo.Repo
	guard     inflight.Guard
	projector Recomputer
	log       *slog.Logger
	now       func() time.Time
	ids       *idGen
}

func New(d Deps) Service {
	s := &service{
		books:     d.Books,
		threads:   d.Threads,
		messages:  d.Messages,
		rentals:   d.Rentals,
		guard:     d.Guard,
		projector: d.Projector,
		log:       d.Log,
		now:       d.Now,
		ids:       newIDGen(),
	}
	if s.guard == nil {
		s.guard = inflight.NewLocal()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// acquire takes the in-flight slot for op on id.
func (s *service) acquire(ctx context.Context, op, id string) (func(), error) {
	release, err := s.guard.Acquire(ctx, op+":"+id)
	if errors.Is(err, inflight.ErrBusy) {
		return nil, errs.Conflict(errs.ErrInFlight, op+" already in progress")
	}
	if err != nil {
		return nil, errs.Unavailable(err)
	}
	return release, nil
}

func (s *service) StartThread(ctx context.Context, callerID string, in StartInput) (*Started, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, errs.Validation(errs.ErrEmptyText, "message text is required")
	}
	if in.BookID == "" {
		return nil, errs.Validation(errs.ErrInvalidInput, "book id is required")
	}
	win := model.Window{From: in.From, To: in.To}
	if win.From != nil && win.To != nil && win.From.After(*win.To) {
		return nil, errs.Validation(errs.ErrBadWindow, "rent start is after rent end")
	}

	book, err := s.books.ByID(ctx, in.BookID)
	if err != nil {
		return nil, errs.Store(err, errs.ErrBookNotFound)
	}
	if book.OwnerID == "" {
		return nil, errs.Validation(errs.ErrNoOwner, "book has no owner")
	}

	other := callerID
	if callerID == book.OwnerID {
		other = in.CounterpartID
		if other == "" {
			return nil, errs.Validation(errs.ErrInvalidInput, "counterpart is required")
		}
	}
	if other == book.OwnerID {
		return nil, errs.Validation(errs.ErrSelfThread, "cannot start a thread with yourself")
	}

	release, err := s.acquire(ctx, "start", book.ID+":"+other)
	if err != nil {
		return nil, err
	}
	defer release()

	th, err := s.resolveThread(ctx, book, other)
	if err != nil {
		return nil, err
	}
	recipient := th.Counterpart(callerID)
	out := &Started{
		Thread:     *th,
		Navigation: Navigation{ThreadID: th.ID, BookID: book.ID, CounterpartID: recipient},
	}

	// the proposal goes first so a retried call sees it
	proposed := false
	if !win.IsZero() && th.Decision == model.DecisionNone {
		dup, err := s.hasProposal(ctx, th.ID, win)
		if err != nil {
			return nil, err
		}
		if !dup {
			w := win
			msg, err := s.insert(ctx, th.ID, callerID, recipient, model.KindSystem, model.EventProposal, &w, model.SystemBody(model.EventProposal, w))
			if err != nil {
				return nil, err
			}
			out.Messages = append(out.Messages, *msg)
			proposed = true
		}
	}

	msg, err := s.insert(ctx, th.ID, callerID, recipient, model.KindChat, "", nil, text)
	if err != nil {
		if proposed {
			s.log.Warn("chat message after proposal not stored", "thread_id", th.ID, "err", err)
			s.recompute(ctx, book.ID)
		}
		return nil, err
	}
	out.Messages = append(out.Messages, *msg)
	s.touch(ctx, th.ID)
	if proposed {
		s.recompute(ctx, book.ID)
	}
	return out, nil
}

// resolveThread returns the open thread of the triple, creating it when
// missing. A concurrent create is resolved by re-reading the winner.
func (s *service) resolveThread(ctx context.Context, book *model.Book, other string) (*model.Thread, error) {
	th, err := s.threads.FindOpen(ctx, book.ID, book.OwnerID, other)
	if err == nil {
		return th, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, errs.Unavailable(err)
	}
	th = &model.Thread{
		ID:          uuid.NewString(),
		BookID:      book.ID,
		OwnerID:     book.OwnerID,
		OtherUserID: other,
		UpdatedAt:   s.now(),
	}
	err = s.threads.Create(ctx, th)
	if errors.Is(err, database.ErrDuplicate) {
		th, err = s.threads.FindOpen(ctx, book.ID, book.OwnerID, other)
	}
	if err != nil {
		return nil, errs.Unavailable(err)
	}
	return th, nil
}

func (s *service) hasProposal(ctx context.Context, threadID string, w model.Window) (bool, error) {
	msgs, err := s.messages.ByThread(ctx, threadID)
	if err != nil {
		return false, errs.Unavailable(err)
	}
	for _, m := range msgs {
		if m.Kind == model.KindSystem && m.Event == model.EventProposal && m.Window != nil && m.Window.Equal(w) {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) SendReply(ctx context.Context, callerID, threadID, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errs.Validation(errs.ErrEmptyText, "message text is required")
	}
	release, err := s.acquire(ctx, "reply", threadID)
	if err != nil {
		return nil, err
	}
	defer release()

	th, err := s.threads.ByID(ctx, threadID)
	if errors.Is(err, database.ErrNotFound) {
		return s.replyToHead(ctx, callerID, threadID, text)
	}
	if err != nil {
		return nil, errs.Unavailable(err)
	}
	if !th.HasParticipant(callerID) {
		return nil, errs.Authorization(errs.ErrNotMember, "not a participant of this thread")
	}
	if th.IsClosed {
		return nil, errs.Conflict(errs.ErrThreadClosed, "discussion is closed")
	}
	msg, err := s.insert(ctx, th.ID, callerID, th.Counterpart(callerID), model.KindChat, "", nil, text)
	if err != nil {
		return nil, err
	}
	s.touch(ctx, th.ID)
	return msg, nil
}

// replyToHead answers a thread that has no thread record, only a head
// message whose id is the thread id.
func (s *service) replyToHead(ctx context.Context, callerID, headID, text string) (*model.Message, error) {
	head, err := s.messages.ByID(ctx, headID)
	if err != nil {
		return nil, errs.Store(err, errs.ErrThreadMissing)
	}
	if head.ThreadID != nil && *head.ThreadID != head.ID {
		return nil, errs.NotFound(errs.ErrThreadMissing, "thread not found")
	}
	var recipient string
	switch callerID {
	case head.SenderID:
		recipient = head.RecipientID
	case head.RecipientID:
		recipient = head.SenderID
	default:
		return nil, errs.Authorization(errs.ErrNotMember, "not a participant of this thread")
	}
	return s.insert(ctx, head.ID, callerID, recipient, model.KindChat, "", nil, text)
}

// ownedThread loads threadID and checks that callerID owns it.
func (s *service) ownedThread(ctx context.Context, callerID, threadID string) (*model.Thread, error) {
	th, err := s.threads.ByID(ctx, threadID)
	if err != nil {
		return nil, errs.Store(err, errs.ErrThreadMissing)
	}
	if th.OwnerID != callerID {
		return nil, errs.Authorization(errs.ErrNotOwner, "only the owner can do this")
	}
	return th, nil
}

func (s *service) AgreeOnRent(ctx context.Context, callerID, threadID string) (*model.Rental, error) {
	release, err := s.acquire(ctx, "agree", threadID)
	if err != nil {
		return nil, err
	}
	defer release()

	th, err := s.ownedThread(ctx, callerID, threadID)
	if err != nil {
		return nil, err
	}
	if th.IsClosed {
		return nil, errs.Conflict(errs.ErrThreadClosed, "discussion is closed")
	}
	if th.Decision != model.DecisionNone {
		return nil, errs.Conflict(errs.ErrDecisionMade, "a decision was already made")
	}
	if _, err := s.rentals.ActiveByBook(ctx, th.BookID); err == nil {
		return nil, errs.Conflict(errs.ErrRentActive, "book is already rented")
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, errs.Unavailable(err)
	}

	rent := &model.Rental{
		ID:        uuid.NewString(),
		BookID:    th.BookID,
		BookOwner: th.OwnerID,
		Borrower:  th.OtherUserID,
		ThreadID:  &th.ID,
	}
	prop, err := s.messages.LatestProposal(ctx, th.ID)
	switch {
	case err == nil && prop.Window != nil:
		rent.RentFrom, rent.RentTo = prop.Window.From, prop.Window.To
	case err != nil && !errors.Is(err, database.ErrNotFound):
		return nil, errs.Unavailable(err)
	}

	err = s.rentals.CreateAgreed(ctx, rent, th.ID)
	switch {
	case errors.Is(err, database.ErrConflict):
		return nil, errs.Conflict(errs.ErrDecisionMade, "a decision was already made")
	case errors.Is(err, database.ErrDuplicate):
		return nil, errs.Conflict(errs.ErrRentActive, "book is already rented")
	case err != nil:
		return nil, errs.Unavailable(err)
	}

	s.notify(ctx, th, th.OwnerID, th.OtherUserID, model.EventAgreed)
	s.recompute(ctx, th.BookID)
	return rent, nil
}

func (s *service) DisagreeOnRent(ctx context.Context, callerID, threadID string) error {
	release, err := s.acquire(ctx, "disagree", threadID)
	if err != nil {
		return err
	}
	defer release()

	th, err := s.ownedThread(ctx, callerID, threadID)
	if err != nil {
		return err
	}
	if th.IsClosed {
		return errs.Conflict(errs.ErrThreadClosed, "discussion is closed")
	}
	if th.Decision != model.DecisionNone {
		return errs.Conflict(errs.ErrDecisionMade, "a decision was already made")
	}

	err = s.threads.RecordDecision(ctx, th.ID, model.DecisionRefused, s.now())
	if errors.Is(err, database.ErrConflict) {
		return errs.Conflict(errs.ErrDecisionMade, "a decision was already made")
	}
	if err != nil {
		return errs.Unavailable(err)
	}

	s.notify(ctx, th, th.OwnerID, th.OtherUserID, model.EventRefused)
	s.recompute(ctx, th.BookID)
	return nil
}

func (s *service) CloseDiscussion(ctx context.Context, callerID, threadID string) error {
	release, err := s.acquire(ctx, "close", threadID)
	if err != nil {
		return err
	}
	defer release()

	th, err := s.ownedThread(ctx, callerID, threadID)
	if err != nil {
		return err
	}
	wasOpen, err := s.threads.Close(ctx, th.ID, s.now())
	if err != nil {
		return errs.Unavailable(err)
	}
	if !wasOpen {
		return nil
	}
	s.notify(ctx, th, th.OwnerID, th.OtherUserID, model.EventClosed)
	s.recompute(ctx, th.BookID)
	return nil
}

// ownedBook loads bookID and checks that callerID owns it.
func (s *service) ownedBook(ctx context.Context, callerID, bookID string) (*model.Book, error) {
	book, err := s.books.ByID(ctx, bookID)
	if err != nil {
		return nil, errs.Store(err, errs.ErrBookNotFound)
	}
	if book.OwnerID != callerID {
		return nil, errs.Authorization(errs.ErrNotOwner, "only the owner can do this")
	}
	return book, nil
}

func (s *service) FinishRental(ctx context.Context, callerID, bookID string) (*model.Rental, error) {
	release, err := s.acquire(ctx, "finish", bookID)
	if err != nil {
		return nil, err
	}
	defer release()

	book, err := s.ownedBook(ctx, callerID, bookID)
	if err != nil {
		return nil, err
	}
	rent, err := s.rentals.Finish(ctx, book.ID)
	if err != nil {
		return nil, errs.Store(err, errs.ErrNoActiveRent)
	}

	if th, err := s.rentalThread(ctx, rent); err != nil {
		s.log.Warn("return confirmation not sent", "book_id", book.ID, "rental_id", rent.ID, "err", err)
	} else {
		s.notify(ctx, th, rent.BookOwner, rent.Borrower, model.EventReturned)
	}
	s.recompute(ctx, book.ID)
	return rent, nil
}

func (s *service) RemindReturn(ctx context.Context, callerID, bookID string) error {
	release, err := s.acquire(ctx, "remind", bookID)
	if err != nil {
		return err
	}
	defer release()

	book, err := s.ownedBook(ctx, callerID, bookID)
	if err != nil {
		return err
	}
	rent, err := s.rentals.ActiveByBook(ctx, book.ID)
	if err != nil {
		return errs.Store(err, errs.ErrNoActiveRent)
	}
	th, err := s.rentalThread(ctx, rent)
	if err != nil {
		return errs.Store(err, errs.ErrThreadMissing)
	}

	if _, err := s.insertSystem(ctx, th.ID, rent.BookOwner, rent.Borrower, model.EventReturnReminder); err != nil {
		return err
	}
	if _, err := s.insertSystem(ctx, th.ID, rent.BookOwner, rent.BookOwner, model.EventReturnReminderAck); err != nil {
		s.log.Warn("reminder acknowledgement not stored", "thread_id", th.ID, "err", err)
	}
	s.touch(ctx, th.ID)
	return nil
}

// rentalThread is the thread the rental was agreed in, or the latest thread
// between its owner and borrower for rentals created without one.
func (s *service) rentalThread(ctx context.Context, rent *model.Rental) (*model.Thread, error) {
	if rent.ThreadID != nil {
		th, err := s.threads.ByID(ctx, *rent.ThreadID)
		if err == nil {
			return th, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}
	return s.threads.Latest(ctx, rent.BookID, rent.BookOwner, rent.Borrower)
}

// notify appends the system message for ev. The state change it reports is
// already committed, so a failure is only logged.
func (s *service) notify(ctx context.Context, th *model.Thread, from, to string, ev model.Event) {
	if _, err := s.insertSystem(ctx, th.ID, from, to, ev); err != nil {
		s.log.Warn("system message not stored", "thread_id", th.ID, "event", ev, "err", err)
		return
	}
	s.touch(ctx, th.ID)
}

func (s *service) insertSystem(ctx context.Context, threadID, from, to string, ev model.Event) (*model.Message, error) {
	return s.insert(ctx, threadID, from, to, model.KindSystem, ev, nil, model.SystemBody(ev, model.Window{}))
}

func (s *service) insert(ctx context.Context, threadID, from, to string, kind model.MessageKind, ev model.Event, w *model.Window, body string) (*model.Message, error) {
	now := s.now()
	id, err := s.ids.next(now)
	if err != nil {
		return nil, errs.Unavailable(err)
	}
	tid := threadID
	msg := &model.Message{
		ID:          id,
		SenderID:    from,
		RecipientID: to,
		Body:        body,
		Kind:        kind,
		Event:       ev,
		Window:      w,
		ThreadID:    &tid,
		CreatedAt:   now,
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return nil, errs.Unavailable(err)
	}
	return msg, nil
}

func (s *service) touch(ctx context.Context, threadID string) {
	if err := s.threads.Touch(ctx, threadID, s.now()); err != nil {
		s.log.Warn("thread touch", "thread_id", threadID, "err", err)
	}
}

func (s *service) recompute(ctx context.Context, bookID string) {
	if s.projector == nil {
		return
	}
	if _, err := s.projector.Recompute(ctx, bookID); err != nil {
		s.log.Warn("availability recompute", "book_id", bookID, "err", err)
	}
}
