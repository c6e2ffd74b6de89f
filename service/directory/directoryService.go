package directory

import (
	"context"
	"errors"

	"bookshare/model"
	bookrepo "bookshare/repository/book"
	messagerepo "bookshare/repository/message"
	threadrepo "bookshare/repository/thread"
	userrepo "bookshare/repository/user"
	"bookshare/service/errs"
	"bookshare/util/database"
)

type Service interface {
	Inbox(ctx context.Context, viewerID string) ([]ThreadView, error)
	Timeline(ctx context.Context, viewerID, threadID string) (*ThreadView, error)
	// MarkRead flips the read flag; only the recipient may do so.
	MarkRead(ctx context.Context, viewerID, messageID string) error
}

type service struct {
	messages messagerepo.Repo
	threads  threadrepo.Repo
	books    bookrepo.Repo
	users    userrepo.Repo
}

func New(m messagerepo.Repo, t threadrepo.Repo, b bookrepo.Repo, u userrepo.Repo) Service {
	return &service{messages: m, threads: t, books: b, users: u}
}

func (s *service) Inbox(ctx context.Context, viewerID string) ([]ThreadView, error) {
	msgs, err := s.messages.ForUser(ctx, viewerID)
	if err != nil {
		return nil, errs.Unavailable(err)
	}
	lk, err := s.lookup(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return Group(msgs, viewerID, lk), nil
}

func (s *service) Timeline(ctx context.Context, viewerID, threadID string) (*ThreadView, error) {
	th, err := s.threads.ByID(ctx, threadID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, errs.Unavailable(err)
	}
	if th != nil && !th.HasParticipant(viewerID) {
		return nil, errs.Authorization(errs.ErrNotMember, "not a participant of this thread")
	}

	msgs, err := s.messages.ByThread(ctx, threadID)
	if err != nil {
		return nil, errs.Unavailable(err)
	}
	if len(msgs) == 0 {
		if th == nil {
			return nil, errs.NotFound(errs.ErrThreadMissing, "thread not found")
		}
		v := ThreadView{
			ThreadID:      th.ID,
			BookID:        th.BookID,
			OwnerID:       th.OwnerID,
			CounterpartID: th.Counterpart(viewerID),
			IsClosed:      th.IsClosed,
			Decision:      th.Decision,
			Messages:      []MessageView{},
		}
		return &v, nil
	}
	if th == nil {
		head := msgs[0]
		if head.SenderID != viewerID && head.RecipientID != viewerID {
			return nil, errs.Authorization(errs.ErrNotMember, "not a participant of this thread")
		}
	}

	lk, err := s.lookup(ctx, msgs)
	if err != nil {
		return nil, err
	}
	views := Group(msgs, viewerID, lk)
	return &views[0], nil
}

func (s *service) MarkRead(ctx context.Context, viewerID, messageID string) error {
	m, err := s.messages.ByID(ctx, messageID)
	if err != nil {
		return errs.Store(err, errs.ErrMsgNotFound)
	}
	if m.RecipientID != viewerID {
		return errs.Authorization(errs.ErrNotRecipient, "only the recipient can mark a message read")
	}
	if err := s.messages.MarkRead(ctx, m.ID, viewerID); err != nil {
		return errs.Store(err, errs.ErrMsgNotFound)
	}
	return nil
}

// lookup loads the threads, books and users msgs refer to.
func (s *service) lookup(ctx context.Context, msgs []model.Message) (Lookup, error) {
	lk := Lookup{
		Books:   map[string]model.Book{},
		Users:   map[string]model.User{},
		Threads: map[string]model.Thread{},
	}
	tids := set{}
	uids := set{}
	for _, m := range msgs {
		tids.add(m.EffectiveThreadID())
		uids.add(m.SenderID)
		uids.add(m.RecipientID)
	}

	threads, err := s.threads.ByIDs(ctx, tids.list())
	if err != nil {
		return lk, errs.Unavailable(err)
	}
	bids := set{}
	for _, t := range threads {
		lk.Threads[t.ID] = t
		bids.add(t.BookID)
		uids.add(t.OwnerID)
		uids.add(t.OtherUserID)
	}

	books, err := s.books.ByIDs(ctx, bids.list())
	if err != nil {
		return lk, errs.Unavailable(err)
	}
	for _, b := range books {
		lk.Books[b.ID] = b
	}

	users, err := s.users.ByIDs(ctx, uids.list())
	if err != nil {
		return lk, errs.Unavailable(err)
	}
	for _, u := range users {
		lk.Users[u.ID] = u
	}
	return lk, nil
}

type set map[string]struct{}

func (s set) add(v string) {
	if v != "" {
		s[v] = struct{}{}
	}
}

func (s set) list() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	return out
}
