// Package memory is an in-process store implementing every repository
// contract, including the uniqueness rules of the Postgres schema. It backs
// STORE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"bookshare/model"
	bookrepo "bookshare/repository/book"
	messagerepo "bookshare/repository/message"
	ratingrepo "bookshare/repository/rating"
	rentalrepo "bookshare/repository/rental"
	threadrepo "bookshare/repository/thread"
	userrepo "bookshare/repository/user"
	"bookshare/util/database"
)

type Store struct {
	mu       sync.RWMutex
	now      func() time.Time
	users    map[string]model.User
	books    map[string]model.Book
	threads  map[string]model.Thread
	messages []model.Message
	rents    []model.Rental
	ratings  []model.Rating
}

func New() *Store {
	return &Store{
		now:     time.Now,
		users:   make(map[string]model.User),
		books:   make(map[string]model.Book),
		threads: make(map[string]model.Thread),
	}
}

// WithClock replaces the clock used for server-side timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) PutUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) Books() bookrepo.Repo          { return bookStore{s} }
func (s *Store) Users() userrepo.Repo          { return userStore{s} }
func (s *Store) Threads() threadrepo.Repo      { return threadStore{s} }
func (s *Store) Messages() messagerepo.Repo    { return messageStore{s} }
func (s *Store) Rentals() rentalrepo.Repo      { return rentalStore{s} }
func (s *Store) Ratings() ratingrepo.Repo      { return ratingStore{s} }
func (s *Store) unfinished(bookID string) bool { return s.activeIndex(bookID) >= 0 }

func (s *Store) activeIndex(bookID string) int {
	for i, r := range s.rents {
		if r.BookID == bookID && !r.Finished {
			return i
		}
	}
	return -1
}

func contains(ids []string, id string) bool {
	if len(ids) == 0 {
		return true
	}
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// books

type bookStore struct{ s *Store }

func (b bookStore) Create(_ context.Context, book *model.Book) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if _, ok := b.s.books[book.ID]; ok {
		return &database.DuplicateError{Constraint: "books_pkey", Err: database.ErrDuplicate}
	}
	book.CreatedAt = b.s.now()
	b.s.books[book.ID] = *book
	return nil
}

func (b bookStore) ByID(_ context.Context, id string) (*model.Book, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	book, ok := b.s.books[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &book, nil
}

func (b bookStore) ByIDs(_ context.Context, ids []string) ([]model.Book, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return b.list(ids), nil
}

func (b bookStore) List(_ context.Context) ([]model.Book, error) { return b.list(nil), nil }

func (b bookStore) list(ids []string) []model.Book {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	var out []model.Book
	for _, book := range b.s.books {
		if contains(ids, book.ID) {
			out = append(out, book)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// users

type userStore struct{ s *Store }

func (u userStore) ByID(_ context.Context, id string) (*model.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	usr, ok := u.s.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &usr, nil
}

func (u userStore) ByIDs(_ context.Context, ids []string) ([]model.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	var out []model.User
	for _, id := range ids {
		if usr, ok := u.s.users[id]; ok {
			out = append(out, usr)
		}
	}
	return out, nil
}

// threads

type threadStore struct{ s *Store }

func (t threadStore) FindOpen(_ context.Context, bookID, ownerID, otherUserID string) (*model.Thread, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	for _, th := range t.s.threads {
		if th.BookID == bookID && th.OwnerID == ownerID && th.OtherUserID == otherUserID && !th.IsClosed {
			return &th, nil
		}
	}
	return nil, database.ErrNotFound
}

func (t threadStore) Latest(_ context.Context, bookID, ownerID, otherUserID string) (*model.Thread, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var best *model.Thread
	for _, th := range t.s.threads {
		if th.BookID != bookID || th.OwnerID != ownerID || th.OtherUserID != otherUserID {
			continue
		}
		if best == nil || th.UpdatedAt.After(best.UpdatedAt) {
			th := th
			best = &th
		}
	}
	if best == nil {
		return nil, database.ErrNotFound
	}
	return best, nil
}

func (t threadStore) Create(_ context.Context, th *model.Thread) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, o := range t.s.threads {
		if o.BookID == th.BookID && o.OwnerID == th.OwnerID && o.OtherUserID == th.OtherUserID && !o.IsClosed {
			return &database.DuplicateError{Constraint: "threads_one_open", Err: database.ErrDuplicate}
		}
	}
	t.s.threads[th.ID] = *th
	return nil
}

func (t threadStore) ByID(_ context.Context, id string) (*model.Thread, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	th, ok := t.s.threads[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &th, nil
}

func (t threadStore) ByIDs(_ context.Context, ids []string) ([]model.Thread, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var out []model.Thread
	for _, id := range ids {
		if th, ok := t.s.threads[id]; ok {
			out = append(out, th)
		}
	}
	return out, nil
}

func (t threadStore) ListAgreedForUser(_ context.Context, userID string) ([]model.Thread, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var out []model.Thread
	for _, th := range t.s.threads {
		if th.Decision == model.DecisionAgreed && th.HasParticipant(userID) {
			out = append(out, th)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (t threadStore) Close(_ context.Context, id string, at time.Time) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	th, ok := t.s.threads[id]
	if !ok || th.IsClosed {
		return false, nil
	}
	th.IsClosed = true
	th.UpdatedAt = at
	t.s.threads[id] = th
	return true, nil
}

func (t threadStore) RecordDecision(_ context.Context, id string, d model.Decision, at time.Time) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	th, ok := t.s.threads[id]
	if !ok || th.Decision != model.DecisionNone || th.IsClosed {
		return database.ErrConflict
	}
	th.Decision = d
	th.UpdatedAt = at
	t.s.threads[id] = th
	return nil
}

func (t threadStore) Touch(_ context.Context, id string, at time.Time) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if th, ok := t.s.threads[id]; ok {
		th.UpdatedAt = at
		t.s.threads[id] = th
	}
	return nil
}

// messages

type messageStore struct{ s *Store }

func sortMessages(ms []model.Message) {
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.Before(ms[j].CreatedAt)
		}
		return ms[i].ID < ms[j].ID
	})
}

func (m messageStore) Insert(_ context.Context, msg *model.Message) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, o := range m.s.messages {
		if o.ID == msg.ID {
			return &database.DuplicateError{Constraint: "messages_pkey", Err: database.ErrDuplicate}
		}
	}
	msg.Read = false
	m.s.messages = append(m.s.messages, *msg)
	return nil
}

func (m messageStore) ByID(_ context.Context, id string) (*model.Message, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	for _, msg := range m.s.messages {
		if msg.ID == id {
			return &msg, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m messageStore) filter(keep func(model.Message) bool) []model.Message {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var out []model.Message
	for _, msg := range m.s.messages {
		if keep(msg) {
			out = append(out, msg)
		}
	}
	sortMessages(out)
	return out
}

func (m messageStore) ByThread(_ context.Context, threadID string) ([]model.Message, error) {
	return m.filter(func(msg model.Message) bool {
		return (msg.ThreadID != nil && *msg.ThreadID == threadID) || (msg.ThreadID == nil && msg.ID == threadID)
	}), nil
}

func (m messageStore) ForUser(_ context.Context, userID string) ([]model.Message, error) {
	return m.filter(func(msg model.Message) bool {
		return msg.SenderID == userID || msg.RecipientID == userID
	}), nil
}

func (m messageStore) MarkRead(_ context.Context, id, recipientID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for i, msg := range m.s.messages {
		if msg.ID == id && msg.RecipientID == recipientID {
			m.s.messages[i].Read = true
			return nil
		}
	}
	return database.ErrNotFound
}

func isProposal(msg model.Message) bool {
	return msg.Kind == model.KindSystem && msg.Event == model.EventProposal
}

func (m messageStore) LatestProposal(_ context.Context, threadID string) (*model.Message, error) {
	ms := m.filter(func(msg model.Message) bool {
		return msg.ThreadID != nil && *msg.ThreadID == threadID && isProposal(msg)
	})
	if len(ms) == 0 {
		return nil, database.ErrNotFound
	}
	return &ms[len(ms)-1], nil
}

func (m messageStore) OpenProposals(_ context.Context, bookIDs ...string) ([]messagerepo.Proposal, error) {
	ms := m.filter(func(msg model.Message) bool { return msg.ThreadID != nil && isProposal(msg) })

	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	latest := make(map[string]messagerepo.Proposal)
	for _, msg := range ms {
		th, ok := m.s.threads[*msg.ThreadID]
		if !ok || th.IsClosed || th.Decision != model.DecisionNone || !contains(bookIDs, th.BookID) {
			continue
		}
		p := messagerepo.Proposal{ThreadID: th.ID, BookID: th.BookID, CreatedAt: msg.CreatedAt}
		if msg.Window != nil {
			p.Window = *msg.Window
		}
		latest[th.ID] = p // ms is ascending, last write wins
	}
	out := make([]messagerepo.Proposal, 0, len(latest))
	for _, p := range latest {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ThreadID < out[j].ThreadID })
	return out, nil
}

// rentals

type rentalStore struct{ s *Store }

func (r rentalStore) CreateAgreed(_ context.Context, rent *model.Rental, threadID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	th, ok := r.s.threads[threadID]
	if !ok || th.Decision != model.DecisionNone || th.IsClosed {
		return database.ErrConflict
	}
	if r.s.unfinished(rent.BookID) {
		return &database.DuplicateError{Constraint: "rents_one_unfinished", Err: database.ErrDuplicate}
	}
	now := r.s.now()
	th.Decision = model.DecisionAgreed
	th.UpdatedAt = now
	r.s.threads[threadID] = th

	rent.Finished = false
	rent.CreatedAt = now
	r.s.rents = append(r.s.rents, *rent)

	if b, ok := r.s.books[rent.BookID]; ok {
		b.Rent = false
		r.s.books[rent.BookID] = b
	}
	return nil
}

func (r rentalStore) ActiveByBook(_ context.Context, bookID string) (*model.Rental, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if i := r.s.activeIndex(bookID); i >= 0 {
		rent := r.s.rents[i]
		return &rent, nil
	}
	return nil, database.ErrNotFound
}

func (r rentalStore) Active(_ context.Context, bookIDs ...string) ([]model.Rental, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Rental
	for _, rent := range r.s.rents {
		if !rent.Finished && contains(bookIDs, rent.BookID) {
			out = append(out, rent)
		}
	}
	return out, nil
}

func (r rentalStore) Finish(_ context.Context, bookID string) (*model.Rental, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.s.activeIndex(bookID)
	if i < 0 {
		return nil, database.ErrNotFound
	}
	r.s.rents[i].Finished = true
	rent := r.s.rents[i]
	if b, ok := r.s.books[bookID]; ok {
		b.Rent = !r.s.unfinished(bookID)
		r.s.books[bookID] = b
	}
	return &rent, nil
}

func (r rentalStore) ListForUser(_ context.Context, userID string, finished bool) ([]rentalrepo.HistoryRow, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []rentalrepo.HistoryRow
	for _, rent := range r.s.rents {
		if rent.Finished != finished || (rent.BookOwner != userID && rent.Borrower != userID) {
			continue
		}
		role := model.RoleBorrower
		if rent.BookOwner == userID {
			role = model.RoleOwner
		}
		out = append(out, rentalrepo.HistoryRow{
			RentalID:  rent.ID,
			BookID:    rent.BookID,
			BookTitle: r.s.books[rent.BookID].Title,
			RentFrom:  rent.RentFrom,
			RentTo:    rent.RentTo,
			Role:      role,
			Finished:  rent.Finished,
			CreatedAt: rent.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].RentFrom, out[j].RentFrom
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ratings

type ratingStore struct{ s *Store }

func (r ratingStore) Insert(_ context.Context, rt *model.Rating) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.ratings {
		if o.RaterID == rt.RaterID && o.RateeID == rt.RateeID && o.ThreadID == rt.ThreadID {
			return &database.DuplicateError{Constraint: "user_ratings_once", Err: database.ErrDuplicate}
		}
	}
	rt.CreatedAt = r.s.now()
	r.s.ratings = append(r.s.ratings, *rt)
	return nil
}

func (r ratingStore) ByRater(_ context.Context, raterID string) ([]model.Rating, error) {
	return r.filter(func(rt model.Rating) bool { return rt.RaterID == raterID }), nil
}

func (r ratingStore) ForRatee(_ context.Context, rateeID string) ([]model.Rating, error) {
	return r.filter(func(rt model.Rating) bool { return rt.RateeID == rateeID }), nil
}

func (r ratingStore) filter(keep func(model.Rating) bool) []model.Rating {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Rating
	for _, rt := range r.s.ratings {
		if keep(rt) {
			out = append(out, rt)
		}
	}
	return out
}
