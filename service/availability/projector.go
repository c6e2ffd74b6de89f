package availability

import (
	"context"
	"log/slog"

	"bookshare/model"
	bookrepo "bookshare/repository/book"
	messagerepo "bookshare/repository/message"
	rentalrepo "bookshare/repository/rental"
	"bookshare/service/errs"
)

// Projector serves projections from the cache and rebuilds them from the
// store on a miss or on Recompute.
type Projector struct {
	books    bookrepo.Repo
	rents    rentalrepo.Repo
	messages messagerepo.Repo
	cache    Cache
	log      *slog.Logger
}

func NewProjector(b bookrepo.Repo, r rentalrepo.Repo, m messagerepo.Repo, c Cache, log *slog.Logger) *Projector {
	if log == nil {
		log = slog.Default()
	}
	return &Projector{books: b, rents: r, messages: m, cache: c, log: log}
}

func (p *Projector) Book(ctx context.Context, bookID string) (Availability, error) {
	if a, ok := p.cached(ctx, bookID); ok {
		return a, nil
	}
	return p.Recompute(ctx, bookID)
}

// Books returns the projection of every book, keyed by id.
func (p *Projector) Books(ctx context.Context, books []model.Book) (map[string]Availability, error) {
	out := make(map[string]Availability, len(books))
	var miss []model.Book
	for _, b := range books {
		if a, ok := p.cached(ctx, b.ID); ok {
			out[b.ID] = a
			continue
		}
		miss = append(miss, b)
	}
	if len(miss) == 0 {
		return out, nil
	}

	fresh, err := p.project(ctx, miss)
	if err != nil {
		return nil, err
	}
	for id, a := range fresh {
		out[id] = a
		p.store(ctx, a)
	}
	return out, nil
}

// Recompute rebuilds the projection of bookID from the store and replaces
// the cached value. Called after every mutation that affects the book. When
// the rebuild fails the cached value is dropped so the next read goes to the
// store.
func (p *Projector) Recompute(ctx context.Context, bookID string) (Availability, error) {
	book, err := p.books.ByID(ctx, bookID)
	if err != nil {
		p.evict(ctx, bookID)
		return Availability{}, errs.Store(err, errs.ErrBookNotFound)
	}
	fresh, err := p.project(ctx, []model.Book{*book})
	if err != nil {
		p.evict(ctx, bookID)
		return Availability{}, err
	}
	a := fresh[bookID]
	p.store(ctx, a)
	return a, nil
}

func (p *Projector) project(ctx context.Context, books []model.Book) (map[string]Availability, error) {
	ids := make([]string, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}
	active, err := p.rents.Active(ctx, ids...)
	if err != nil {
		return nil, errs.Unavailable(err)
	}
	proposals, err := p.messages.OpenProposals(ctx, ids...)
	if err != nil {
		return nil, errs.Unavailable(err)
	}
	return Project(books, active, proposals), nil
}

func (p *Projector) cached(ctx context.Context, bookID string) (Availability, bool) {
	if p.cache == nil {
		return Availability{}, false
	}
	a, ok, err := p.cache.Get(ctx, bookID)
	if err != nil {
		p.log.Warn("availability cache get", "book_id", bookID, "err", err)
		return Availability{}, false
	}
	return a, ok
}

func (p *Projector) store(ctx context.Context, a Availability) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Set(ctx, a); err != nil {
		p.log.Warn("availability cache set", "book_id", a.BookID, "err", err)
	}
}

func (p *Projector) evict(ctx context.Context, bookID string) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Delete(ctx, bookID); err != nil {
		p.log.Warn("availability cache delete", "book_id", bookID, "err", err)
	}
}
