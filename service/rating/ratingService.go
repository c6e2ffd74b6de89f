package ratingsvc

import (
	"context"
	"errors"

	"bookshare/model"
	ratingrepo "bookshare/repository/rating"
	threadrepo "bookshare/repository/thread"
	"bookshare/service/errs"
	"bookshare/util/database"
)

// Pending is a rating the user can still give.
type Pending struct {
	ThreadID string     `json:"thread_id"`
	BookID   string     `json:"book_id"`
	RateeID  string     `json:"ratee_id"`
	Role     model.Role `json:"role"`
}

type Service interface {
	// Rate records raterID's rating of the other participant of an agreed
	// thread. Each side rates the other at most once per thread.
	Rate(ctx context.Context, raterID, threadID string, value int) (*model.Rating, error)
	Pending(ctx context.Context, raterID string) ([]Pending, error)
	Summary(ctx context.Context, userID string) (*model.RatingSummary, error)
}

type service struct {
	ratings ratingrepo.Repo
	threads threadrepo.Repo
}

func New(r ratingrepo.Repo, t threadrepo.Repo) Service { return &service{ratings: r, threads: t} }

func roleOf(th model.Thread, userID string) model.Role {
	if userID == th.OwnerID {
		return model.RoleOwner
	}
	return model.RoleBorrower
}

func (s *service) Rate(ctx context.Context, raterID, threadID string, value int) (*model.Rating, error) {
	if value < 1 || value > 5 {
		return nil, errs.Validation(errs.ErrBadRating, "rating must be between 1 and 5")
	}
	th, err := s.threads.ByID(ctx, threadID)
	if err != nil {
		return nil, errs.Store(err, errs.ErrThreadMissing)
	}
	if !th.HasParticipant(raterID) {
		return nil, errs.Authorization(errs.ErrNotMember, "not a participant of this thread")
	}
	if th.Decision != model.DecisionAgreed {
		return nil, errs.Conflict(errs.ErrNotAgreed, "rental was not agreed in this thread")
	}

	ratee := th.Counterpart(raterID)
	r := &model.Rating{
		RateeID:  ratee,
		RaterID:  raterID,
		Role:     roleOf(*th, ratee),
		Rating:   value,
		ThreadID: th.ID,
	}
	err = s.ratings.Insert(ctx, r)
	if errors.Is(err, database.ErrDuplicate) {
		return nil, errs.Conflict(errs.ErrAlreadyRated, "already rated")
	}
	if err != nil {
		return nil, errs.Unavailable(err)
	}
	return r, nil
}

func (s *service) Pending(ctx context.Context, raterID string) ([]Pending, error) {
	threads, err := s.threads.ListAgreedForUser(ctx, raterID)
	if err != nil {
		return nil, errs.Unavailable(err)
	}
	given, err := s.ratings.ByRater(ctx, raterID)
	if err != nil {
		return nil, errs.Unavailable(err)
	}
	done := make(map[[2]string]bool, len(given))
	for _, g := range given {
		done[[2]string{g.RateeID, g.ThreadID}] = true
	}

	out := []Pending{}
	for _, th := range threads {
		ratee := th.Counterpart(raterID)
		if done[[2]string{ratee, th.ID}] {
			continue
		}
		out = append(out, Pending{ThreadID: th.ID, BookID: th.BookID, RateeID: ratee, Role: roleOf(th, ratee)})
	}
	return out, nil
}

func (s *service) Summary(ctx context.Context, userID string) (*model.RatingSummary, error) {
	rs, err := s.ratings.ForRatee(ctx, userID)
	if err != nil {
		return nil, errs.Store(err, errs.ErrUserNotFound)
	}
	sum := &model.RatingSummary{UserID: userID}
	var all, owner, borrower int
	for _, r := range rs {
		all += r.Rating
		switch r.Role {
		case model.RoleOwner:
			owner += r.Rating
			sum.OwnerCount++
		case model.RoleBorrower:
			borrower += r.Rating
			sum.BorrowerCount++
		}
	}
	sum.Count = len(rs)
	sum.Average = avg(all, sum.Count)
	sum.AsOwner = avg(owner, sum.OwnerCount)
	sum.AsBorrower = avg(borrower, sum.BorrowerCount)
	return sum, nil
}

func avg(total, n int) *float64 {
	if n == 0 {
		return nil
	}
	v := float64(total) / float64(n)
	return &v
}
