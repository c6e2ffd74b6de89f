package rental

import (
	"context"
	"time"

	"bookshare/model"
	rrepo "bookshare/repository/rental"
	"bookshare/service/errs"
)

// HistoryRow = repository shape
type HistoryRow = rrepo.HistoryRow

type Repo interface {
	ListForUser(ctx context.Context, userID string, finished bool) ([]HistoryRow, error)
}

// Row is a rental as seen by one of its two sides.
type Row struct {
	HistoryRow
	// Overdue: unfinished and past the agreed return date.
	Overdue bool `json:"overdue"`
}

// MyRents splits a user's rentals into the ones in progress and the finished
// ones. Lending and Borrowing count Current by the user's role.
type MyRents struct {
	Current   []Row `json:"current"`
	History   []Row `json:"history"`
	Lending   int   `json:"lending"`
	Borrowing int   `json:"borrowing"`
}

type Service interface {
	MyRents(ctx context.Context, userID string) (*MyRents, error)
}

type service struct {
	r   Repo
	now func() time.Time
}

func New(r Repo) Service {
	return &service{r: r, now: func() time.Time { return time.Now().UTC() }}
}

func (s *service) MyRents(ctx context.Context, userID string) (*MyRents, error) {
	cur, err := s.r.ListForUser(ctx, userID, false)
	if err != nil {
		return nil, errs.Unavailable(err)
	}
	hist, err := s.r.ListForUser(ctx, userID, true)
	if err != nil {
		return nil, errs.Unavailable(err)
	}

	today := s.now().Truncate(24 * time.Hour)
	out := &MyRents{Current: make([]Row, 0, len(cur)), History: make([]Row, 0, len(hist))}
	for _, h := range cur {
		row := Row{HistoryRow: h, Overdue: h.RentTo != nil && h.RentTo.Before(today)}
		out.Current = append(out.Current, row)
		if h.Role == model.RoleOwner {
			out.Lending++
		} else {
			out.Borrowing++
		}
	}
	for _, h := range hist {
		out.History = append(out.History, Row{HistoryRow: h})
	}
	return out, nil
}
