// Package availability derives what a book card shows: available,
// unavailable or proposed(window).
package availability

import (
	"time"

	"bookshare/model"
	messagerepo "bookshare/repository/message"
)

type State string

const (
	StateAvailable   State = "available"
	StateUnavailable State = "unavailable"
	StateProposed    State = "proposed"
)

type Availability struct {
	BookID          string        `json:"book_id"`
	State           State         `json:"state"`
	CurrentlyRented bool          `json:"currently_rented"`
	Window          *model.Window `json:"window,omitempty"`
	Display         string        `json:"display,omitempty"`
	ComputedAt      time.Time     `json:"computed_at"`
}

// Project merges unfinished rentals with the latest open proposals. An
// unfinished rental always wins over a proposal for the same book; among
// proposals of several threads the most recent one is shown.
func Project(books []model.Book, active []model.Rental, proposals []messagerepo.Proposal) map[string]Availability {
	rented := make(map[string]model.Rental, len(active))
	for _, r := range active {
		rented[r.BookID] = r
	}
	latest := make(map[string]messagerepo.Proposal)
	for _, p := range proposals {
		cur, ok := latest[p.BookID]
		if !ok || p.CreatedAt.After(cur.CreatedAt) ||
			(p.CreatedAt.Equal(cur.CreatedAt) && p.ThreadID > cur.ThreadID) {
			latest[p.BookID] = p
		}
	}

	now := time.Now().UTC()
	out := make(map[string]Availability, len(books))
	for _, b := range books {
		a := Availability{BookID: b.ID, ComputedAt: now}
		if r, ok := rented[b.ID]; ok {
			a.State = StateUnavailable
			a.CurrentlyRented = true
			if w := r.Window(); !w.IsZero() {
				a.Window = &w
				a.Display = "Rented " + w.String()
			}
			out[b.ID] = a
			continue
		}
		if !b.Rent {
			a.State = StateUnavailable
			out[b.ID] = a
			continue
		}
		if p, ok := latest[b.ID]; ok && !p.Window.IsZero() {
			w := p.Window
			a.State = StateProposed
			a.Window = &w
			a.Display = "Requested rent period " + w.String()
			out[b.ID] = a
			continue
		}
		a.State = StateAvailable
		out[b.ID] = a
	}
	return out
}
