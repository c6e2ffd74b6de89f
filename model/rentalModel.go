// model/rentalModel.go
package model

import "time"

// Rental is the authoritative record of an agreed loan. At most one rental per
// book may be unfinished.
type Rental struct {
	ID        string     `json:"id"`
	BookID    string     `json:"book_id"`
	BookOwner string     `json:"book_owner"`
	Borrower  string     `json:"borrower"`
	ThreadID  *string    `json:"thread_id,omitempty"`
	RentFrom  *time.Time `json:"rent_from,omitempty"`
	RentTo    *time.Time `json:"rent_to,omitempty"`
	Finished  bool       `json:"finished"`
	CreatedAt time.Time  `json:"created_at"`
}

func (r Rental) Window() Window { return Window{From: r.RentFrom, To: r.RentTo} }
