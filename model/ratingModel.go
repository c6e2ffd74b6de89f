// model/ratingModel.go
package model

import "time"

// Role is the role the rated person had in the transaction.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleBorrower Role = "borrower"
)

type Rating struct {
	RateeID   string    `json:"ratee_id"`
	RaterID   string    `json:"rater_id"`
	Role      Role      `json:"role"`
	Rating    int       `json:"rating"`
	ThreadID  string    `json:"thread_id"`
	CreatedAt time.Time `json:"created_at"`
}

type RatingSummary struct {
	UserID        string   `json:"user_id"`
	Count         int      `json:"count"`
	Average       *float64 `json:"average,omitempty"`
	AsOwner       *float64 `json:"as_owner,omitempty"`
	AsBorrower    *float64 `json:"as_borrower,omitempty"`
	OwnerCount    int      `json:"owner_count"`
	BorrowerCount int      `json:"borrower_count"`
}
