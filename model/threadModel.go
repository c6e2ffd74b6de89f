// model/threadModel.go
package model

import "time"

type Decision string

const (
	DecisionNone    Decision = ""
	DecisionAgreed  Decision = "agreed"
	DecisionRefused Decision = "refused"
)

// Thread is a conversation between a book's owner and one counterpart about
// that book. Closing is terminal.
type Thread struct {
	ID          string    `json:"id"`
	BookID      string    `json:"book_id"`
	OwnerID     string    `json:"owner_id"`
	OtherUserID string    `json:"other_user_id"`
	IsClosed    bool      `json:"is_closed"`
	Decision    Decision  `json:"decision,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (t Thread) HasParticipant(userID string) bool {
	return userID == t.OwnerID || userID == t.OtherUserID
}

// Counterpart returns the participant that is not userID.
func (t Thread) Counterpart(userID string) string {
	if userID == t.OwnerID {
		return t.OtherUserID
	}
	return t.OwnerID
}
