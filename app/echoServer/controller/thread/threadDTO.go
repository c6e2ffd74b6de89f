package thread

import (
	"time"
)

const dateLayout = "2006-01-02"

type StartThreadReq struct {
	BookID        string `json:"book_id" validate:"required,uuid"`
	CounterpartID string `json:"counterpart_id"`
	Text          string `json:"text" validate:"max=4000"`
	RentFrom      string `json:"rent_from" validate:"omitempty,datetime=2006-01-02"`
	RentTo        string `json:"rent_to" validate:"omitempty,datetime=2006-01-02"`
}

// window parses the optional dates; the validator has already checked the
// format.
func (r StartThreadReq) window() (from, to *time.Time) {
	parse := func(s string) *time.Time {
		if s == "" {
			return nil
		}
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil
		}
		return &t
	}
	return parse(r.RentFrom), parse(r.RentTo)
}

type ReplyReq struct {
	Text string `json:"text" validate:"max=4000"`
}
