// model/bookModel.go
package model

import "time"

type Genre string

const (
	GenreFantasy   Genre = "fantasy"
	GenreThriller  Genre = "thriller"
	GenreRomance   Genre = "romance"
	GenreSciFi     Genre = "sci-fi"
	GenreMystery   Genre = "mystery"
	GenreBiography Genre = "biography"
	GenreHistory   Genre = "history"
	GenreOther     Genre = "other"
)

func (g Genre) Valid() bool {
	switch g {
	case GenreFantasy, GenreThriller, GenreRomance, GenreSciFi,
		GenreMystery, GenreBiography, GenreHistory, GenreOther:
		return true
	}
	return false
}

// Book.Rent is true while the book can be requested; it is false while an
// unfinished rental references the book.
type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Year        int       `json:"year"`
	Genre       Genre     `json:"genre"`
	Rating      *int      `json:"rating,omitempty"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	Rent        bool      `json:"rent"`
	RentRegion  *string   `json:"rent_region,omitempty"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}
