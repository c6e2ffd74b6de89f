package booksvc

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"bookshare/model"
	"bookshare/service/availability"
	"bookshare/service/errs"
)

type Repo interface {
	Create(ctx context.Context, b *model.Book) error
	ByID(ctx context.Context, id string) (*model.Book, error)
	List(ctx context.Context) ([]model.Book, error)
}

type Projector interface {
	Book(ctx context.Context, bookID string) (availability.Availability, error)
	Books(ctx context.Context, books []model.Book) (map[string]availability.Availability, error)
}

// Book is a book with its current availability.
type Book struct {
	model.Book
	Availability availability.Availability `json:"availability"`
}

type CreateInput struct {
	Title       string
	Author      string
	Year        int
	Genre       model.Genre
	Rating      *int
	Description string
	Image       string
	Rent        bool
	RentRegion  *string
}

type Service interface {
	Create(ctx context.Context, ownerID string, in CreateInput) (*model.Book, error)
	List(ctx context.Context) ([]Book, error)
	Detail(ctx context.Context, id string) (*Book, error)
	Availability(ctx context.Context, id string) (availability.Availability, error)
}

type service struct {
	r Repo
	p Projector
}

func New(r Repo, p Projector) Service { return &service{r: r, p: p} }

func (s *service) Create(ctx context.Context, ownerID string, in CreateInput) (*model.Book, error) {
	in.Title, in.Author = strings.TrimSpace(in.Title), strings.TrimSpace(in.Author)
	if ownerID == "" {
		return nil, errs.Validation(errs.ErrNoOwner, "owner is required")
	}
	if in.Title == "" || in.Author == "" {
		return nil, errs.Validation(errs.ErrInvalidInput, "title and author are required")
	}
	if !in.Genre.Valid() {
		return nil, errs.Validation(errs.ErrInvalidInput, "unknown genre")
	}
	if in.Rating != nil && (*in.Rating < 0 || *in.Rating > 5) {
		return nil, errs.Validation(errs.ErrBadRating, "rating must be between 0 and 5")
	}

	b := &model.Book{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Author:      in.Author,
		Year:        in.Year,
		Genre:       in.Genre,
		Rating:      in.Rating,
		Description: in.Description,
		Image:       in.Image,
		Rent:        in.Rent,
		RentRegion:  in.RentRegion,
		OwnerID:     ownerID,
	}
	if err := s.r.Create(ctx, b); err != nil {
		return nil, errs.Unavailable(err)
	}
	return b, nil
}

func (s *service) List(ctx context.Context) ([]Book, error) {
	books, err := s.r.List(ctx)
	if err != nil {
		return nil, errs.Unavailable(err)
	}
	av, err := s.p.Books(ctx, books)
	if err != nil {
		return nil, err
	}
	out := make([]Book, len(books))
	for i, b := range books {
		out[i] = Book{Book: b, Availability: av[b.ID]}
	}
	return out, nil
}

func (s *service) Detail(ctx context.Context, id string) (*Book, error) {
	b, err := s.r.ByID(ctx, id)
	if err != nil {
		return nil, errs.Store(err, errs.ErrBookNotFound)
	}
	a, err := s.p.Book(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Book{Book: *b, Availability: a}, nil
}

func (s *service) Availability(ctx context.Context, id string) (availability.Availability, error) {
	return s.p.Book(ctx, id)
}
