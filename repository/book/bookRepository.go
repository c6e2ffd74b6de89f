package bookrepo

import (
	"context"

	"bookshare/model"
	"bookshare/util/database"
)

type Repo interface {
	Create(ctx context.Context, b *model.Book) error
	ByID(ctx context.Context, id string) (*model.Book, error)
	ByIDs(ctx context.Context, ids []string) ([]model.Book, error)
	List(ctx context.Context) ([]model.Book, error)
}

type repo struct{ db *database.DB }

func New(db *database.DB) Repo { return &repo{db} }

const bookCols = `id, title, author, description, year, genre, rating, image, rent, rent_region, owner_id, created_at`

type scanner interface{ Scan(dest ...any) error }

func scanBook(row scanner) (model.Book, error) {
	var b model.Book
	var genre string
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.Year, &genre,
		&b.Rating, &b.Image, &b.Rent, &b.RentRegion, &b.OwnerID, &b.CreatedAt)
	b.Genre = model.Genre(genre)
	return b, err
}

func (r *repo) Create(ctx context.Context, b *model.Book) error {
	const q = `
INSERT INTO books (id, title, author, description, year, genre, rating, image, rent, rent_region, owner_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q,
		b.ID, b.Title, b.Author, b.Description, b.Year, string(b.Genre),
		b.Rating, b.Image, b.Rent, b.RentRegion, b.OwnerID,
	).Scan(&b.CreatedAt)
	return database.MapErr(err)
}

func (r *repo) ByID(ctx context.Context, id string) (*model.Book, error) {
	b, err := scanBook(r.db.Pool.QueryRow(ctx, `SELECT `+bookCols+` FROM books WHERE id=$1`, id))
	if err != nil {
		return nil, database.MapErr(err)
	}
	return &b, nil
}

func (r *repo) ByIDs(ctx context.Context, ids []string) ([]model.Book, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.query(ctx, `SELECT `+bookCols+` FROM books WHERE id = ANY($1::uuid[]) ORDER BY created_at DESC, id`, ids)
}

func (r *repo) List(ctx context.Context) ([]model.Book, error) {
	return r.query(ctx, `SELECT `+bookCols+` FROM books ORDER BY created_at DESC, id`)
}

func (r *repo) query(ctx context.Context, q string, args ...any) ([]model.Book, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, database.MapErr(err)
	}
	defer rows.Close()

	var out []model.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, database.MapErr(rows.Err())
}
