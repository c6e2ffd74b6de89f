// repository/rental/rentalRepository.go
package rental

import (
	"context"
	"time"

	"bookshare/model"
	"bookshare/util/database"
)

type HistoryRow struct {
	RentalID  string     `json:"rental_id"`
	BookID    string     `json:"book_id"`
	BookTitle string     `json:"book_title"`
	RentFrom  *time.Time `json:"rent_from,omitempty"`
	RentTo    *time.Time `json:"rent_to,omitempty"`
	Role      model.Role `json:"role"` // owner | borrower, from the user's side
	Finished  bool       `json:"finished"`
	CreatedAt time.Time  `json:"created_at"`
}

type Repo interface {
	// CreateAgreed records the owner's agreement on threadID, inserts the
	// unfinished rental and marks the book unavailable, atomically.
	// database.ErrConflict: the thread already has a decision or is closed.
	// database.ErrDuplicate: the book already has an unfinished rental.
	CreateAgreed(ctx context.Context, r *model.Rental, threadID string) error

	ActiveByBook(ctx context.Context, bookID string) (*model.Rental, error)
	Active(ctx context.Context, bookIDs ...string) ([]model.Rental, error)

	// Finish closes the unfinished rental of bookID and makes the book
	// available again when no other unfinished rental references it.
	Finish(ctx context.Context, bookID string) (*model.Rental, error)

	// History
	ListForUser(ctx context.Context, userID string, finished bool) ([]HistoryRow, error)
}

type repo struct {
	db *database.DB
}

func New(db *database.DB) Repo { return &repo{db: db} }

const rentCols = `id, book_id, book_owner, borrower, thread_id, rent_from, rent_to, finished, created_at`

type scanner interface{ Scan(dest ...any) error }

func scanRental(row scanner) (model.Rental, error) {
	var r model.Rental
	err := row.Scan(&r.ID, &r.BookID, &r.BookOwner, &r.Borrower, &r.ThreadID,
		&r.RentFrom, &r.RentTo, &r.Finished, &r.CreatedAt)
	return r, err
}

func (r *repo) CreateAgreed(ctx context.Context, rent *model.Rental, threadID string) (err error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// first decision wins
	const qDecide = `
		UPDATE threads
		SET decision = 'agreed', updated_at = NOW()
		WHERE id = $1
		AND decision IS NULL
		AND NOT is_closed`
	tag, err := tx.Exec(ctx, qDecide, threadID)
	if err != nil {
		return database.MapErr(err)
	}
	if tag.RowsAffected() == 0 {
		err = database.ErrConflict
		return err
	}

	// rents_one_unfinished rejects a second active rental
	const qIns = `
		INSERT INTO rents (id, book_id, book_owner, borrower, thread_id, rent_from, rent_to, finished)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
		RETURNING created_at`
	if err = tx.QueryRow(ctx, qIns,
		rent.ID, rent.BookID, rent.BookOwner, rent.Borrower, rent.ThreadID, rent.RentFrom, rent.RentTo,
	).Scan(&rent.CreatedAt); err != nil {
		err = database.MapErr(err)
		return err
	}

	const qBook = `
		UPDATE books
		SET rent = FALSE
		WHERE id = $1`
	if _, err = tx.Exec(ctx, qBook, rent.BookID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *repo) ActiveByBook(ctx context.Context, bookID string) (*model.Rental, error) {
	const q = `
			SELECT ` + rentCols + `
			FROM rents
			WHERE book_id = $1
			AND NOT finished`
	rent, err := scanRental(r.db.Pool.QueryRow(ctx, q, bookID))
	if err != nil {
		return nil, database.MapErr(err)
	}
	return &rent, nil
}

func (r *repo) Active(ctx context.Context, bookIDs ...string) ([]model.Rental, error) {
	q := `SELECT ` + rentCols + ` FROM rents WHERE NOT finished`
	args := []any{}
	if len(bookIDs) > 0 {
		q += ` AND book_id = ANY($1::uuid[])`
		args = append(args, bookIDs)
	}
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, database.MapErr(err)
	}
	defer rows.Close()

	var out []model.Rental
	for rows.Next() {
		rent, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rent)
	}
	return out, database.MapErr(rows.Err())
}

func (r *repo) Finish(ctx context.Context, bookID string) (_ *model.Rental, err error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	const qFinish = `
		UPDATE rents
		SET finished = TRUE
		WHERE book_id = $1
		AND NOT finished
		RETURNING ` + rentCols
	rent, err := scanRental(tx.QueryRow(ctx, qFinish, bookID))
	if err != nil {
		err = database.MapErr(err)
		return nil, err
	}

	const qBook = `
		UPDATE books
		SET rent = NOT EXISTS (SELECT 1 FROM rents WHERE book_id = $1 AND NOT finished)
		WHERE id = $1`
	if _, err = tx.Exec(ctx, qBook, bookID); err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &rent, nil
}

// History

func (r *repo) ListForUser(ctx context.Context, userID string, finished bool) ([]HistoryRow, error) {
	const q = `
			SELECT
			r.id          AS rental_id,
			r.book_id     AS book_id,
			b.title       AS book_title,
			r.rent_from   AS rent_from,
			r.rent_to     AS rent_to,
			CASE WHEN r.book_owner = $1 THEN 'owner' ELSE 'borrower' END AS role,
			r.finished    AS finished,
			r.created_at  AS created_at
			FROM rents r
			JOIN books b ON b.id = r.book_id
			WHERE (r.book_owner = $1 OR r.borrower = $1)
			AND r.finished = $2
			ORDER BY r.rent_from DESC NULLS LAST, r.created_at DESC, r.id DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID, finished)
	if err != nil {
		return nil, database.MapErr(err)
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var h HistoryRow
		var role string
		if err := rows.Scan(
			&h.RentalID, &h.BookID, &h.BookTitle, &h.RentFrom,
			&h.RentTo, &role, &h.Finished, &h.CreatedAt,
		); err != nil {
			return nil, err
		}
		h.Role = model.Role(role)
		out = append(out, h)
	}
	return out, database.MapErr(rows.Err())
}
