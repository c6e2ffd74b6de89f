package threadrepo

import (
	"context"
	"time"

	"bookshare/model"
	"bookshare/util/database"
)

type Repo interface {
	// FindOpen returns the open thread for the triple or database.ErrNotFound.
	FindOpen(ctx context.Context, bookID, ownerID, otherUserID string) (*model.Thread, error)
	// Latest returns the most recently updated thread for the triple, open or not.
	Latest(ctx context.Context, bookID, ownerID, otherUserID string) (*model.Thread, error)
	// Create fails with database.ErrDuplicate when an open thread already
	// exists for the triple.
	Create(ctx context.Context, t *model.Thread) error
	ByID(ctx context.Context, id string) (*model.Thread, error)
	ByIDs(ctx context.Context, ids []string) ([]model.Thread, error)
	ListAgreedForUser(ctx context.Context, userID string) ([]model.Thread, error)
	// Close reports whether the thread was open before the call.
	Close(ctx context.Context, id string, at time.Time) (bool, error)
	// RecordDecision sets the decision once; database.ErrConflict when a
	// decision exists or the thread is closed.
	RecordDecision(ctx context.Context, id string, d model.Decision, at time.Time) error
	Touch(ctx context.Context, id string, at time.Time) error
}

type repo struct{ db *database.DB }

func New(db *database.DB) Repo { return &repo{db} }

const threadCols = `id, book_id, owner_id, other_user_id, is_closed, COALESCE(decision, ''), updated_at`

type scanner interface{ Scan(dest ...any) error }

func scanThread(row scanner) (model.Thread, error) {
	var t model.Thread
	var decision string
	err := row.Scan(&t.ID, &t.BookID, &t.OwnerID, &t.OtherUserID, &t.IsClosed, &decision, &t.UpdatedAt)
	t.Decision = model.Decision(decision)
	return t, err
}

func (r *repo) one(ctx context.Context, q string, args ...any) (*model.Thread, error) {
	t, err := scanThread(r.db.Pool.QueryRow(ctx, q, args...))
	if err != nil {
		return nil, database.MapErr(err)
	}
	return &t, nil
}

func (r *repo) FindOpen(ctx context.Context, bookID, ownerID, otherUserID string) (*model.Thread, error) {
	const q = `
SELECT ` + threadCols + `
FROM threads
WHERE book_id = $1 AND owner_id = $2 AND other_user_id = $3 AND NOT is_closed`
	return r.one(ctx, q, bookID, ownerID, otherUserID)
}

func (r *repo) Latest(ctx context.Context, bookID, ownerID, otherUserID string) (*model.Thread, error) {
	const q = `
SELECT ` + threadCols + `
FROM threads
WHERE book_id = $1 AND owner_id = $2 AND other_user_id = $3
ORDER BY updated_at DESC
LIMIT 1`
	return r.one(ctx, q, bookID, ownerID, otherUserID)
}

func (r *repo) Create(ctx context.Context, t *model.Thread) error {
	const q = `
INSERT INTO threads (id, book_id, owner_id, other_user_id, is_closed, updated_at)
VALUES ($1,$2,$3,$4,FALSE,$5)`
	_, err := r.db.Pool.Exec(ctx, q, t.ID, t.BookID, t.OwnerID, t.OtherUserID, t.UpdatedAt)
	return database.MapErr(err)
}

func (r *repo) ByID(ctx context.Context, id string) (*model.Thread, error) {
	// legacy thread ids are message ids, not uuids
	return r.one(ctx, `SELECT `+threadCols+` FROM threads WHERE id::text = $1`, id)
}

func (r *repo) ByIDs(ctx context.Context, ids []string) ([]model.Thread, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.query(ctx, `SELECT `+threadCols+` FROM threads WHERE id::text = ANY($1::text[])`, ids)
}

func (r *repo) ListAgreedForUser(ctx context.Context, userID string) ([]model.Thread, error) {
	const q = `
SELECT ` + threadCols + `
FROM threads
WHERE decision = 'agreed' AND (owner_id = $1 OR other_user_id = $1)
ORDER BY updated_at DESC`
	return r.query(ctx, q, userID)
}

func (r *repo) query(ctx context.Context, q string, args ...any) ([]model.Thread, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, database.MapErr(err)
	}
	defer rows.Close()

	var out []model.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, database.MapErr(rows.Err())
}

func (r *repo) Close(ctx context.Context, id string, at time.Time) (bool, error) {
	const q = `
UPDATE threads
SET is_closed = TRUE, updated_at = $2
WHERE id = $1 AND NOT is_closed`
	tag, err := r.db.Pool.Exec(ctx, q, id, at)
	if err != nil {
		return false, database.MapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repo) RecordDecision(ctx context.Context, id string, d model.Decision, at time.Time) error {
	// Guard: the first decision wins; a second one matches no row.
	const q = `
UPDATE threads
SET decision = $2, updated_at = $3
WHERE id = $1
  AND decision IS NULL
  AND NOT is_closed`
	tag, err := r.db.Pool.Exec(ctx, q, id, string(d), at)
	if err != nil {
		return database.MapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return database.ErrConflict
	}
	return nil
}

func (r *repo) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE threads SET updated_at = $2 WHERE id = $1`, id, at)
	return database.MapErr(err)
}
