package ratingrepo

import (
	"context"

	"bookshare/model"
	"bookshare/util/database"
)

type Repo interface {
	// Insert fails with database.ErrDuplicate when the rater already rated
	// the ratee for the thread.
	Insert(ctx context.Context, r *model.Rating) error
	ByRater(ctx context.Context, raterID string) ([]model.Rating, error)
	ForRatee(ctx context.Context, rateeID string) ([]model.Rating, error)
}

type repo struct{ db *database.DB }

func New(db *database.DB) Repo { return &repo{db} }

func (r *repo) Insert(ctx context.Context, rt *model.Rating) error {
	const q = `
INSERT INTO user_ratings (ratee_id, rater_id, role, rating, thread_id)
VALUES ($1,$2,$3,$4,$5)
RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q,
		rt.RateeID, rt.RaterID, string(rt.Role), rt.Rating, rt.ThreadID,
	).Scan(&rt.CreatedAt)
	return database.MapErr(err)
}

func (r *repo) ByRater(ctx context.Context, raterID string) ([]model.Rating, error) {
	return r.query(ctx, `
SELECT ratee_id, rater_id, role, rating, thread_id, created_at
FROM user_ratings
WHERE rater_id = $1
ORDER BY created_at DESC`, raterID)
}

func (r *repo) ForRatee(ctx context.Context, rateeID string) ([]model.Rating, error) {
	return r.query(ctx, `
SELECT ratee_id, rater_id, role, rating, thread_id, created_at
FROM user_ratings
WHERE ratee_id = $1
ORDER BY created_at DESC`, rateeID)
}

func (r *repo) query(ctx context.Context, q string, args ...any) ([]model.Rating, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, database.MapErr(err)
	}
	defer rows.Close()

	var out []model.Rating
	for rows.Next() {
		var rt model.Rating
		var role string
		if err := rows.Scan(&rt.RateeID, &rt.RaterID, &role, &rt.Rating, &rt.ThreadID, &rt.CreatedAt); err != nil {
			return nil, err
		}
		rt.Role = model.Role(role)
		out = append(out, rt)
	}
	return out, database.MapErr(rows.Err())
}
