package userrepo

import (
	"context"

	"bookshare/model"
	"bookshare/util/database"
)

// Repo reads the users mirror maintained by the identity provider.
type Repo interface {
	ByID(ctx context.Context, id string) (*model.User, error)
	ByIDs(ctx context.Context, ids []string) ([]model.User, error)
}

type repo struct{ db *database.DB }

func New(db *database.DB) Repo { return &repo{db} }

func (r *repo) ByID(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{}
	err := r.db.Pool.QueryRow(ctx, `
        SELECT id, first_name, last_name, email
        FROM users
        WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email)
	if err != nil {
		return nil, database.MapErr(err)
	}
	return u, nil
}

func (r *repo) ByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Pool.Query(ctx, `
        SELECT id, first_name, last_name, email
        FROM users
        WHERE id = ANY($1::uuid[])`,
		ids,
	)
	if err != nil {
		return nil, database.MapErr(err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, database.MapErr(rows.Err())
}
