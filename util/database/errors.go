package database

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store sentinels shared by the Postgres and in-memory repositories.
var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate")
	// ErrConflict is returned when a guarded update matched no row.
	ErrConflict = errors.New("store: conflict")
)

// DuplicateError keeps the violated constraint so callers can tell which
// uniqueness rule fired.
type DuplicateError struct {
	Constraint string
	Err        error
}

func (e *DuplicateError) Error() string { return "store: duplicate (" + e.Constraint + ")" }
func (e *DuplicateError) Unwrap() error { return e.Err }
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// MapErr converts driver errors into store sentinels. A key that is not
// valid for its column type (22P02) cannot match a row and maps to
// ErrNotFound. Other errors pass through unchanged.
func MapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return &DuplicateError{Constraint: pgErr.ConstraintName, Err: err}
	case pgerrcode.InvalidTextRepresentation:
		return fmt.Errorf("%w: %s", ErrNotFound, pgErr.Message)
	}
	return err
}
