package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMapErr(t *testing.T) {
	require.NoError(t, MapErr(nil))
	require.ErrorIs(t, MapErr(pgx.ErrNoRows), ErrNotFound)
	require.ErrorIs(t, MapErr(fmt.Errorf("scan: %w", pgx.ErrNoRows)), ErrNotFound)

	uv := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "rents_one_unfinished"}
	err := MapErr(uv)
	require.ErrorIs(t, err, ErrDuplicate)
	var dup *DuplicateError
	require.True(t, errors.As(err, &dup))
	require.Equal(t, "rents_one_unfinished", dup.Constraint)

	bad := &pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation, Message: `invalid input syntax for type uuid: "abc"`}
	require.ErrorIs(t, MapErr(bad), ErrNotFound)
	require.ErrorIs(t, MapErr(fmt.Errorf("query: %w", bad)), ErrNotFound)

	other := &pgconn.PgError{Code: pgerrcode.CheckViolation}
	require.Same(t, other, MapErr(other))
}
