package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"bookshare/service/errs"
	"bookshare/util/database"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestKindAndCode(t *testing.T) {
	err := errs.Conflict(errs.ErrRentActive, "book already rented")
	require.Equal(t, errs.KindConflict, errs.KindOf(err))
	require.Equal(t, errs.ErrRentActive, errs.Code(err))
	require.Equal(t, "book already rented", errs.Message(err))

	wrapped := fmt.Errorf("agree: %w", err)
	require.Equal(t, errs.KindConflict, errs.KindOf(wrapped))
	require.Equal(t, errs.ErrRentActive, errs.Code(wrapped))
}

func TestUnknownErrorIsUnavailable(t *testing.T) {
	err := errors.New("boom")
	require.Equal(t, errs.KindUnavailable, errs.KindOf(err))
	require.Empty(t, errs.Code(err))
}

func TestStore(t *testing.T) {
	require.NoError(t, errs.Store(nil, errs.ErrBookNotFound))

	nf := errs.Store(database.ErrNotFound, errs.ErrBookNotFound)
	require.Equal(t, errs.KindNotFound, errs.KindOf(nf))
	require.Equal(t, errs.ErrBookNotFound, errs.Code(nf))
	require.ErrorIs(t, nf, database.ErrNotFound)

	down := errs.Store(errors.New("conn refused"), errs.ErrBookNotFound)
	require.Equal(t, errs.KindUnavailable, errs.KindOf(down))
	require.Equal(t, errs.ErrStore, errs.Code(down))

	malformed := errs.Store(database.MapErr(&pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation}), errs.ErrBookNotFound)
	require.Equal(t, errs.KindNotFound, errs.KindOf(malformed))
	require.Equal(t, errs.ErrBookNotFound, errs.Code(malformed))

	already := errs.Validation(errs.ErrEmptyText, "empty")
	require.Same(t, already, errs.Store(already, errs.ErrBookNotFound))
}
