package rental

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookshare/model"
	"bookshare/service/errs"

	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	listFn func(ctx context.Context, userID string, finished bool) ([]HistoryRow, error)
}

func (m *mockRepo) ListForUser(ctx context.Context, userID string, finished bool) ([]HistoryRow, error) {
	return m.listFn(ctx, userID, finished)
}

func at(y int, mo time.Month, d int) *time.Time {
	t := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestMyRents_SplitsAndFlagsOverdue(t *testing.T) {
	m := &mockRepo{listFn: func(ctx context.Context, userID string, finished bool) ([]HistoryRow, error) {
		require.Equal(t, "u1", userID)
		if finished {
			return []HistoryRow{{RentalID: "r0", Role: model.RoleBorrower, Finished: true}}, nil
		}
		return []HistoryRow{
			{RentalID: "r1", Role: model.RoleOwner, RentTo: at(2024, 5, 10)},
			{RentalID: "r2", Role: model.RoleBorrower, RentTo: at(2024, 6, 10)},
			{RentalID: "r3", Role: model.RoleOwner},
		}, nil
	}}
	s := &service{r: m, now: func() time.Time { return time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC) }}

	out, err := s.MyRents(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, out.Current, 3)
	require.Len(t, out.History, 1)
	require.Equal(t, 2, out.Lending)
	require.Equal(t, 1, out.Borrowing)

	require.True(t, out.Current[0].Overdue)
	require.False(t, out.Current[1].Overdue)
	require.False(t, out.Current[2].Overdue, "open-ended rentals are never overdue")
}

func TestMyRents_StoreDown(t *testing.T) {
	m := &mockRepo{listFn: func(ctx context.Context, userID string, finished bool) ([]HistoryRow, error) {
		return nil, errors.New("timeout")
	}}
	_, err := New(m).MyRents(context.Background(), "u1")
	require.Equal(t, errs.KindUnavailable, errs.KindOf(err))
}
