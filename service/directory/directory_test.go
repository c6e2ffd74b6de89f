package directory_test

import (
	"context"
	"testing"
	"time"

	"bookshare/model"
	"bookshare/repository/memory"
	"bookshare/service/directory"
	"bookshare/service/errs"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func ptr(s string) *string { return &s }

func lookup() directory.Lookup {
	return directory.Lookup{
		Books: map[string]model.Book{"b1": {ID: "b1", Title: "Solaris", OwnerID: "o"}},
		Users: map[string]model.User{
			"o": {ID: "o", FirstName: "Olga"},
			"c": {ID: "c", Email: "cyryl@example.com"},
		},
		Threads: map[string]model.Thread{"t1": {ID: "t1", BookID: "b1", OwnerID: "o", OtherUserID: "c"}},
	}
}

func TestGroup_ResolvesThreadRecord(t *testing.T) {
	msgs := []model.Message{
		{ID: "02", SenderID: "o", RecipientID: "c", Body: "Sure", Kind: model.KindChat, ThreadID: ptr("t1"), CreatedAt: t0.Add(time.Minute)},
		{ID: "01", SenderID: "c", RecipientID: "o", Body: "Requested rent period from 01.05.2024", Kind: model.KindSystem, Event: model.EventProposal, ThreadID: ptr("t1"), CreatedAt: t0},
		{ID: "01b", SenderID: "c", RecipientID: "o", Body: "Can I?", Kind: model.KindChat, ThreadID: ptr("t1"), CreatedAt: t0},
	}

	views := directory.Group(msgs, "c", lookup())
	require.Len(t, views, 1)
	v := views[0]
	require.Equal(t, "t1", v.ThreadID)
	require.Equal(t, "Solaris", v.BookTitle)
	require.Equal(t, "Olga", v.OwnerName)
	require.Equal(t, "o", v.CounterpartID)

	// equal timestamps fall back to id order
	require.Equal(t, []string{"01", "01b", "02"}, []string{v.Messages[0].ID, v.Messages[1].ID, v.Messages[2].ID})
	require.Equal(t, "01", v.Head.ID)
	require.True(t, v.Messages[0].IsSystem())
	require.Empty(t, v.Messages[0].AuthorName)
	require.True(t, v.Messages[1].IsMine)
	require.Equal(t, "cyryl", v.Messages[1].AuthorName)
	require.True(t, v.Messages[2].ToMe)
	require.Equal(t, 1, v.Unread)
	require.Equal(t, t0.Add(time.Minute), v.LastAt)
}

func TestGroup_LegacyHead(t *testing.T) {
	msgs := []model.Message{
		{ID: "h", SenderID: "c", RecipientID: "o", Body: "Hi", Kind: model.KindChat, CreatedAt: t0},
		{ID: "r", SenderID: "o", RecipientID: "c", Body: "Hello", Kind: model.KindChat, ThreadID: ptr("h"), CreatedAt: t0.Add(time.Second)},
		{ID: "x", SenderID: "o", RecipientID: "c", Body: "Other", Kind: model.KindChat, ThreadID: ptr("t1"), CreatedAt: t0.Add(time.Hour)},
	}

	views := directory.Group(msgs, "o", lookup())
	require.Len(t, views, 2)
	require.Equal(t, "t1", views[0].ThreadID, "most recent thread first")

	legacy := views[1]
	require.Equal(t, "h", legacy.ThreadID)
	require.Equal(t, "o", legacy.OwnerID)
	require.Equal(t, "c", legacy.CounterpartID)
	require.Len(t, legacy.Messages, 2)
	require.Equal(t, "h", legacy.Head.ID)
}

func TestGroup_StableAcrossInputOrder(t *testing.T) {
	msgs := []model.Message{
		{ID: "a", ThreadID: ptr("t1"), CreatedAt: t0},
		{ID: "b", ThreadID: ptr("t1"), CreatedAt: t0},
		{ID: "c", ThreadID: ptr("t1"), CreatedAt: t0.Add(-time.Second)},
	}
	rev := []model.Message{msgs[2], msgs[1], msgs[0]}

	a := directory.Group(msgs, "o", lookup())
	b := directory.Group(rev, "o", lookup())
	require.Equal(t, a, b)
	require.Equal(t, "c", a[0].Head.ID)
}

func seed(t *testing.T) (*memory.Store, directory.Service) {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	st.PutUser(model.User{ID: "o", FirstName: "Olga"})
	st.PutUser(model.User{ID: "c", FirstName: "Cyryl"})
	require.NoError(t, st.Books().Create(ctx, &model.Book{ID: "b1", Title: "Solaris", OwnerID: "o", Rent: true}))
	require.NoError(t, st.Threads().Create(ctx, &model.Thread{ID: "t1", BookID: "b1", OwnerID: "o", OtherUserID: "c", UpdatedAt: t0}))
	for i, m := range []model.Message{
		{ID: "m1", SenderID: "c", RecipientID: "o", Body: "Can I?", Kind: model.KindChat, ThreadID: ptr("t1")},
		{ID: "m2", SenderID: "o", RecipientID: "c", Body: "Yes", Kind: model.KindChat, ThreadID: ptr("t1")},
	} {
		m := m
		m.CreatedAt = t0.Add(time.Duration(i) * time.Minute)
		require.NoError(t, st.Messages().Insert(ctx, &m))
	}
	return st, directory.New(st.Messages(), st.Threads(), st.Books(), st.Users())
}

func TestInboxAndTimeline(t *testing.T) {
	ctx := context.Background()
	_, svc := seed(t)

	inbox, err := svc.Inbox(ctx, "o")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.Equal(t, "Solaris", inbox[0].BookTitle)
	require.Equal(t, "Cyryl", inbox[0].CounterpartName)
	require.Equal(t, 1, inbox[0].Unread)

	tl, err := svc.Timeline(ctx, "c", "t1")
	require.NoError(t, err)
	require.Len(t, tl.Messages, 2)
	require.Equal(t, "m1", tl.Head.ID)

	_, err = svc.Timeline(ctx, "stranger", "t1")
	require.Equal(t, errs.KindAuthorization, errs.KindOf(err))

	_, err = svc.Timeline(ctx, "o", "nope")
	require.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestMarkRead_RecipientOnly(t *testing.T) {
	ctx := context.Background()
	st, svc := seed(t)

	err := svc.MarkRead(ctx, "c", "m1")
	require.Equal(t, errs.ErrNotRecipient, errs.Code(err))

	require.NoError(t, svc.MarkRead(ctx, "o", "m1"))
	m, err := st.Messages().ByID(ctx, "m1")
	require.NoError(t, err)
	require.True(t, m.Read)

	err = svc.MarkRead(ctx, "o", "missing")
	require.Equal(t, errs.KindNotFound, errs.KindOf(err))

	inbox, err := svc.Inbox(ctx, "o")
	require.NoError(t, err)
	require.Zero(t, inbox[0].Unread)
}
