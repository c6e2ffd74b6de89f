package inflight

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedis(rdb, ttl)
}

func TestRedis_SecondAcquireBusy(t *testing.T) {
	mr, g := newRedis(t, time.Minute)
	ctx := context.Background()

	release, err := g.Acquire(ctx, "agree:t1")
	require.NoError(t, err)
	require.True(t, mr.Exists("inflight:agree:t1"))
	require.Equal(t, time.Minute, mr.TTL("inflight:agree:t1"))

	_, err = g.Acquire(ctx, "agree:t1")
	require.ErrorIs(t, err, ErrBusy)

	rel2, err := g.Acquire(ctx, "agree:t2")
	require.NoError(t, err)
	rel2()

	release()
	release()
	require.False(t, mr.Exists("inflight:agree:t1"))

	rel3, err := g.Acquire(ctx, "agree:t1")
	require.NoError(t, err)
	rel3()
}

func TestRedis_ExpiredHolderKeepsSuccessorKey(t *testing.T) {
	mr, g := newRedis(t, time.Second)
	ctx := context.Background()

	stale, err := g.Acquire(ctx, "finish:b1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists("inflight:finish:b1"))

	current, err := g.Acquire(ctx, "finish:b1")
	require.NoError(t, err)
	token, err := mr.Get("inflight:finish:b1")
	require.NoError(t, err)

	// the first holder finishes late and must not free the second one's key
	stale()
	got, err := mr.Get("inflight:finish:b1")
	require.NoError(t, err)
	require.Equal(t, token, got)

	_, err = g.Acquire(ctx, "finish:b1")
	require.ErrorIs(t, err, ErrBusy)

	current()
	require.False(t, mr.Exists("inflight:finish:b1"))
}

func TestRedis_ServerDown(t *testing.T) {
	mr, g := newRedis(t, time.Minute)
	mr.Close()
	_, err := g.Acquire(context.Background(), "agree:t1")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrBusy)
}
