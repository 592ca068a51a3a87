package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-sales-orders/internal/orders"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// unreachable points at a closed port so every command fails fast.
func unreachable() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestStatusOf(t *testing.T) {
	now := time.Now()
	o := orders.Order{ID: 4, Status: orders.StatusApproved, IsPaid: true, ApprovedAt: &now, PaidAt: &now}
	st := StatusOf(o)
	assert.Equal(t, int64(4), st.OrderID)
	assert.Equal(t, orders.StatusApproved, st.Status)
	assert.True(t, st.IsPaid)
}

func TestStatusCache_PutGet(t *testing.T) {
	mr, rdb := newRedis(t)
	c := NewStatusCache(rdb, nil)
	ctx := context.Background()

	_, ok := c.Get(ctx, 7)
	assert.False(t, ok)

	c.Put(ctx, orders.Order{ID: 7, Status: orders.StatusApproved})
	st, ok := c.Get(ctx, 7)
	require.True(t, ok)
	assert.Equal(t, orders.StatusApproved, st.Status)
	assert.True(t, mr.Exists("order_status:7"))
	assert.Equal(t, TTLStatusCache, mr.TTL("order_status:7"))

	mr.FastForward(TTLStatusCache + time.Second)
	_, ok = c.Get(ctx, 7)
	assert.False(t, ok)
}

func TestStatusCache_DegradesToMiss(t *testing.T) {
	rdb := unreachable()
	defer rdb.Close()
	c := NewStatusCache(rdb, nil)

	assert.NotPanics(t, func() { c.Put(context.Background(), orders.Order{ID: 1, Status: orders.StatusPending}) })
	_, ok := c.Get(context.Background(), 1)
	assert.False(t, ok)
}

func TestDedup_FirstSeenOncePerInstance(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()
	b := NewDedup(rdb, "sales-api", "b")
	c := NewDedup(rdb, "sales-api", "c")

	first, err := b.FirstSeen(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, first)

	first, err = b.FirstSeen(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, first)

	// another instance consumes the same event through its own group
	first, err = c.FirstSeen(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, first)

	assert.NotEqual(t, b.Key("ev-1"), c.Key("ev-1"))
}

func TestDedup_ReportsRedisError(t *testing.T) {
	rdb := unreachable()
	defer rdb.Close()

	first, err := NewDedup(rdb, "api", "a").FirstSeen(context.Background(), "ev-1")
	assert.Error(t, err)
	assert.False(t, first)
}
