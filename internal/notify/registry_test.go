package notify

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockConn struct {
	mock.Mock
	id string
}

func (c *mockConn) ID() string { return c.id }

func (c *mockConn) Push(_ context.Context, ev Event) error {
	args := c.Called(ev)
	return args.Error(0)
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	r := NewRegistry()
	a := &mockConn{id: "a"}
	b := &mockConn{id: "b"}

	r.Register(1, a)
	r.Register(1, b)

	got, ok := r.Lookup(1)
	assert.True(t, ok)
	assert.Equal(t, "b", got.ID())
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_RemoveByHandle(t *testing.T) {
	r := NewRegistry()
	a := &mockConn{id: "a"}
	b := &mockConn{id: "b"}
	r.Register(1, a)
	r.Register(2, a)
	r.Register(3, b)

	users := r.Remove(a)
	assert.ElementsMatch(t, []int64{1, 2}, users)

	_, ok := r.Lookup(1)
	assert.False(t, ok)
	_, ok = r.Lookup(3)
	assert.True(t, ok)

	// a stale handle must not evict a newer connection
	r.Register(3, &mockConn{id: "c"})
	assert.Empty(t, r.Remove(b))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := int64(0); i < 50; i++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			c := &mockConn{id: "x"}
			r.Register(uid, c)
			r.Lookup(uid)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, r.Len())
}
