package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_InTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	p := s.PutProduct(Product{Name: "A", SKU: "A", UnitPrice: decimal.NewFromInt(1), Stock: 10, IsActive: true})

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.Products().AdjustStock(ctx, p.ID, -4))
		require.NoError(t, tx.Notifications().Create(ctx, &Notification{Type: NotificationOrderApproved, ReceiverID: 1}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Products().GetMany(ctx, []int64{p.ID})
	require.NoError(t, err)
	assert.Equal(t, 10, got[p.ID].Stock)

	ns, err := s.Notifications().ListForReceiver(ctx, 1, false)
	require.NoError(t, err)
	assert.Empty(t, ns)
}

func TestMemStore_InTxCommits(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	p := s.PutProduct(Product{Name: "A", SKU: "A", Stock: 10, IsActive: true})

	err := s.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Products().AdjustStock(ctx, p.ID, -4)
	})
	require.NoError(t, err)

	got, _ := s.Products().GetMany(ctx, []int64{p.ID})
	assert.Equal(t, 6, got[p.ID].Stock)
}

func TestMemStore_AdjustStockNeverNegative(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	p := s.PutProduct(Product{SKU: "A", Stock: 2})

	err := s.Products().AdjustStock(ctx, p.ID, -3)
	var ise *InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, p.ID, ise.ProductID)
	assert.Equal(t, 3, ise.Required)
	assert.Equal(t, 2, ise.Available)

	assert.ErrorIs(t, s.Products().AdjustStock(ctx, 999, -1), ErrNotFound)
}

func TestMemStore_OrdersRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	o := Order{SalesRepID: 3, Status: StatusPending, CreatedAt: time.Now(), Lines: []OrderLine{
		{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1},
	}}
	require.NoError(t, s.Orders().Create(ctx, &o))
	assert.NotZero(t, o.ID)
	assert.NotZero(t, o.Lines[0].ID)
	assert.Equal(t, o.ID, o.Lines[1].OrderID)

	got, err := s.Orders().Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, got.Lines, 2)

	require.NoError(t, got.Approve(9, time.Now()))
	got.Lines = nil // lines are immutable and must survive a state update
	require.NoError(t, s.Orders().UpdateState(ctx, got))

	again, _ := s.Orders().Get(ctx, o.ID)
	assert.Equal(t, StatusApproved, again.Status)
	assert.Len(t, again.Lines, 2)

	_, err = s.Orders().Get(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemStore_ListFilter(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	base := time.Now()
	for i, rep := range []int64{1, 2, 1} {
		o := Order{SalesRepID: rep, Status: StatusPending, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.Orders().Create(ctx, &o))
	}

	rep := int64(1)
	list, err := s.Orders().List(ctx, OrderFilter{SalesRepID: &rep})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt), "newest first")

	approved := StatusApproved
	list, err = s.Orders().List(ctx, OrderFilter{Status: &approved})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemStore_Notifications(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	r := s.Notifications()

	a := Notification{Type: NotificationOrderApproved, ReceiverID: 5}
	b := Notification{Type: NotificationOrderRejected, ReceiverID: 5}
	c := Notification{Type: NotificationOrderRejected, ReceiverID: 6}
	for _, n := range []*Notification{&a, &b, &c} {
		require.NoError(t, r.Create(ctx, n))
	}

	assert.ErrorIs(t, r.MarkRead(ctx, a.ID, 6), ErrNotFound)
	require.NoError(t, r.MarkRead(ctx, a.ID, 5))

	unread, err := r.ListForReceiver(ctx, 5, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, b.ID, unread[0].ID)

	n, err := r.MarkAllRead(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	all, _ := r.ListForReceiver(ctx, 5, false)
	assert.Len(t, all, 2)
	other, _ := r.ListForReceiver(ctx, 6, true)
	assert.Len(t, other, 1)
}
