package orders

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingOrder() Order {
	return Order{ID: 7, SalesRepID: 3, Status: StatusPending, CreatedAt: time.Now()}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusApproved))
	assert.True(t, CanTransition(StatusPending, StatusRejected))
	assert.False(t, CanTransition(StatusApproved, StatusRejected))
	assert.False(t, CanTransition(StatusApproved, StatusApproved))
	assert.False(t, CanTransition(StatusRejected, StatusApproved))
	assert.False(t, CanTransition(Status("bogus"), StatusApproved))
}

func TestParseStatus(t *testing.T) {
	st, ok := ParseStatus(" Approved ")
	assert.True(t, ok)
	assert.Equal(t, StatusApproved, st)

	_, ok = ParseStatus("shipped")
	assert.False(t, ok)
}

func TestValidateLines(t *testing.T) {
	assert.ErrorIs(t, ValidateLines(nil), ErrValidation)
	assert.ErrorIs(t, ValidateLines([]LineInput{{ProductID: 1, Quantity: 0}}), ErrValidation)
	assert.ErrorIs(t, ValidateLines([]LineInput{{ProductID: 1, Quantity: -2}}), ErrValidation)
	assert.ErrorIs(t, ValidateLines([]LineInput{{ProductID: 0, Quantity: 1}}), ErrValidation)
	assert.NoError(t, ValidateLines([]LineInput{{ProductID: 1, Quantity: 1}}))
}

func TestNewOrder_CapturesPrice(t *testing.T) {
	products := map[int64]Product{
		1: {ID: 1, Name: "Widget", SKU: "W-1", UnitPrice: decimal.RequireFromString("12.50")},
	}
	o, err := NewOrder(3, []LineInput{{ProductID: 1, Quantity: 4}}, products, time.Now())
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	assert.False(t, o.IsPaid)
	assert.Nil(t, o.ApprovedAt)
	require.Len(t, o.Lines, 1)
	assert.True(t, o.Lines[0].UnitPrice.Equal(decimal.RequireFromString("12.50")))
	assert.True(t, o.Lines[0].TotalPrice.Equal(decimal.RequireFromString("50")))
	assert.True(t, o.Total().Equal(decimal.RequireFromString("50")))

	// later price changes do not reach the snapshot
	p := products[1]
	p.UnitPrice = decimal.RequireFromString("99")
	products[1] = p
	assert.True(t, o.Lines[0].UnitPrice.Equal(decimal.RequireFromString("12.50")))
}

func TestNewOrder_UnknownProduct(t *testing.T) {
	_, err := NewOrder(3, []LineInput{{ProductID: 9, Quantity: 1}}, map[int64]Product{}, time.Now())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOrder_Approve(t *testing.T) {
	o := pendingOrder()
	now := time.Now()

	require.NoError(t, o.Approve(42, now))
	assert.Equal(t, StatusApproved, o.Status)
	require.NotNil(t, o.ApprovedAt)
	assert.Equal(t, now, *o.ApprovedAt)
	require.NotNil(t, o.ApprovedByID)
	assert.Equal(t, int64(42), *o.ApprovedByID)

	err := o.Approve(42, now)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.ErrorIs(t, o.Reject(42, now), ErrAlreadyProcessed)
}

func TestOrder_Reject(t *testing.T) {
	o := pendingOrder()
	require.NoError(t, o.Reject(42, time.Now()))
	assert.Equal(t, StatusRejected, o.Status)
	assert.NotNil(t, o.ApprovedAt)

	assert.ErrorIs(t, o.Reject(42, time.Now()), ErrAlreadyProcessed)
	assert.ErrorIs(t, o.MarkPaid(time.Now()), ErrNotApproved)
	assert.False(t, o.IsPaid)
}

func TestOrder_MarkPaid(t *testing.T) {
	o := pendingOrder()
	err := o.MarkPaid(time.Now())
	assert.ErrorIs(t, err, ErrNotApproved)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, o.Approve(1, time.Now()))
	require.NoError(t, o.MarkPaid(time.Now()))
	assert.True(t, o.IsPaid)
	assert.NotNil(t, o.PaidAt)

	err = o.MarkPaid(time.Now())
	assert.ErrorIs(t, err, ErrAlreadyPaid)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NotErrorIs(t, err, ErrNotApproved)
}

func TestOrder_Quantities(t *testing.T) {
	o := Order{Lines: []OrderLine{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
		{ProductID: 1, Quantity: 3},
	}}
	assert.Equal(t, map[int64]int{1: 5, 2: 1}, o.Quantities())
}

func TestInsufficientStockError(t *testing.T) {
	var err error = &InsufficientStockError{ProductID: 5, Required: 3, Available: 1}
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "product 5")
	assert.True(t, IsDomainError(err))
	assert.False(t, IsDomainError(assert.AnError))
}
