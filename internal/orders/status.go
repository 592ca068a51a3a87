package orders

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:  {StatusApproved: true, StatusRejected: true},
	StatusApproved: {},
	StatusRejected: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	_, ok := validNext[st]
	return st, ok
}

// ValidateLines checks a create request before anything is loaded or written.
func ValidateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return validationf("at least one item is required")
	}
	for _, l := range lines {
		if l.ProductID <= 0 {
			return validationf("invalid product id %d", l.ProductID)
		}
		if l.Quantity <= 0 {
			return validationf("invalid quantity %d for product %d", l.Quantity, l.ProductID)
		}
	}
	return nil
}

// NewOrder builds a pending, unpaid order from validated lines and resolved products.
func NewOrder(salesRepID int64, lines []LineInput, products map[int64]Product, now time.Time) (Order, error) {
	if err := ValidateLines(lines); err != nil {
		return Order{}, err
	}
	o := Order{
		SalesRepID: salesRepID,
		Status:     StatusPending,
		CreatedAt:  now,
		Lines:      make([]OrderLine, 0, len(lines)),
	}
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return Order{}, validationf("product %d not found", l.ProductID)
		}
		o.Lines = append(o.Lines, NewOrderLine(p, l.Quantity))
	}
	return o, nil
}

func (o *Order) decide(to Status, actorID int64, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return ErrAlreadyProcessed
	}
	o.Status = to
	o.ApprovedAt = &now
	o.ApprovedByID = &actorID
	return nil
}

// Approve moves a pending order to approved. Stock is the caller's concern.
func (o *Order) Approve(actorID int64, now time.Time) error {
	return o.decide(StatusApproved, actorID, now)
}

func (o *Order) Reject(actorID int64, now time.Time) error {
	return o.decide(StatusRejected, actorID, now)
}

func (o *Order) MarkPaid(now time.Time) error {
	if o.Status != StatusApproved {
		return ErrNotApproved
	}
	if o.IsPaid {
		return ErrAlreadyPaid
	}
	o.IsPaid = true
	o.PaidAt = &now
	return nil
}

// Quantities sums line quantities per product.
func (o Order) Quantities() map[int64]int {
	out := make(map[int64]int, len(o.Lines))
	for _, l := range o.Lines {
		out[l.ProductID] += l.Quantity
	}
	return out
}
