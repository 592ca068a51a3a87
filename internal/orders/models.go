package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleSales      Role = "sales"
	RoleAccountant Role = "accountant"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}

type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	IsActive bool   `json:"is_active"`
}

type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Stock     int             `json:"stock"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Order struct {
	ID           int64       `json:"id"`
	SalesRepID   int64       `json:"sales_rep_id"`
	ApprovedByID *int64      `json:"approved_by_id,omitempty"`
	Status       Status      `json:"status"` // lihat status.go
	IsPaid       bool        `json:"is_paid"`
	CreatedAt    time.Time   `json:"created_at"`
	ApprovedAt   *time.Time  `json:"approved_at,omitempty"`
	PaidAt       *time.Time  `json:"paid_at,omitempty"`
	Lines        []OrderLine `json:"lines"`
}

// Total sums the line totals.
func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.TotalPrice)
	}
	return total
}

// OrderLine snapshots the product price at creation time. Lines never change afterwards.
type OrderLine struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

func NewOrderLine(p Product, qty int) OrderLine {
	return OrderLine{
		ProductID:   p.ID,
		ProductName: p.Name,
		SKU:         p.SKU,
		Quantity:    qty,
		UnitPrice:   p.UnitPrice,
		TotalPrice:  p.UnitPrice.Mul(decimal.NewFromInt(int64(qty))),
	}
}

type NotificationType string

const (
	NotificationOrderApproved NotificationType = "order-approved"
	NotificationOrderRejected NotificationType = "order-rejected"
)

type Notification struct {
	ID         int64            `json:"id"`
	Type       NotificationType `json:"type"`
	Message    string           `json:"message"`
	SenderID   int64            `json:"sender_id"`
	ReceiverID int64            `json:"receiver_id"`
	IsRead     bool             `json:"is_read"`
	CreatedAt  time.Time        `json:"created_at"`
}

// LineInput is one requested (product, quantity) pair of a new order.
type LineInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// OrderFilter narrows List results. Nil fields are ignored.
type OrderFilter struct {
	SalesRepID *int64
	Status     *Status
	IsPaid     *bool
}
