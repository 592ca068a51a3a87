package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated        = "OrderCreated"
	EventOrderApproved       = "OrderApproved"
	EventOrderRejected       = "OrderRejected"
	EventOrderPaid           = "OrderPaid"
	EventNotificationCreated = "NotificationCreated"
)

const EventVersion = 1

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // service name, atau instance id untuk fan-out
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya order id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

type LineQty struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type OrderEventPayload struct {
	OrderID    int64           `json:"order_id"`
	SalesRepID int64           `json:"sales_rep_id"`
	ActorID    int64           `json:"actor_id"`
	Status     Status          `json:"status"`
	IsPaid     bool            `json:"is_paid"`
	Total      decimal.Decimal `json:"total"`
	Lines      []LineQty       `json:"lines"`
}

func NewOrderEventPayload(o Order, actorID int64) OrderEventPayload {
	lines := make([]LineQty, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, LineQty{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return OrderEventPayload{
		OrderID:    o.ID,
		SalesRepID: o.SalesRepID,
		ActorID:    actorID,
		Status:     o.Status,
		IsPaid:     o.IsPaid,
		Total:      o.Total(),
		Lines:      lines,
	}
}

type NotificationCreatedPayload struct {
	Notification Notification `json:"notification"`
}
