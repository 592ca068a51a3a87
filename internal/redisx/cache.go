package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-sales-orders/internal/orders"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OrderStatus is the cached read model behind GET /orders/{id}/status.
type OrderStatus struct {
	OrderID    int64         `json:"order_id"`
	Status     orders.Status `json:"status"`
	IsPaid     bool          `json:"is_paid"`
	ApprovedAt *time.Time    `json:"approved_at,omitempty"`
	PaidAt     *time.Time    `json:"paid_at,omitempty"`
}

func StatusOf(o orders.Order) OrderStatus {
	return OrderStatus{
		OrderID:    o.ID,
		Status:     o.Status,
		IsPaid:     o.IsPaid,
		ApprovedAt: o.ApprovedAt,
		PaidAt:     o.PaidAt,
	}
}

// StatusCache is a read-through helper; the database stays the source of truth, so
// every redis failure degrades to a miss.
type StatusCache struct {
	RDB *redis.Client
	TTL time.Duration
	Log *zap.Logger
}

func NewStatusCache(rdb *redis.Client, log *zap.Logger) *StatusCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatusCache{RDB: rdb, TTL: TTLStatusCache, Log: log.Named("status_cache")}
}

func (c *StatusCache) Get(ctx context.Context, orderID int64) (OrderStatus, bool) {
	var st OrderStatus
	b, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.Log.Debug("cache get failed", zap.Int64("order_id", orderID), zap.Error(err))
		}
		return st, false
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return st, false
	}
	return st, true
}

func (c *StatusCache) Put(ctx context.Context, o orders.Order) {
	b, err := json.Marshal(StatusOf(o))
	if err != nil {
		return
	}
	if err := c.RDB.Set(ctx, fmt.Sprintf(KeyOrderStatus, o.ID), b, c.TTL).Err(); err != nil {
		c.Log.Debug("cache put failed", zap.Int64("order_id", o.ID), zap.Error(err))
	}
}
