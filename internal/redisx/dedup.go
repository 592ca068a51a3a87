package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Dedup marks event ids as processed by one consumer instance. Other instances
// receiving the same event keep their own marks.
type Dedup struct {
	RDB      *redis.Client
	Service  string
	Instance string
}

func NewDedup(rdb *redis.Client, service, instance string) *Dedup {
	return &Dedup{RDB: rdb, Service: service, Instance: instance}
}

func (d *Dedup) Key(eventID string) string {
	return fmt.Sprintf(KeyDedup, d.Service, d.Instance, eventID)
}

// FirstSeen returns true exactly once per event id within TTLDedup.
func (d *Dedup) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	return d.RDB.SetNX(ctx, d.Key(eventID), 1, TTLDedup).Result()
}
