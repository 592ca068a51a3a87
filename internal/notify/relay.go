package notify

import (
	"context"
	"time"

	kafkax "github.com/ariefcatur/go-sales-orders/internal/kafka"
	"github.com/ariefcatur/go-sales-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Deduper reports whether an event id is seen for the first time.
type Deduper interface {
	FirstSeen(ctx context.Context, eventID string) (bool, error)
}

// Relay consumes NotificationCreated events published by other instances and
// pushes them to receivers connected to this one.
type Relay struct {
	registry *Registry
	instance string
	dedup    Deduper
	timeout  time.Duration
	log      *zap.Logger
}

func NewRelay(reg *Registry, instanceID string, dedup Deduper, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{
		registry: reg,
		instance: instanceID,
		dedup:    dedup,
		timeout:  defaultPushTimeout,
		log:      log.Named("relay"),
	}
}

// HandleMessage dipasang sebagai handler consumer.
func (r *Relay) HandleMessage(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventNotificationCreated {
		return nil
	}
	if env.Producer == r.instance {
		return nil // sudah di-push lokal oleh Dispatcher
	}

	if r.dedup != nil {
		first, err := r.dedup.FirstSeen(ctx, env.EventID)
		if err != nil {
			r.log.Warn("dedup unavailable", zap.String("event_id", env.EventID), zap.Error(err))
		} else if !first {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.NotificationCreatedPayload](env.Payload)
	if err != nil {
		return err
	}
	pushLocal(ctx, r.registry, p.Notification, r.timeout, r.log)
	return nil
}
