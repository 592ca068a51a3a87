package sales

import (
	"context"
	"time"

	kafkax "github.com/ariefcatur/go-sales-orders/internal/kafka"
	"github.com/ariefcatur/go-sales-orders/internal/orders"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// Events receives lifecycle facts after they are committed. Implementations must not block.
type Events interface {
	Publish(ctx context.Context, eventType string, o orders.Order, actor orders.Actor)
}

type NopEvents struct{}

func (NopEvents) Publish(context.Context, string, orders.Order, orders.Actor) {}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// KafkaEvents publishes envelope v1 messages keyed by order id.
type KafkaEvents struct {
	producer Publisher
	service  string
}

func NewKafkaEvents(p Publisher, service string) *KafkaEvents {
	return &KafkaEvents{producer: p, service: service}
}

func (e *KafkaEvents) Publish(ctx context.Context, eventType string, o orders.Order, actor orders.Actor) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  orders.EventVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.service,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: string(orders.PartitionKey(o.ID)),
		Payload:       kafkax.MustMarshal(orders.NewOrderEventPayload(o, actor.ID)),
	}
	e.producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
