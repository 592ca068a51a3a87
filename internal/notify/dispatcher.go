package notify

import (
	"context"
	"strconv"
	"sync"
	"time"

	kafkax "github.com/ariefcatur/go-sales-orders/internal/kafka"
	"github.com/ariefcatur/go-sales-orders/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const defaultPushTimeout = 2 * time.Second

// Publisher is the subset of kafka.Producer the dispatcher needs.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Dispatcher struct {
	registry    *Registry
	fanout      Publisher
	instance    string
	pushTimeout time.Duration
	log         *zap.Logger
	inflight    sync.WaitGroup
}

type Option func(*Dispatcher)

// WithFanout publishes every delivered notification so other instances can push it
// to receivers connected to them.
func WithFanout(p Publisher, instanceID string) Option {
	return func(d *Dispatcher) {
		d.fanout = p
		d.instance = instanceID
	}
}

func WithPushTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.pushTimeout = t }
}

func NewDispatcher(reg *Registry, log *zap.Logger, opts ...Option) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{
		registry:    reg,
		pushTimeout: defaultPushTimeout,
		log:         log.Named("notify"),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Record persists a notification through repo, which may be bound to the caller's tx.
func (d *Dispatcher) Record(ctx context.Context, repo orders.NotificationRepository, typ orders.NotificationType, message string, sender, receiver int64) (orders.Notification, error) {
	n := orders.Notification{
		Type:       typ,
		Message:    message,
		SenderID:   sender,
		ReceiverID: receiver,
		CreatedAt:  time.Now().UTC(),
	}
	if err := repo.Create(ctx, &n); err != nil {
		return orders.Notification{}, err
	}
	return n, nil
}

// Deliver pushes an already persisted notification. It never fails: a receiver
// without a live connection picks the notification up on the next fetch.
func (d *Dispatcher) Deliver(ctx context.Context, n orders.Notification) bool {
	pushed := pushLocal(ctx, d.registry, n, d.pushTimeout, d.log)
	if d.fanout != nil {
		env := orders.Envelope{
			EventID:       uuid.NewString(),
			EventType:     orders.EventNotificationCreated,
			EventVersion:  orders.EventVersion,
			OccurredAt:    time.Now().UTC(),
			Producer:      d.instance,
			CorrelationID: strconv.FormatInt(n.ID, 10),
			Payload:       kafkax.MustMarshal(orders.NotificationCreatedPayload{Notification: n}),
		}
		d.fanout.Publish(orders.ReceiverKey(n.ReceiverID), kafkax.MustMarshal(env),
			kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventNotificationCreated)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}
	return pushed
}

// DeliverAsync runs Deliver off the caller's goroutine so a slow receiver cannot
// delay the response for a transition that is already committed.
func (d *Dispatcher) DeliverAsync(ctx context.Context, n orders.Notification) {
	ctx = context.WithoutCancel(ctx)
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		if d.Deliver(ctx, n) {
			d.log.Debug("notification pushed", zap.Int64("notification_id", n.ID), zap.Int64("receiver_id", n.ReceiverID))
		}
	}()
}

// Wait blocks until every DeliverAsync started so far has finished.
func (d *Dispatcher) Wait() { d.inflight.Wait() }

// Send persists first, then attempts delivery.
func (d *Dispatcher) Send(ctx context.Context, repo orders.NotificationRepository, typ orders.NotificationType, message string, sender, receiver int64) (orders.Notification, error) {
	n, err := d.Record(ctx, repo, typ, message, sender, receiver)
	if err != nil {
		return orders.Notification{}, err
	}
	d.Deliver(ctx, n)
	return n, nil
}

func pushLocal(ctx context.Context, reg *Registry, n orders.Notification, timeout time.Duration, log *zap.Logger) bool {
	if reg == nil {
		return false
	}
	c, ok := reg.Lookup(n.ReceiverID)
	if !ok {
		log.Debug("receiver offline, push skipped", zap.Int64("receiver_id", n.ReceiverID), zap.Int64("notification_id", n.ID))
		return false
	}
	// delivery outlives the request that triggered it
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := c.Push(pctx, Event{Name: EventNotification, Data: n}); err != nil {
		log.Warn("push failed",
			zap.Int64("receiver_id", n.ReceiverID),
			zap.String("conn_id", c.ID()),
			zap.Error(err),
		)
		return false
	}
	return true
}
