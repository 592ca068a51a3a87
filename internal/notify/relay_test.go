package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	kafkax "github.com/ariefcatur/go-sales-orders/internal/kafka"
	"github.com/ariefcatur/go-sales-orders/internal/orders"
	"github.com/ariefcatur/go-sales-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memDedup struct {
	seen map[string]bool
	err  error
}

func (d *memDedup) FirstSeen(_ context.Context, id string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func notificationMessage(t *testing.T, producer, eventID string, receiver int64) kafkago.Message {
	t.Helper()
	env := orders.Envelope{
		EventID:      eventID,
		EventType:    orders.EventNotificationCreated,
		EventVersion: orders.EventVersion,
		Producer:     producer,
		Payload: kafkax.MustMarshal(orders.NotificationCreatedPayload{
			Notification: orders.Notification{ID: 1, ReceiverID: receiver, Message: "relayed"},
		}),
	}
	return kafkago.Message{Key: orders.ReceiverKey(receiver), Value: kafkax.MustMarshal(env)}
}

func TestRelay_PushesRemoteNotificationOnce(t *testing.T) {
	reg := NewRegistry()
	conn := &mockConn{id: "c1"}
	conn.On("Push", mock.Anything).Return(nil).Once()
	reg.Register(5, conn)

	r := NewRelay(reg, "api-1", &memDedup{seen: map[string]bool{}}, nil)
	msg := notificationMessage(t, "api-2", "ev-1", 5)

	require.NoError(t, r.HandleMessage(context.Background(), msg))
	require.NoError(t, r.HandleMessage(context.Background(), msg))
	conn.AssertExpectations(t)
}

func TestRelay_SkipsOwnInstance(t *testing.T) {
	reg := NewRegistry()
	conn := &mockConn{id: "c1"}
	reg.Register(5, conn)

	r := NewRelay(reg, "api-1", nil, nil)
	require.NoError(t, r.HandleMessage(context.Background(), notificationMessage(t, "api-1", "ev-1", 5)))
	conn.AssertNotCalled(t, "Push", mock.Anything)
}

func TestRelay_DedupErrorStillDelivers(t *testing.T) {
	reg := NewRegistry()
	conn := &mockConn{id: "c1"}
	conn.On("Push", mock.Anything).Return(nil).Once()
	reg.Register(5, conn)

	r := NewRelay(reg, "api-1", &memDedup{err: errors.New("redis down")}, nil)
	require.NoError(t, r.HandleMessage(context.Background(), notificationMessage(t, "api-2", "ev-1", 5)))
	conn.AssertExpectations(t)
}

func TestRelay_IgnoresOtherEvents(t *testing.T) {
	r := NewRelay(NewRegistry(), "api-1", nil, nil)
	env := orders.Envelope{EventID: "x", EventType: orders.EventOrderPaid, EventVersion: 1}
	assert.NoError(t, r.HandleMessage(context.Background(), kafkago.Message{Value: kafkax.MustMarshal(env)}))

	assert.Error(t, r.HandleMessage(context.Background(), kafkago.Message{Value: []byte("{not json")}))
}

func TestRelay_EveryInstancePushesWithSharedRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	// instance a produced the event; b and c both consume it through their own groups
	regB, regC := NewRegistry(), NewRegistry()
	relayB := NewRelay(regB, "b", redisx.NewDedup(rdb, "sales-api", "b"), nil)
	relayC := NewRelay(regC, "c", redisx.NewDedup(rdb, "sales-api", "c"), nil)

	conn := &mockConn{id: "on-c"}
	conn.On("Push", mock.Anything).Return(nil).Once()
	regC.Register(5, conn)

	msg := notificationMessage(t, "a", "ev-42", 5)
	require.NoError(t, relayB.HandleMessage(context.Background(), msg))
	require.NoError(t, relayC.HandleMessage(context.Background(), msg))
	// redelivery to c is still deduplicated
	require.NoError(t, relayC.HandleMessage(context.Background(), msg))

	conn.AssertExpectations(t)
}
