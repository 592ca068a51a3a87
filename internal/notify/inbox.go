package notify

import (
	"context"

	"github.com/ariefcatur/go-sales-orders/internal/orders"
)

// Inbox is the polled side of notifications: everything the push path may have missed.
type Inbox struct {
	repo orders.NotificationRepository
}

func NewInbox(repo orders.NotificationRepository) *Inbox {
	return &Inbox{repo: repo}
}

func (in *Inbox) List(ctx context.Context, actor orders.Actor) ([]orders.Notification, error) {
	if actor.ID <= 0 {
		return nil, orders.ErrUnauthenticated
	}
	return in.repo.ListForReceiver(ctx, actor.ID, false)
}

func (in *Inbox) Unread(ctx context.Context, actor orders.Actor) ([]orders.Notification, error) {
	if actor.ID <= 0 {
		return nil, orders.ErrUnauthenticated
	}
	return in.repo.ListForReceiver(ctx, actor.ID, true)
}

// MarkRead only succeeds for the notification's receiver.
func (in *Inbox) MarkRead(ctx context.Context, actor orders.Actor, id int64) error {
	if actor.ID <= 0 {
		return orders.ErrUnauthenticated
	}
	return in.repo.MarkRead(ctx, id, actor.ID)
}

func (in *Inbox) MarkAllRead(ctx context.Context, actor orders.Actor) (int64, error) {
	if actor.ID <= 0 {
		return 0, orders.ErrUnauthenticated
	}
	return in.repo.MarkAllRead(ctx, actor.ID)
}
