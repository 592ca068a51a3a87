package orders

import "context"

type OrderRepository interface {
	// Create inserts the order and its lines, filling in their IDs.
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id int64) (Order, error)
	// GetForUpdate loads the order and locks its row until the surrounding tx ends.
	GetForUpdate(ctx context.Context, id int64) (Order, error)
	// UpdateState persists status, payment and approval fields. Lines are immutable.
	UpdateState(ctx context.Context, o Order) error
	List(ctx context.Context, f OrderFilter) ([]Order, error)
}

type ProductRepository interface {
	// GetMany returns the products that exist among ids; missing ids are simply absent.
	GetMany(ctx context.Context, ids []int64) (map[int64]Product, error)
	// LockMany is GetMany with row locks taken in ascending id order.
	LockMany(ctx context.Context, ids []int64) (map[int64]Product, error)
	// AdjustStock adds delta to stock and fails with ErrInsufficientStock instead of going negative.
	AdjustStock(ctx context.Context, id int64, delta int) error
	List(ctx context.Context) ([]Product, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	ListForReceiver(ctx context.Context, receiverID int64, unreadOnly bool) ([]Notification, error)
	// MarkRead fails with ErrNotFound unless the notification belongs to receiverID.
	MarkRead(ctx context.Context, id, receiverID int64) error
	MarkAllRead(ctx context.Context, receiverID int64) (int64, error)
}

// Tx exposes the repositories bound to one unit of work.
type Tx interface {
	Orders() OrderRepository
	Products() ProductRepository
	Notifications() NotificationRepository
}

// Store gives auto-commit access through its own Tx methods, and atomic units of work
// through InTx: fn's writes are committed together when it returns nil and discarded otherwise.
type Store interface {
	Tx
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
