package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-sales-orders/internal/inventory"
	"github.com/ariefcatur/go-sales-orders/internal/notify"
	"github.com/ariefcatur/go-sales-orders/internal/orders"
	"go.uber.org/zap"
)

// Service coordinates the order lifecycle. Each transition is one store transaction;
// notification push and event publishing happen after commit and cannot fail it.
type Service struct {
	store      orders.Store
	ledger     *inventory.Ledger
	dispatcher *notify.Dispatcher
	events     Events
	log        *zap.Logger
	now        func() time.Time
}

func NewService(store orders.Store, ledger *inventory.Ledger, dispatcher *notify.Dispatcher, events Events, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if events == nil {
		events = NopEvents{}
	}
	return &Service{
		store:      store,
		ledger:     ledger,
		dispatcher: dispatcher,
		events:     events,
		log:        log.Named("sales"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func requireActor(a orders.Actor) error {
	if a.ID <= 0 {
		return orders.ErrUnauthenticated
	}
	return nil
}

// fail passes domain errors through and turns anything else into ErrPersistence.
func (s *Service) fail(op string, err error, fields ...zap.Field) error {
	if orders.IsDomainError(err) {
		s.log.Debug(op+" refused", append(fields, zap.Error(err))...)
		return err
	}
	s.log.Error(op+" failed", append(fields, zap.Error(err))...)
	return fmt.Errorf("%w: %s: %w", orders.ErrPersistence, op, err)
}

func (s *Service) CreateOrder(ctx context.Context, actor orders.Actor, lines []orders.LineInput) (orders.Order, error) {
	if err := requireActor(actor); err != nil {
		return orders.Order{}, err
	}
	if err := orders.ValidateLines(lines); err != nil {
		return orders.Order{}, err
	}

	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]bool, len(lines))
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}

	var created orders.Order
	err := s.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		products, err := tx.Products().GetMany(ctx, ids)
		if err != nil {
			return err
		}
		// harga diambil dari table products (hindari trust dari client)
		o, err := orders.NewOrder(actor.ID, lines, products, s.now())
		if err != nil {
			return err
		}
		if err := tx.Orders().Create(ctx, &o); err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		return orders.Order{}, s.fail("create order", err, zap.Int64("actor_id", actor.ID))
	}

	s.log.Info("order created",
		zap.Int64("order_id", created.ID),
		zap.Int64("sales_rep_id", created.SalesRepID),
		zap.Int("lines", len(created.Lines)),
		zap.String("total", created.Total().StringFixed(2)),
	)
	s.events.Publish(ctx, orders.EventOrderCreated, created, actor)
	return created, nil
}

func (s *Service) ApproveOrder(ctx context.Context, actor orders.Actor, orderID int64) (orders.Order, error) {
	return s.decide(ctx, actor, orderID, orders.StatusApproved)
}

func (s *Service) RejectOrder(ctx context.Context, actor orders.Actor, orderID int64) (orders.Order, error) {
	return s.decide(ctx, actor, orderID, orders.StatusRejected)
}

// decide runs approve or reject: lock the order, check the guard, (approve only)
// reserve stock for every line, persist the new state and the notification together.
func (s *Service) decide(ctx context.Context, actor orders.Actor, orderID int64, to orders.Status) (orders.Order, error) {
	if err := requireActor(actor); err != nil {
		return orders.Order{}, err
	}

	var (
		o orders.Order
		n orders.Notification
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		o, err = tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !orders.CanTransition(o.Status, to) {
			return orders.ErrAlreadyProcessed
		}

		var (
			typ  orders.NotificationType
			verb string
		)
		switch to {
		case orders.StatusApproved:
			if err := s.ledger.Reserve(ctx, tx.Products(), o); err != nil {
				return err
			}
			err = o.Approve(actor.ID, s.now())
			typ, verb = orders.NotificationOrderApproved, "approved"
		default:
			err = o.Reject(actor.ID, s.now())
			typ, verb = orders.NotificationOrderRejected, "rejected"
		}
		if err != nil {
			return err
		}
		if err := tx.Orders().UpdateState(ctx, o); err != nil {
			return err
		}

		msg := fmt.Sprintf("Order #%d has been %s!", o.ID, verb)
		n, err = s.dispatcher.Record(ctx, tx.Notifications(), typ, msg, actor.ID, o.SalesRepID)
		return err
	})
	if err != nil {
		return orders.Order{}, s.fail("decide order", err,
			zap.Int64("order_id", orderID),
			zap.String("to", string(to)),
			zap.Int64("actor_id", actor.ID),
		)
	}

	s.dispatcher.DeliverAsync(ctx, n)
	s.log.Info("order "+string(to),
		zap.Int64("order_id", o.ID),
		zap.Int64("actor_id", actor.ID),
		zap.Int64("notification_id", n.ID),
	)

	event := orders.EventOrderApproved
	if to == orders.StatusRejected {
		event = orders.EventOrderRejected
	}
	s.events.Publish(ctx, event, o, actor)
	return o, nil
}

func (s *Service) MarkPaid(ctx context.Context, actor orders.Actor, orderID int64) (orders.Order, error) {
	if err := requireActor(actor); err != nil {
		return orders.Order{}, err
	}

	var o orders.Order
	err := s.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		o, err = tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := o.MarkPaid(s.now()); err != nil {
			return err
		}
		return tx.Orders().UpdateState(ctx, o)
	})
	if err != nil {
		return orders.Order{}, s.fail("mark paid", err, zap.Int64("order_id", orderID), zap.Int64("actor_id", actor.ID))
	}

	s.log.Info("order paid", zap.Int64("order_id", o.ID), zap.Int64("actor_id", actor.ID))
	s.events.Publish(ctx, orders.EventOrderPaid, o, actor)
	return o, nil
}

// ListOrders restricts sales reps to their own orders whatever the filter says.
func (s *Service) ListOrders(ctx context.Context, actor orders.Actor, f orders.OrderFilter) ([]orders.Order, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.Role == orders.RoleSales {
		id := actor.ID
		f.SalesRepID = &id
	}
	out, err := s.store.Orders().List(ctx, f)
	if err != nil {
		return nil, s.fail("list orders", err)
	}
	return out, nil
}

func (s *Service) GetOrder(ctx context.Context, actor orders.Actor, orderID int64) (orders.Order, error) {
	if err := requireActor(actor); err != nil {
		return orders.Order{}, err
	}
	o, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		return orders.Order{}, s.fail("get order", err, zap.Int64("order_id", orderID))
	}
	if actor.Role == orders.RoleSales && o.SalesRepID != actor.ID {
		return orders.Order{}, fmt.Errorf("%w: order %d", orders.ErrNotFound, orderID)
	}
	return o, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]orders.Product, error) {
	ps, err := s.store.Products().List(ctx)
	if err != nil {
		return nil, s.fail("list products", err)
	}
	return ps, nil
}
