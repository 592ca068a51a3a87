package orders

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-process Store. InTx holds one mutex for the whole unit of work and
// restores a snapshot when fn fails, so transactions are serialized and all-or-nothing.
type MemStore struct {
	mu sync.Mutex
	st *memState
}

type memState struct {
	orders        map[int64]Order
	products      map[int64]Product
	notifications map[int64]Notification
	nextOrder     int64
	nextLine      int64
	nextProduct   int64
	nextNotif     int64
}

func NewMemStore() *MemStore {
	return &MemStore{st: &memState{
		orders:        map[int64]Order{},
		products:      map[int64]Product{},
		notifications: map[int64]Notification{},
	}}
}

// PutProduct inserts or replaces a product; a zero ID gets the next free one.
func (s *MemStore) PutProduct(p Product) Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		s.st.nextProduct++
		p.ID = s.st.nextProduct
	} else if p.ID > s.st.nextProduct {
		s.st.nextProduct = p.ID
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.st.products[p.ID] = p
	return p
}

func (st *memState) clone() *memState {
	c := *st
	c.orders = make(map[int64]Order, len(st.orders))
	for id, o := range st.orders {
		c.orders[id] = copyOrder(o)
	}
	c.products = make(map[int64]Product, len(st.products))
	for id, p := range st.products {
		c.products[id] = p
	}
	c.notifications = make(map[int64]Notification, len(st.notifications))
	for id, n := range st.notifications {
		c.notifications[id] = n
	}
	return &c
}

func copyOrder(o Order) Order {
	o.Lines = append([]OrderLine(nil), o.Lines...)
	if o.ApprovedByID != nil {
		v := *o.ApprovedByID
		o.ApprovedByID = &v
	}
	if o.ApprovedAt != nil {
		v := *o.ApprovedAt
		o.ApprovedAt = &v
	}
	if o.PaidAt != nil {
		v := *o.PaidAt
		o.PaidAt = &v
	}
	return o
}

func (s *MemStore) Orders() OrderRepository               { return memOrders{memView{s: s}} }
func (s *MemStore) Products() ProductRepository           { return memProducts{memView{s: s}} }
func (s *MemStore) Notifications() NotificationRepository { return memNotifications{memView{s: s}} }

func (s *MemStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.st.clone()
	if err := fn(ctx, memTx{memView{s: s, inTx: true}}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

type memTx struct{ v memView }

func (t memTx) Orders() OrderRepository               { return memOrders{t.v} }
func (t memTx) Products() ProductRepository           { return memProducts{t.v} }
func (t memTx) Notifications() NotificationRepository { return memNotifications{t.v} }

// memView takes the store mutex per call unless it is already held by InTx.
type memView struct {
	s    *MemStore
	inTx bool
}

func (v memView) do(fn func(st *memState) error) error {
	if !v.inTx {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}
	return fn(v.s.st)
}

// ---- orders ----

type memOrders struct{ v memView }

func (r memOrders) Create(_ context.Context, o *Order) error {
	return r.v.do(func(st *memState) error {
		st.nextOrder++
		o.ID = st.nextOrder
		for i := range o.Lines {
			st.nextLine++
			o.Lines[i].ID = st.nextLine
			o.Lines[i].OrderID = o.ID
		}
		st.orders[o.ID] = copyOrder(*o)
		return nil
	})
}

func (r memOrders) Get(_ context.Context, id int64) (Order, error) {
	var out Order
	err := r.v.do(func(st *memState) error {
		o, ok := st.orders[id]
		if !ok {
			return notFoundf("order %d", id)
		}
		out = copyOrder(o)
		return nil
	})
	return out, err
}

// GetForUpdate needs no extra locking: InTx already serializes units of work.
func (r memOrders) GetForUpdate(ctx context.Context, id int64) (Order, error) {
	return r.Get(ctx, id)
}

func (r memOrders) UpdateState(_ context.Context, o Order) error {
	return r.v.do(func(st *memState) error {
		cur, ok := st.orders[o.ID]
		if !ok {
			return notFoundf("order %d", o.ID)
		}
		next := copyOrder(o)
		next.Lines = cur.Lines
		next.SalesRepID = cur.SalesRepID
		next.CreatedAt = cur.CreatedAt
		st.orders[o.ID] = next
		return nil
	})
}

func (r memOrders) List(_ context.Context, f OrderFilter) ([]Order, error) {
	var out []Order
	err := r.v.do(func(st *memState) error {
		for _, o := range st.orders {
			if f.SalesRepID != nil && o.SalesRepID != *f.SalesRepID {
				continue
			}
			if f.Status != nil && o.Status != *f.Status {
				continue
			}
			if f.IsPaid != nil && o.IsPaid != *f.IsPaid {
				continue
			}
			out = append(out, copyOrder(o))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, err
}

// ---- products ----

type memProducts struct{ v memView }

func (r memProducts) GetMany(_ context.Context, ids []int64) (map[int64]Product, error) {
	out := make(map[int64]Product, len(ids))
	err := r.v.do(func(st *memState) error {
		for _, id := range ids {
			if p, ok := st.products[id]; ok {
				out[id] = p
			}
		}
		return nil
	})
	return out, err
}

func (r memProducts) LockMany(ctx context.Context, ids []int64) (map[int64]Product, error) {
	return r.GetMany(ctx, ids)
}

func (r memProducts) AdjustStock(_ context.Context, id int64, delta int) error {
	return r.v.do(func(st *memState) error {
		p, ok := st.products[id]
		if !ok {
			return notFoundf("product %d", id)
		}
		if p.Stock+delta < 0 {
			short := StockShortage{ProductID: id, Required: -delta, Available: p.Stock}
			return &InsufficientStockError{ProductID: id, Required: -delta, Available: p.Stock, Details: []StockShortage{short}}
		}
		p.Stock += delta
		p.UpdatedAt = time.Now().UTC()
		st.products[id] = p
		return nil
	})
}

func (r memProducts) List(_ context.Context) ([]Product, error) {
	var out []Product
	err := r.v.do(func(st *memState) error {
		for _, p := range st.products {
			if p.IsActive {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, err
}

// ---- notifications ----

type memNotifications struct{ v memView }

func (r memNotifications) Create(_ context.Context, n *Notification) error {
	return r.v.do(func(st *memState) error {
		st.nextNotif++
		n.ID = st.nextNotif
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC()
		}
		st.notifications[n.ID] = *n
		return nil
	})
}

func (r memNotifications) ListForReceiver(_ context.Context, receiverID int64, unreadOnly bool) ([]Notification, error) {
	var out []Notification
	err := r.v.do(func(st *memState) error {
		for _, n := range st.notifications {
			if n.ReceiverID != receiverID || (unreadOnly && n.IsRead) {
				continue
			}
			out = append(out, n)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, err
}

func (r memNotifications) MarkRead(_ context.Context, id, receiverID int64) error {
	return r.v.do(func(st *memState) error {
		n, ok := st.notifications[id]
		if !ok || n.ReceiverID != receiverID {
			return notFoundf("notification %d", id)
		}
		n.IsRead = true
		st.notifications[id] = n
		return nil
	})
}

func (r memNotifications) MarkAllRead(_ context.Context, receiverID int64) (int64, error) {
	var n int64
	err := r.v.do(func(st *memState) error {
		for id, x := range st.notifications {
			if x.ReceiverID == receiverID && !x.IsRead {
				x.IsRead = true
				st.notifications[id] = x
				n++
			}
		}
		return nil
	})
	return n, err
}
