package orders

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schemaSQL string

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repo is the Postgres Store.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.Exec(ctx, schemaSQL)
	return err
}

func (r *Repo) Orders() OrderRepository               { return pgOrders{q: r.DB} }
func (r *Repo) Products() ProductRepository           { return pgProducts{q: r.DB} }
func (r *Repo) Notifications() NotificationRepository { return pgNotifications{q: r.DB} }

func (r *Repo) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, pgTx{q: tx}); err != nil {
		return err // rollback via defer
	}
	return tx.Commit(ctx)
}

type pgTx struct{ q querier }

func (t pgTx) Orders() OrderRepository               { return pgOrders{q: t.q} }
func (t pgTx) Products() ProductRepository           { return pgProducts{q: t.q} }
func (t pgTx) Notifications() NotificationRepository { return pgNotifications{q: t.q} }

const fkViolation = "23503"

// missingRef turns a foreign key violation into ErrNotFound; the referenced row
// (user or product) does not exist.
func missingRef(err error, what string, id int64) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == fkViolation {
		return notFoundf("%s %d", what, id)
	}
	return err
}

// numeric kolom dibaca sebagai text supaya presisi decimal tidak hilang
func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode numeric %q: %w", s, err)
	}
	return d, nil
}

// ---- orders ----

type pgOrders struct{ q querier }

const orderCols = `id, sales_rep_id, approved_by_id, status, is_paid, created_at, approved_at, paid_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status string
	)
	err := row.Scan(&o.ID, &o.SalesRepID, &o.ApprovedByID, &status, &o.IsPaid, &o.CreatedAt, &o.ApprovedAt, &o.PaidAt)
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	return o, nil
}

func (r pgOrders) Create(ctx context.Context, o *Order) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO sales_orders(sales_rep_id, status, is_paid, created_at)
		VALUES ($1, $2, FALSE, $3)
		RETURNING id`, o.SalesRepID, string(o.Status), o.CreatedAt,
	).Scan(&o.ID)
	if err != nil {
		return missingRef(err, "sales rep", o.SalesRepID)
	}

	for i := range o.Lines {
		l := &o.Lines[i]
		l.OrderID = o.ID
		err := r.q.QueryRow(ctx, `
			INSERT INTO sales_order_items(order_id, product_id, product_name, sku, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric)
			RETURNING id`,
			o.ID, l.ProductID, l.ProductName, l.SKU, l.Quantity, l.UnitPrice.String(), l.TotalPrice.String(),
		).Scan(&l.ID)
		if err != nil {
			return missingRef(err, "product", l.ProductID)
		}
	}
	return nil
}

func (r pgOrders) get(ctx context.Context, id int64, lock bool) (Order, error) {
	q := `SELECT ` + orderCols + ` FROM sales_orders WHERE id=$1`
	if lock {
		q += ` FOR UPDATE`
	}
	o, err := scanOrder(r.q.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, notFoundf("order %d", id)
	}
	if err != nil {
		return Order{}, err
	}
	lines, err := r.lines(ctx, []int64{id})
	if err != nil {
		return Order{}, err
	}
	o.Lines = lines[id]
	return o, nil
}

func (r pgOrders) Get(ctx context.Context, id int64) (Order, error) {
	return r.get(ctx, id, false)
}

func (r pgOrders) GetForUpdate(ctx context.Context, id int64) (Order, error) {
	return r.get(ctx, id, true)
}

func (r pgOrders) lines(ctx context.Context, orderIDs []int64) (map[int64][]OrderLine, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, order_id, product_id, product_name, sku, quantity, unit_price::text, total_price::text
		FROM sales_order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]OrderLine, len(orderIDs))
	for rows.Next() {
		var (
			l            OrderLine
			price, total string
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.SKU, &l.Quantity, &price, &total); err != nil {
			return nil, err
		}
		if l.UnitPrice, err = parseDecimal(price); err != nil {
			return nil, err
		}
		if l.TotalPrice, err = parseDecimal(total); err != nil {
			return nil, err
		}
		out[l.OrderID] = append(out[l.OrderID], l)
	}
	return out, rows.Err()
}

func (r pgOrders) UpdateState(ctx context.Context, o Order) error {
	ct, err := r.q.Exec(ctx, `
		UPDATE sales_orders
		SET status=$2, is_paid=$3, approved_by_id=$4, approved_at=$5, paid_at=$6
		WHERE id=$1`,
		o.ID, string(o.Status), o.IsPaid, o.ApprovedByID, o.ApprovedAt, o.PaidAt,
	)
	if err != nil && o.ApprovedByID != nil {
		return missingRef(err, "user", *o.ApprovedByID)
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return notFoundf("order %d", o.ID)
	}
	return nil
}

func (r pgOrders) List(ctx context.Context, f OrderFilter) ([]Order, error) {
	var (
		conds []string
		args  []any
	)
	if f.SalesRepID != nil {
		args = append(args, *f.SalesRepID)
		conds = append(conds, fmt.Sprintf("sales_rep_id = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.IsPaid != nil {
		args = append(args, *f.IsPaid)
		conds = append(conds, fmt.Sprintf("is_paid = $%d", len(args)))
	}
	q := `SELECT ` + orderCols + ` FROM sales_orders`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var (
		out []Order
		ids []int64
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	lines, err := r.lines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines = lines[out[i].ID]
	}
	return out, nil
}

// ---- products ----

type pgProducts struct{ q querier }

const productCols = `id, name, sku, category, unit_price::text, stock, is_active, created_at, updated_at`

func (r pgProducts) scan(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var (
			p     Product
			price string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.Category, &price, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		d, err := parseDecimal(price)
		if err != nil {
			return nil, err
		}
		p.UnitPrice = d
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r pgProducts) byIDs(ctx context.Context, ids []int64, lock bool) (map[int64]Product, error) {
	q := `SELECT ` + productCols + ` FROM products WHERE id = ANY($1) ORDER BY id`
	if lock {
		// urutan id tetap supaya dua approval tidak saling deadlock
		q += ` FOR UPDATE`
	}
	rows, err := r.q.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	ps, err := r.scan(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]Product, len(ps))
	for _, p := range ps {
		out[p.ID] = p
	}
	return out, nil
}

func (r pgProducts) GetMany(ctx context.Context, ids []int64) (map[int64]Product, error) {
	return r.byIDs(ctx, ids, false)
}

func (r pgProducts) LockMany(ctx context.Context, ids []int64) (map[int64]Product, error) {
	return r.byIDs(ctx, ids, true)
}

func (r pgProducts) AdjustStock(ctx context.Context, id int64, delta int) error {
	ct, err := r.q.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id=$1 AND stock + $2 >= 0`, id, delta)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var stock int
	err = r.q.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, id).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFoundf("product %d", id)
	}
	if err != nil {
		return err
	}
	short := StockShortage{ProductID: id, Required: -delta, Available: stock}
	return &InsufficientStockError{ProductID: id, Required: -delta, Available: stock, Details: []StockShortage{short}}
}

func (r pgProducts) List(ctx context.Context) ([]Product, error) {
	rows, err := r.q.Query(ctx, `SELECT `+productCols+` FROM products WHERE is_active ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	return r.scan(rows)
}

// ---- notifications ----

type pgNotifications struct{ q querier }

func (r pgNotifications) Create(ctx context.Context, n *Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO notifications(type, message, sender_id, receiver_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		RETURNING id`,
		string(n.Type), n.Message, n.SenderID, n.ReceiverID, n.CreatedAt,
	).Scan(&n.ID)
	if err != nil {
		id := n.ReceiverID
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && strings.Contains(pgErr.ConstraintName, "sender") {
			id = n.SenderID
		}
		return missingRef(err, "user", id)
	}
	return nil
}

func (r pgNotifications) ListForReceiver(ctx context.Context, receiverID int64, unreadOnly bool) ([]Notification, error) {
	q := `SELECT id, type, message, sender_id, receiver_id, is_read, created_at
	      FROM notifications WHERE receiver_id=$1`
	if unreadOnly {
		q += ` AND NOT is_read`
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.q.Query(ctx, q, receiverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var (
			n   Notification
			typ string
		)
		if err := rows.Scan(&n.ID, &typ, &n.Message, &n.SenderID, &n.ReceiverID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Type = NotificationType(typ)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r pgNotifications) MarkRead(ctx context.Context, id, receiverID int64) error {
	ct, err := r.q.Exec(ctx, `UPDATE notifications SET is_read=TRUE WHERE id=$1 AND receiver_id=$2`, id, receiverID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return notFoundf("notification %d", id)
	}
	return nil
}

func (r pgNotifications) MarkAllRead(ctx context.Context, receiverID int64) (int64, error) {
	ct, err := r.q.Exec(ctx, `UPDATE notifications SET is_read=TRUE WHERE receiver_id=$1 AND NOT is_read`, receiverID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
