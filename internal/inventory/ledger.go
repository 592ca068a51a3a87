package inventory

import (
	"context"
	"sort"

	"github.com/ariefcatur/go-sales-orders/internal/orders"
	"go.uber.org/zap"
)

// Ledger owns stock counts. Stock only goes down through Reserve, which callers run
// inside one store transaction so that every line is applied or none is.
type Ledger struct {
	log *zap.Logger
}

func NewLedger(log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{log: log.Named("inventory")}
}

func (l *Ledger) CheckAvailability(ctx context.Context, products orders.ProductRepository, productID int64, qty int) (bool, error) {
	ps, err := products.GetMany(ctx, []int64{productID})
	if err != nil {
		return false, err
	}
	_, short := shortage(ps, productID, qty)
	return !short, nil
}

// shortage reports whether products cannot cover qty of productID. A product that
// is missing from the map counts as zero stock.
func shortage(products map[int64]orders.Product, productID int64, qty int) (orders.StockShortage, bool) {
	p := products[productID]
	if qty <= p.Stock {
		return orders.StockShortage{}, false
	}
	return orders.StockShortage{ProductID: productID, Required: qty, Available: p.Stock}, true
}

func (l *Ledger) Decrement(ctx context.Context, products orders.ProductRepository, productID int64, qty int) error {
	return products.AdjustStock(ctx, productID, -qty)
}

// Reserve locks every product the order needs, checks all of them, and only then
// decrements. Quantities for the same product across lines are summed first.
func (l *Ledger) Reserve(ctx context.Context, products orders.ProductRepository, o orders.Order) error {
	need := o.Quantities()
	ids := make([]int64, 0, len(need))
	for id := range need {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	// lock stok per product (FOR UPDATE) -> cek semua -> baru kurangi
	locked, err := products.LockMany(ctx, ids)
	if err != nil {
		return err
	}

	var shortages []orders.StockShortage
	for _, id := range ids {
		if s, short := shortage(locked, id, need[id]); short {
			shortages = append(shortages, s)
		}
	}
	if len(shortages) > 0 {
		first := shortages[0]
		l.log.Info("reservation rejected",
			zap.Int64("order_id", o.ID),
			zap.Int64("product_id", first.ProductID),
			zap.Int("required", first.Required),
			zap.Int("available", first.Available),
		)
		return &orders.InsufficientStockError{
			ProductID: first.ProductID,
			Required:  first.Required,
			Available: first.Available,
			Details:   shortages,
		}
	}

	for _, id := range ids {
		if err := l.Decrement(ctx, products, id, need[id]); err != nil {
			return err
		}
	}
	l.log.Debug("stock reserved", zap.Int64("order_id", o.ID), zap.Int("products", len(ids)))
	return nil
}
