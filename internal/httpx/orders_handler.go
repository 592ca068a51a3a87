package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-sales-orders/internal/orders"
	"github.com/ariefcatur/go-sales-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderService is what the handlers need from sales.Service.
type OrderService interface {
	CreateOrder(ctx context.Context, actor orders.Actor, lines []orders.LineInput) (orders.Order, error)
	ApproveOrder(ctx context.Context, actor orders.Actor, orderID int64) (orders.Order, error)
	RejectOrder(ctx context.Context, actor orders.Actor, orderID int64) (orders.Order, error)
	MarkPaid(ctx context.Context, actor orders.Actor, orderID int64) (orders.Order, error)
	ListOrders(ctx context.Context, actor orders.Actor, f orders.OrderFilter) ([]orders.Order, error)
	GetOrder(ctx context.Context, actor orders.Actor, orderID int64) (orders.Order, error)
	ListProducts(ctx context.Context) ([]orders.Product, error)
}

type StatusCache interface {
	Get(ctx context.Context, orderID int64) (redisx.OrderStatus, bool)
	Put(ctx context.Context, o orders.Order)
}

type OrdersHandler struct {
	Service OrderService
	Cache   StatusCache // opsional
	Log     *zap.Logger
}

type CreateOrderReq struct {
	Items []orders.LineInput `json:"items"`
}

type orderResp struct {
	orders.Order
	Total decimal.Decimal `json:"total"`
}

func toOrderResp(o orders.Order) orderResp { return orderResp{Order: o, Total: o.Total()} }

// Register mounts the routes; the router must already run Authenticator.Middleware.
func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.With(Authorize(orders.RoleSales, orders.RoleManager)).Post("/", h.createOrder)
		r.Get("/{id}", h.getOrder)
		r.Get("/{id}/status", h.getStatus)
		r.With(Authorize(orders.RoleManager)).Put("/{id}/approve", h.approve)
		r.With(Authorize(orders.RoleManager)).Put("/{id}/reject", h.reject)
		r.With(Authorize(orders.RoleAccountant)).Put("/{id}/pay", h.pay)
	})
	r.With(Authorize(orders.RoleAdmin, orders.RoleManager, orders.RoleSales)).Get("/products", h.listProducts)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return
	}
	actor, _ := ActorFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.CreateOrder(ctx, actor, req.Items)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.cachePut(ctx, o)
	writeJSON(w, http.StatusCreated, toOrderResp(o))
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	f, err := parseOrderFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	actor, _ := ActorFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Service.ListOrders(ctx, actor, f)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	out := make([]orderResp, 0, len(list))
	for _, o := range list {
		out = append(out, toOrderResp(o))
	}
	writeJSON(w, http.StatusOK, out)
}

type filterError string

func (e filterError) Error() string { return string(e) }

// parseOrderFilter: ?status=approved&userId=3&paid=false
func parseOrderFilter(r *http.Request) (orders.OrderFilter, error) {
	var f orders.OrderFilter
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		st, ok := orders.ParseStatus(v)
		if !ok {
			return f, filterError("invalid status")
		}
		f.Status = &st
	}
	if v := q.Get("userId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, filterError("invalid user")
		}
		f.SalesRepID = &id
	}
	if v := q.Get("paid"); v != "" {
		paid, err := strconv.ParseBool(v)
		if err != nil {
			return f, filterError("invalid paid flag")
		}
		f.IsPaid = &paid
	}
	return f, nil
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	actor, _ := ActorFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Service.GetOrder(ctx, actor, id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	actor, _ := ActorFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache; sales rep selalu lewat DB karena ownership dicek di service
	if h.Cache != nil && actor.Role != orders.RoleSales {
		if st, hit := h.Cache.Get(ctx, id); hit {
			writeJSON(w, http.StatusOK, st)
			return
		}
	}

	// 2) fallback DB
	o, err := h.Service.GetOrder(ctx, actor, id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.cachePut(ctx, o)
	writeJSON(w, http.StatusOK, redisx.StatusOf(o))
}

func (h *OrdersHandler) approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.ApproveOrder)
}

func (h *OrdersHandler) reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.RejectOrder)
}

func (h *OrdersHandler) pay(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.MarkPaid)
}

func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, orders.Actor, int64) (orders.Order, error)) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	actor, _ := ActorFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := fn(ctx, actor, id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.cachePut(ctx, o)
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Service.ListProducts(ctx)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if ps == nil {
		ps = []orders.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *OrdersHandler) cachePut(ctx context.Context, o orders.Order) {
	if h.Cache != nil {
		h.Cache.Put(ctx, o)
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid " + name})
		return 0, false
	}
	return id, true
}
