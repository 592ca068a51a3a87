package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-sales-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type NotificationInbox interface {
	List(ctx context.Context, actor orders.Actor) ([]orders.Notification, error)
	Unread(ctx context.Context, actor orders.Actor) ([]orders.Notification, error)
	MarkRead(ctx context.Context, actor orders.Actor, id int64) error
	MarkAllRead(ctx context.Context, actor orders.Actor) (int64, error)
}

type NotificationsHandler struct {
	Inbox NotificationInbox
	Log   *zap.Logger
}

func (h *NotificationsHandler) Register(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/unread", h.unread)
		r.Put("/mark-as-read", h.markAll)
		r.Put("/{id}/read", h.markOne)
	})
}

type notificationsResp struct {
	Notifications []orders.Notification `json:"notifications"`
	Count         *int                  `json:"count,omitempty"`
}

func nonNil(ns []orders.Notification) []orders.Notification {
	if ns == nil {
		return []orders.Notification{}
	}
	return ns
}

func (h *NotificationsHandler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ns, err := h.Inbox.List(ctx, actor)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, notificationsResp{Notifications: nonNil(ns)})
}

func (h *NotificationsHandler) unread(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ns, err := h.Inbox.Unread(ctx, actor)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	n := len(ns)
	writeJSON(w, http.StatusOK, notificationsResp{Notifications: nonNil(ns), Count: &n})
}

func (h *NotificationsHandler) markOne(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	actor, _ := ActorFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Inbox.MarkRead(ctx, actor, id); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Notification marked as read"})
}

func (h *NotificationsHandler) markAll(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	n, err := h.Inbox.MarkAllRead(ctx, actor)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
