package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-sales-orders/internal/notify"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type WSHandler struct {
	Server *notify.WSServer
	Log    *zap.Logger
}

func (h *WSHandler) Register(r chi.Router) {
	r.Get("/ws", h.serve)
}

func (h *WSHandler) serve(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}
	if err := h.Server.Serve(w, r, actor.ID); err != nil && h.Log != nil {
		h.Log.Debug("ws upgrade failed", zap.Int64("user_id", actor.ID), zap.Error(err))
	}
}
