package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ashureev/dailycase/internal/store"
	"github.com/go-chi/chi/v5"
)

// HealthHandler reports readiness of the backing store.
type HealthHandler struct {
	store store.Store
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(st store.Store) *HealthHandler {
	return &HealthHandler{store: st}
}

// RegisterHealth registers the readiness route. Liveness is served by the
// router's heartbeat middleware.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/ready", h.Ready)
}

// Ready returns 200 when the store answers a ping.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		Error(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
