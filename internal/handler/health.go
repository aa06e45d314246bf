package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/driftline/matchmaker/internal/config"
	"github.com/driftline/matchmaker/internal/httputil"
)

// Pinger is the part of the matchmaking service the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
	Backend() string
}

type HealthHandler struct {
	store Pinger
}

func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.BackendPingTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("backend", h.store.Backend()).Msg("health check ping failed")
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	httputil.WriteJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UnixMilli(),
		"backend":   h.store.Backend(),
	})
}
