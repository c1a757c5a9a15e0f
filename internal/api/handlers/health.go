package handlers

import (
	"net/http"
	"time"

	"github.com/marmos91/syncbox/pkg/store"
	"github.com/marmos91/syncbox/pkg/version"
)

// HealthHandler serves the unauthenticated liveness endpoint.
type HealthHandler struct {
	store   store.Store
	started time.Time
}

// NewHealthHandler creates a health handler anchored at the process
// start time.
func NewHealthHandler(s store.Store) *HealthHandler {
	return &HealthHandler{store: s, started: time.Now()}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string  `json:"status"`
	Version  string  `json:"version"`
	Uptime   float64 `json:"uptime"`
	Database string  `json:"database"`
}

// Get serves GET /health: 200 when the database answers a ping, 503
// otherwise.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "healthy",
		Version:  version.Version,
		Uptime:   time.Since(h.started).Seconds(),
		Database: "connected",
	}

	status := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Database = "disconnected"
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, resp)
}
