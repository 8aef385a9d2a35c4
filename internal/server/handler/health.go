package handler

import (
	"net/http"
	"time"
)

// HealthHandler serves liveness information.
type HealthHandler struct {
	mode      string
	startedAt time.Time
}

// NewHealthHandler creates a HealthHandler. mode is the venue run mode
// reported to operators (full, sandbox, server).
func NewHealthHandler(mode string, startedAt time.Time) *HealthHandler {
	return &HealthHandler{mode: mode, startedAt: startedAt}
}

type healthResponse struct {
	Status    string `json:"status"`
	Mode      string `json:"mode"`
	UptimeSec int64  `json:"uptime_seconds"`
}

// Health reports process liveness.
// GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Mode:      h.mode,
		UptimeSec: int64(time.Since(h.startedAt).Seconds()),
	})
}
