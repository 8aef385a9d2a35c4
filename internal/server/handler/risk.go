package handler

import (
	"log/slog"
	"net/http"

	"github.com/ethervenue/venue/internal/risk"
)

// RiskHandler exposes the circuit breaker to operators.
type RiskHandler struct {
	breaker *risk.Breaker
	logger  *slog.Logger
}

// NewRiskHandler creates a RiskHandler.
func NewRiskHandler(breaker *risk.Breaker, logger *slog.Logger) *RiskHandler {
	return &RiskHandler{
		breaker: breaker,
		logger:  logger,
	}
}

type breakerView struct {
	Tripped    bool    `json:"tripped"`
	DailyLoss  float64 `json:"daily_loss"`
	LossStreak int     `json:"loss_streak"`
}

// GetBreaker reports the current circuit breaker state.
// GET /api/risk/breaker
func (h *RiskHandler) GetBreaker(w http.ResponseWriter, r *http.Request) {
	tripped, dailyLoss, streak := h.breaker.Snapshot()
	writeJSON(w, http.StatusOK, breakerView{
		Tripped:    tripped,
		DailyLoss:  dailyLoss,
		LossStreak: streak,
	})
}

// ResetBreaker is the manual operator reset; the breaker never clears on its
// own within a trading day.
// POST /api/risk/breaker/reset
func (h *RiskHandler) ResetBreaker(w http.ResponseWriter, r *http.Request) {
	h.breaker.Reset()
	h.logger.InfoContext(r.Context(), "circuit breaker reset by operator")

	tripped, dailyLoss, streak := h.breaker.Snapshot()
	writeJSON(w, http.StatusOK, breakerView{
		Tripped:    tripped,
		DailyLoss:  dailyLoss,
		LossStreak: streak,
	})
}
