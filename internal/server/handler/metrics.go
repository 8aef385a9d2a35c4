package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ethervenue/venue/internal/domain"
)

// MetricsHandler aggregates venue-wide operational metrics from the primary
// stores. It is a pull-based dashboard endpoint, not a metrics exporter.
type MetricsHandler struct {
	markets   domain.MarketStore
	agents    domain.AgentStore
	trades    domain.TradeStore
	startedAt time.Time
	logger    *slog.Logger
}

// NewMetricsHandler creates a MetricsHandler.
func NewMetricsHandler(markets domain.MarketStore, agents domain.AgentStore, trades domain.TradeStore, startedAt time.Time, logger *slog.Logger) *MetricsHandler {
	return &MetricsHandler{
		markets:   markets,
		agents:    agents,
		trades:    trades,
		startedAt: startedAt,
		logger:    logger,
	}
}

type metricsResponse struct {
	ActiveMarkets   int     `json:"active_markets"`
	ActiveAgents    int     `json:"active_agents"`
	SuspendedAgents int     `json:"suspended_agents"`
	TotalVolume     float64 `json:"total_volume"`
	SettledTrades   int     `json:"settled_trades"`
	WinRate         float64 `json:"win_rate"`
	TotalPnL        float64 `json:"total_pnl"`
	UptimeSec       int64   `json:"uptime_seconds"`
}

// GetMetrics returns a venue-wide snapshot: active markets and agents, open
// volume, settled-trade win rate, and cumulative realized P&L.
// GET /api/metrics
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := metricsResponse{
		UptimeSec: int64(time.Since(h.startedAt).Seconds()),
	}

	for _, status := range []domain.MarketStatus{domain.MarketStatusOpen, domain.MarketStatusExecutable} {
		markets, err := h.markets.ListByStatus(ctx, status, domain.ListOpts{Limit: maxLimit})
		if err != nil {
			h.logger.ErrorContext(ctx, "handler: metrics markets query failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to compute metrics")
			return
		}
		resp.ActiveMarkets += len(markets)
		for _, m := range markets {
			resp.TotalVolume += m.Volume
		}
	}

	active, err := h.agents.ListByStatus(ctx, domain.AgentStatusActive)
	if err != nil {
		h.logger.ErrorContext(ctx, "handler: metrics agents query failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute metrics")
		return
	}
	resp.ActiveAgents = len(active)

	suspended, err := h.agents.ListByStatus(ctx, domain.AgentStatusSuspended)
	if err != nil {
		h.logger.ErrorContext(ctx, "handler: metrics agents query failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute metrics")
		return
	}
	resp.SuspendedAgents = len(suspended)

	wins, total, err := h.trades.CountSettledWinners(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "handler: metrics trades query failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute metrics")
		return
	}
	resp.SettledTrades = total
	if total > 0 {
		resp.WinRate = float64(wins) / float64(total)
	}

	pnl, err := h.trades.SumRealizedPnL(ctx, time.Time{})
	if err != nil {
		h.logger.ErrorContext(ctx, "handler: metrics pnl query failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute metrics")
		return
	}
	resp.TotalPnL = pnl

	writeJSON(w, http.StatusOK, resp)
}
