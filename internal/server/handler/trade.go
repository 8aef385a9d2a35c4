package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ethervenue/venue/internal/domain"
)

// TradeHandler serves trade history endpoints.
type TradeHandler struct {
	trades domain.TradeStore
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades domain.TradeStore, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trades: trades,
		logger: logger,
	}
}

type tradeView struct {
	ID          string     `json:"id"`
	SignalID    string     `json:"signal_id"`
	MarketID    string     `json:"market_id"`
	Asset       string     `json:"asset,omitempty"`
	Direction   string     `json:"direction"`
	Size        float64    `json:"size"`
	Status      string     `json:"status"`
	Reason      string     `json:"reason,omitempty"`
	StopLoss    float64    `json:"stop_loss"`
	TakeProfit  float64    `json:"take_profit"`
	FillPrice   float64    `json:"fill_price,omitempty"`
	RealizedPnL float64    `json:"realized_pnl"`
	OpenedAt    time.Time  `json:"opened_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

func newTradeView(t domain.Trade) tradeView {
	return tradeView{
		ID:          t.ID,
		SignalID:    t.SignalID,
		MarketID:    t.MarketID,
		Asset:       t.Asset,
		Direction:   string(t.Direction),
		Size:        t.Size,
		Status:      string(t.Status),
		Reason:      string(t.Reason),
		StopLoss:    t.StopLoss,
		TakeProfit:  t.TakeProfit,
		FillPrice:   t.FillPrice,
		RealizedPnL: t.RealizedPnL,
		OpenedAt:    t.OpenedAt,
		ClosedAt:    t.ClosedAt,
	}
}

type listTradesResponse struct {
	Trades []tradeView `json:"trades"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// ListTrades returns recent trades, newest first.
// GET /api/trades?limit=50&offset=0
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	trades, err := h.trades.ListRecent(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	views := make([]tradeView, len(trades))
	for i, t := range trades {
		views[i] = newTradeView(t)
	}

	writeJSON(w, http.StatusOK, listTradesResponse{
		Trades: views,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// ListOpenTrades returns trades still contributing to portfolio exposure.
// GET /api/trades/open
func (h *TradeHandler) ListOpenTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.trades.ListOpen(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list open trades failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list open trades")
		return
	}

	views := make([]tradeView, len(trades))
	for i, t := range trades {
		views[i] = newTradeView(t)
	}

	writeJSON(w, http.StatusOK, listTradesResponse{
		Trades: views,
		Limit:  len(views),
	})
}
