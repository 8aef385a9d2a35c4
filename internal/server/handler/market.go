package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethervenue/venue/internal/domain"
)

// MarketHandler serves market endpoints, enriching each market with the
// latest cached consensus when one exists.
type MarketHandler struct {
	markets domain.MarketStore
	cache   domain.ConsensusCache
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets domain.MarketStore, cache domain.ConsensusCache, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		cache:   cache,
		logger:  logger,
	}
}

// marketView is the API representation of a market. SignalState is derived:
// executable markets carry a live signal, open markets with a consensus are
// monitoring, everything else is idle.
type marketView struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Question    string         `json:"question"`
	Asset       string         `json:"asset,omitempty"`
	TargetPrice float64        `json:"target_price,omitempty"`
	Volume      float64        `json:"volume"`
	Status      string         `json:"status"`
	SignalState string         `json:"signal_state,omitempty"`
	Outcome     *float64       `json:"outcome,omitempty"`
	Consensus   *consensusView `json:"consensus,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Deadline    time.Time      `json:"deadline"`
	SettledAt   *time.Time     `json:"settled_at,omitempty"`
}

type consensusView struct {
	Probability float64   `json:"probability"`
	Confidence  float64   `json:"confidence"`
	AgentCount  int       `json:"agent_count"`
	ComputedAt  time.Time `json:"computed_at"`
}

func newMarketView(m domain.Market, c *domain.Consensus) marketView {
	v := marketView{
		ID:        m.ID,
		Type:      string(m.Type),
		Question:  m.Question,
		Volume:    m.Volume,
		Status:    string(m.Status),
		Outcome:   m.Outcome,
		CreatedAt: m.CreatedAt,
		Deadline:  m.Deadline,
		SettledAt: m.SettledAt,
	}
	if m.Crypto != nil {
		v.Asset = m.Crypto.Asset
		v.TargetPrice = m.Crypto.TargetPrice
	}
	if c != nil {
		v.Consensus = &consensusView{
			Probability: c.Probability,
			Confidence:  c.Confidence,
			AgentCount:  c.AgentCount,
			ComputedAt:  c.ComputedAt,
		}
	}
	switch {
	case m.Status == domain.MarketStatusExecutable:
		v.SignalState = "executable"
	case m.Status == domain.MarketStatusOpen && c != nil:
		v.SignalState = "monitoring"
	}
	return v
}

type listMarketsResponse struct {
	Markets []marketView `json:"markets"`
	Total   int          `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
}

// ListMarkets returns markets filtered by status (default open) with the
// cached consensus attached.
// GET /api/markets?status=open&limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	status := domain.MarketStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.MarketStatusOpen
	}
	switch status {
	case domain.MarketStatusOpen, domain.MarketStatusExecutable, domain.MarketStatusSettled, domain.MarketStatusExpired:
	default:
		writeError(w, http.StatusBadRequest, "unknown market status")
		return
	}

	markets, err := h.markets.ListByStatus(r.Context(), status, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	total, err := h.markets.CountByStatus(r.Context(), status)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count markets")
		return
	}

	ids := make([]string, len(markets))
	for i, m := range markets {
		ids[i] = m.ID
	}
	consensuses, err := h.cache.GetAll(r.Context(), ids)
	if err != nil {
		// Consensus is a disposable read model; degrade to markets-only.
		h.logger.WarnContext(r.Context(), "handler: consensus cache unavailable",
			slog.String("error", err.Error()),
		)
		consensuses = nil
	}

	views := make([]marketView, len(markets))
	for i, m := range markets {
		var c *domain.Consensus
		if cc, ok := consensuses[m.ID]; ok {
			c = &cc
		}
		views[i] = newMarketView(m, c)
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: views,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market by ID with its cached consensus.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.markets.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	var c *domain.Consensus
	if cached, err := h.cache.Get(r.Context(), id); err == nil {
		c = &cached
	}

	writeJSON(w, http.StatusOK, newMarketView(market, c))
}
