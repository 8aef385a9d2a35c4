// Package risk authorizes trading signals against portfolio limits and the
// venue circuit breaker. The exposure and correlation checks together with
// trade creation form one critical section under a portfolio-wide lock, so
// concurrent signal cycles can never both authorize against the same
// exposure headroom.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ethervenue/venue/internal/domain"
)

// Config holds the pre-trade risk limits.
type Config struct {
	MaxTotalExposure       float64
	CorrelationLimit       float64
	MaxConcurrentPositions int
	StopLossPct            float64
	TakeProfitPct          float64
}

// Manager performs ordered, short-circuiting pre-trade checks and owns the
// Trade records it creates.
type Manager struct {
	trades  domain.TradeStore
	breaker *Breaker
	corr    Correlations
	cfg     Config
	logger  *slog.Logger

	mu sync.Mutex
	// reservations maps signal ID to the trade already authorized for it, so
	// retrying the identical signal within the same exposure snapshot cannot
	// double-count exposure.
	reservations map[string]string
}

// NewManager creates a Manager.
func NewManager(trades domain.TradeStore, breaker *Breaker, corr Correlations, cfg Config, logger *slog.Logger) *Manager {
	return &Manager{
		trades:       trades,
		breaker:      breaker,
		corr:         corr,
		cfg:          cfg,
		logger:       logger.With(slog.String("component", "risk")),
		reservations: make(map[string]string),
	}
}

// Breaker exposes the circuit breaker for settlement feedback and operator
// reset.
func (m *Manager) Breaker() *Breaker {
	return m.breaker
}

// Authorize runs the risk checks for a signal in order, short-circuiting on
// the first failure: total exposure, correlation, position count, circuit
// breaker. On success it creates and persists an approved Trade with
// stop-loss and take-profit fixed now, before execution. On failure it
// persists a rejected Trade carrying the first failing reason and returns a
// *domain.RiskError; the signal is simply dropped for this cycle.
//
// Authorize is idempotent per signal ID: a second call without an
// intervening commit returns the trade created by the first call.
func (m *Manager) Authorize(ctx context.Context, sig domain.Signal) (domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tradeID, ok := m.reservations[sig.ID]; ok {
		t, err := m.trades.GetByID(ctx, tradeID)
		if err != nil {
			return domain.Trade{}, fmt.Errorf("risk: load reserved trade %s: %w", tradeID, err)
		}
		return t, nil
	}

	open, err := m.trades.ListOpen(ctx)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("risk: list open trades: %w", err)
	}

	if reason, ok := m.checkLocked(ctx, sig, open); !ok {
		t := m.newTrade(sig)
		t.Status = domain.TradeStatusRejected
		t.Reason = reason
		if err := m.trades.Create(ctx, t); err != nil {
			return domain.Trade{}, fmt.Errorf("risk: persist rejected trade: %w", err)
		}
		m.logger.WarnContext(ctx, "signal rejected",
			slog.String("signal_id", sig.ID),
			slog.String("asset", sig.Asset),
			slog.String("reason", string(reason)),
		)
		return t, &domain.RiskError{Reason: reason}
	}

	t := m.newTrade(sig)
	t.Status = domain.TradeStatusApproved
	if err := m.trades.Create(ctx, t); err != nil {
		return domain.Trade{}, fmt.Errorf("risk: persist approved trade: %w", err)
	}
	m.reservations[sig.ID] = t.ID

	m.logger.InfoContext(ctx, "trade authorized",
		slog.String("trade_id", t.ID),
		slog.String("asset", t.Asset),
		slog.String("direction", string(t.Direction)),
		slog.Float64("size", t.Size),
	)
	return t, nil
}

// checkLocked runs the ordered checks. Caller holds m.mu.
func (m *Manager) checkLocked(ctx context.Context, sig domain.Signal, open []domain.Trade) (domain.RejectReason, bool) {
	var exposure float64
	for _, t := range open {
		exposure += t.Size
	}
	if exposure+sig.Size > m.cfg.MaxTotalExposure {
		return domain.RejectExposure, false
	}

	for _, t := range open {
		if m.corr.Between(sig.Asset, t.Asset) > m.cfg.CorrelationLimit {
			return domain.RejectCorrelation, false
		}
	}

	if len(open) >= m.cfg.MaxConcurrentPositions {
		return domain.RejectPositionCount, false
	}

	if m.breaker.Tripped() {
		return domain.RejectBreakerTripped, false
	}

	return "", true
}

// newTrade builds a Trade from a signal with risk parameters attached.
func (m *Manager) newTrade(sig domain.Signal) domain.Trade {
	return domain.Trade{
		ID:         uuid.New().String(),
		SignalID:   sig.ID,
		MarketID:   sig.MarketID,
		Asset:      sig.Asset,
		Direction:  sig.Direction,
		Size:       sig.Size,
		StopLoss:   m.cfg.StopLossPct,
		TakeProfit: m.cfg.TakeProfitPct,
		OpenedAt:   time.Now().UTC(),
	}
}

// Commit marks an authorized trade as handed off (executed or rejected at
// the bridge) and releases its signal reservation.
func (m *Manager) Commit(ctx context.Context, t domain.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reservations, t.SignalID)
	if err := m.trades.Update(ctx, t); err != nil {
		return fmt.Errorf("risk: commit trade %s: %w", t.ID, err)
	}
	return nil
}

// Settle records a trade's realized outcome, feeds the circuit breaker, and
// persists the terminal state.
func (m *Manager) Settle(ctx context.Context, tradeID string, pnl float64, closedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.trades.GetByID(ctx, tradeID)
	if err != nil {
		return fmt.Errorf("risk: settle trade %s: %w", tradeID, err)
	}
	if t.Status == domain.TradeStatusSettled {
		// Settlement replay; the breaker must not be fed twice.
		return nil
	}
	t.Status = domain.TradeStatusSettled
	t.RealizedPnL = pnl
	t.ClosedAt = &closedAt
	if err := m.trades.Update(ctx, t); err != nil {
		return fmt.Errorf("risk: settle trade %s: %w", tradeID, err)
	}

	m.breaker.RecordSettlement(pnl)
	if m.breaker.Tripped() {
		m.logger.WarnContext(ctx, "circuit breaker tripped",
			slog.Float64("pnl", pnl),
		)
	}
	return nil
}
