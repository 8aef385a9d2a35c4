// Package registry owns the market lifecycle: typed creation from templates,
// prediction intake with monotone volume, status transitions, and the expiry
// sweep. It is the only writer of market records.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethervenue/venue/internal/domain"
)

// Config holds market creation parameters.
type Config struct {
	MaxActiveMarkets int
	CryptoAssets     []string
}

// Registry manages prediction markets.
type Registry struct {
	markets     domain.MarketStore
	predictions domain.PredictionStore
	prices      PriceSource
	cfg         Config
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	assetIdx int // round-robin cursor over cfg.CryptoAssets
	typeIdx  int // round-robin cursor over market types
}

// New creates a Registry.
func New(markets domain.MarketStore, predictions domain.PredictionStore, prices PriceSource, cfg Config, logger *slog.Logger) *Registry {
	return &Registry{
		markets:     markets,
		predictions: predictions,
		prices:      prices,
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "registry")),
		now:         time.Now,
	}
}

// CreateNext creates the next market from the type rotation
// (crypto-price, ai-performance, tech-trend) if the venue is below its
// active-market cap. It returns the created market and true, or false when
// the cap skipped creation.
func (r *Registry) CreateNext(ctx context.Context) (domain.Market, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	active, err := r.activeCountLocked(ctx)
	if err != nil {
		return domain.Market{}, false, err
	}
	if active >= r.cfg.MaxActiveMarkets {
		r.logger.InfoContext(ctx, "market creation skipped",
			slog.Int("active", active),
			slog.Int("cap", r.cfg.MaxActiveMarkets),
		)
		return domain.Market{}, false, nil
	}

	var m domain.Market
	switch r.typeIdx % 3 {
	case 0:
		m, err = r.buildCryptoMarket(ctx)
	case 1:
		m = r.buildAIMarket()
	default:
		m = r.buildTechMarket()
	}
	if err != nil {
		return domain.Market{}, false, err
	}
	r.typeIdx++

	if err := r.markets.Create(ctx, m); err != nil {
		return domain.Market{}, false, fmt.Errorf("registry: create market: %w", err)
	}
	r.logger.InfoContext(ctx, "market created",
		slog.String("market_id", m.ID),
		slog.String("type", string(m.Type)),
		slog.String("question", m.Question),
	)
	return m, true, nil
}

// RecordPrediction validates that the market is open and stores the agent's
// prediction. The stake is added to market volume only on the agent's first
// submission for the market; a resubmission replaces the prediction without
// touching volume, so volume is monotone while the market is open.
func (r *Registry) RecordPrediction(ctx context.Context, p domain.Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.markets.GetByID(ctx, p.MarketID)
	if err != nil {
		return fmt.Errorf("registry: record prediction: %w", err)
	}
	if !m.IsOpen() {
		return domain.ErrMarketClosed
	}

	existing, err := r.predictions.ListByMarket(ctx, p.MarketID)
	if err != nil {
		return fmt.Errorf("registry: list predictions: %w", err)
	}
	first := true
	for _, e := range existing {
		if e.AgentID == p.AgentID {
			first = false
			break
		}
	}

	if p.SubmittedAt.IsZero() {
		p.SubmittedAt = r.now().UTC()
	}
	if err := r.predictions.Upsert(ctx, p); err != nil {
		return fmt.Errorf("registry: store prediction: %w", err)
	}

	if first && p.Stake > 0 {
		m.Volume += p.Stake
		if err := r.markets.Update(ctx, m); err != nil {
			return fmt.Errorf("registry: update volume: %w", err)
		}
	}
	return nil
}

// MarkExecutable transitions an open market to executable once a signal has
// been generated for it.
func (r *Registry) MarkExecutable(ctx context.Context, marketID string) error {
	return r.transition(ctx, marketID, domain.MarketStatusExecutable, nil)
}

// Settle transitions an executable market to settled with its realized
// outcome (0 or 1).
func (r *Registry) Settle(ctx context.Context, marketID string, outcome float64) error {
	now := r.now().UTC()
	return r.transition(ctx, marketID, domain.MarketStatusSettled, func(m *domain.Market) {
		m.Outcome = &outcome
		m.SettledAt = &now
	})
}

// ExpireDue transitions every open market whose deadline has passed to
// expired and returns the expired markets.
func (r *Registry) ExpireDue(ctx context.Context) ([]domain.Market, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	open, err := r.markets.ListByStatus(ctx, domain.MarketStatusOpen, domain.ListOpts{})
	if err != nil {
		return nil, fmt.Errorf("registry: list open markets: %w", err)
	}

	now := r.now().UTC()
	var expired []domain.Market
	for _, m := range open {
		if m.Deadline.After(now) {
			continue
		}
		m.Status = domain.MarketStatusExpired
		if err := r.markets.Update(ctx, m); err != nil {
			return expired, fmt.Errorf("registry: expire market %s: %w", m.ID, err)
		}
		r.logger.InfoContext(ctx, "market expired",
			slog.String("market_id", m.ID),
			slog.Time("deadline", m.Deadline),
		)
		expired = append(expired, m)
	}
	return expired, nil
}

// ListOpen returns all markets still accepting predictions, executable ones
// included.
func (r *Registry) ListOpen(ctx context.Context) ([]domain.Market, error) {
	open, err := r.markets.ListByStatus(ctx, domain.MarketStatusOpen, domain.ListOpts{})
	if err != nil {
		return nil, fmt.Errorf("registry: list open markets: %w", err)
	}
	exec, err := r.markets.ListByStatus(ctx, domain.MarketStatusExecutable, domain.ListOpts{})
	if err != nil {
		return nil, fmt.Errorf("registry: list executable markets: %w", err)
	}
	return append(open, exec...), nil
}

func (r *Registry) transition(ctx context.Context, marketID string, next domain.MarketStatus, apply func(*domain.Market)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.markets.GetByID(ctx, marketID)
	if err != nil {
		return fmt.Errorf("registry: transition market %s: %w", marketID, err)
	}
	if !m.CanTransition(next) {
		return fmt.Errorf("registry: %s %s -> %s: %w", marketID, m.Status, next, domain.ErrInvalidTransition)
	}
	m.Status = next
	if apply != nil {
		apply(&m)
	}
	if err := r.markets.Update(ctx, m); err != nil {
		return fmt.Errorf("registry: transition market %s: %w", marketID, err)
	}
	r.logger.InfoContext(ctx, "market transitioned",
		slog.String("market_id", marketID),
		slog.String("status", string(next)),
	)
	return nil
}

// activeCountLocked counts markets that still occupy a venue slot.
func (r *Registry) activeCountLocked(ctx context.Context) (int, error) {
	open, err := r.markets.CountByStatus(ctx, domain.MarketStatusOpen)
	if err != nil {
		return 0, fmt.Errorf("registry: count open markets: %w", err)
	}
	exec, err := r.markets.CountByStatus(ctx, domain.MarketStatusExecutable)
	if err != nil {
		return 0, fmt.Errorf("registry: count executable markets: %w", err)
	}
	return open + exec, nil
}
