// Package signalgen turns an executable consensus into a sized trading
// signal. Markets whose consensus stays below the execution threshold remain
// in the monitoring state and produce no signal at all.
package signalgen

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ethervenue/venue/internal/domain"
)

// Config holds the tunable signal generation parameters.
type Config struct {
	ExecutionThreshold float64 // minimum consensus confidence, default 0.70
	MaxPositionSize    float64 // position size fraction ceiling, default 0.025
}

// Generator evaluates consensus values against the execution threshold.
type Generator struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Generator.
func New(cfg Config, logger *slog.Logger) *Generator {
	return &Generator{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "signalgen")),
	}
}

// Evaluate decides whether the consensus for a market is executable. It
// returns (nil, false) when the market stays in monitoring: confidence below
// threshold, or a consensus probability of exactly 0.5, whose direction is
// ambiguous and never executed.
func (g *Generator) Evaluate(market domain.Market, c domain.Consensus) (*domain.Signal, bool) {
	if c.Confidence < g.cfg.ExecutionThreshold {
		return nil, false
	}
	if c.Probability == 0.5 {
		return nil, false
	}

	direction := domain.DirectionLong
	if c.Probability < 0.5 {
		direction = domain.DirectionShort
	}

	strength := c.Confidence * math.Abs(2*c.Probability-1)
	size := strength * g.cfg.MaxPositionSize
	if size > g.cfg.MaxPositionSize {
		size = g.cfg.MaxPositionSize
	}

	sig := &domain.Signal{
		ID:         uuid.New().String(),
		MarketID:   market.ID,
		Asset:      market.Asset(),
		Direction:  direction,
		Strength:   strength,
		Confidence: c.Confidence,
		Size:       size,
		Reason: fmt.Sprintf("consensus %.2f with %.0f%% confidence from %d agents",
			c.Probability, c.Confidence*100, c.AgentCount),
		CreatedAt: time.Now().UTC(),
	}

	g.logger.Debug("signal generated",
		slog.String("market_id", market.ID),
		slog.String("direction", string(direction)),
		slog.Float64("strength", strength),
		slog.Float64("size", size),
	)
	return sig, true
}
