package app

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"time"

	"github.com/ethervenue/venue/internal/bridge"
	"github.com/ethervenue/venue/internal/domain"
	"github.com/ethervenue/venue/internal/registry"
)

// simAgent describes one synthetic agent in the sandbox fleet. Skill controls
// how close its predictions land to each market's latent probability.
type simAgent struct {
	id    string
	typ   domain.AgentType
	skill float64 // in [0,1]
	bonus float64
	rep   int
}

// simFleet is the fixed sandbox roster: a mix of sharp and noisy agents
// across all specializations so consensus, suspension, and reputation churn
// all get exercised.
var simFleet = []simAgent{
	{"sim-crypto-1", domain.AgentTypeCryptoSpecialist, 0.85, 0.4, 6500},
	{"sim-crypto-2", domain.AgentTypeCryptoSpecialist, 0.70, 0.2, 5000},
	{"sim-crypto-3", domain.AgentTypeCryptoSpecialist, 0.35, 0.0, 2500},
	{"sim-maker-1", domain.AgentTypeMarketMaker, 0.75, 0.3, 5500},
	{"sim-maker-2", domain.AgentTypeMarketMaker, 0.60, 0.1, 4000},
	{"sim-maker-3", domain.AgentTypeMarketMaker, 0.50, 0.0, 3000},
	{"sim-trend-1", domain.AgentTypeTechTrendAnalyst, 0.80, 0.5, 6000},
	{"sim-trend-2", domain.AgentTypeTechTrendAnalyst, 0.55, 0.0, 3500},
	{"sim-arb-1", domain.AgentTypeArbitrageHunter, 0.90, 0.6, 7000},
	{"sim-arb-2", domain.AgentTypeArbitrageHunter, 0.65, 0.2, 4500},
	{"sim-arb-3", domain.AgentTypeArbitrageHunter, 0.40, 0.0, 2000},
	{"sim-arb-4", domain.AgentTypeArbitrageHunter, 0.30, 0.0, 1500},
}

// simulator drives sandbox runs: it seeds a synthetic agent fleet, submits
// predictions to every open market each tick, and resolves executable
// markets by injecting settlements into the sandbox bridge.
type simulator struct {
	registry *registry.Registry
	agents   domain.AgentStore
	trades   domain.TradeStore
	sandbox  *bridge.SandboxBridge

	interval    time.Duration
	settleAfter time.Duration
	rng         *rand.Rand
	settled     map[string]bool
	logger      *slog.Logger
	now         func() time.Time
}

func newSimulator(reg *registry.Registry, agents domain.AgentStore, trades domain.TradeStore, sandbox *bridge.SandboxBridge, interval time.Duration, logger *slog.Logger) *simulator {
	return &simulator{
		registry:    reg,
		agents:      agents,
		trades:      trades,
		sandbox:     sandbox,
		interval:    interval,
		settleAfter: 3 * interval,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		settled:     make(map[string]bool),
		logger:      logger.With(slog.String("component", "simulator")),
		now:         time.Now,
	}
}

// Run seeds the fleet and ticks until the context is cancelled.
func (s *simulator) Run(ctx context.Context) error {
	if err := s.seedFleet(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.ErrorContext(ctx, "simulator tick failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *simulator) seedFleet(ctx context.Context) error {
	for _, sa := range simFleet {
		err := s.agents.Upsert(ctx, domain.Agent{
			ID:                sa.id,
			Type:              sa.typ,
			Reputation:        sa.rep,
			Accuracy:          sa.skill,
			Status:            domain.AgentStatusActive,
			VerificationBonus: sa.bonus,
			UpdatedAt:         s.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("app: seed sandbox fleet: %w", err)
		}
	}
	s.logger.InfoContext(ctx, "sandbox fleet seeded", slog.Int("agents", len(simFleet)))
	return nil
}

func (s *simulator) tick(ctx context.Context) error {
	markets, err := s.registry.ListOpen(ctx)
	if err != nil {
		return err
	}

	for _, m := range markets {
		latent := latentProbability(m.ID)

		if m.Status == domain.MarketStatusOpen {
			s.submitPredictions(ctx, m, latent)
			continue
		}
		// Executable markets old enough get resolved.
		if !s.settled[m.ID] && s.now().UTC().Sub(m.CreatedAt) >= s.settleAfter {
			s.resolve(ctx, m, latent)
		}
	}
	return nil
}

// submitPredictions has every active agent forecast the market. Each agent's
// estimate is the latent probability blurred by noise inversely proportional
// to its skill.
func (s *simulator) submitPredictions(ctx context.Context, m domain.Market, latent float64) {
	for _, sa := range simFleet {
		noise := s.rng.NormFloat64() * 0.3 * (1 - sa.skill)
		p := clampProb(latent + noise)
		stake := 5 + s.rng.Float64()*45

		err := s.registry.RecordPrediction(ctx, domain.Prediction{
			MarketID:    m.ID,
			AgentID:     sa.id,
			Probability: p,
			Stake:       stake,
			SubmittedAt: s.now().UTC(),
		})
		if err != nil && !errors.Is(err, domain.ErrMarketClosed) {
			s.logger.WarnContext(ctx, "sandbox prediction rejected",
				slog.String("market_id", m.ID),
				slog.String("agent_id", sa.id),
				slog.String("error", err.Error()),
			)
		}
	}
}

// resolve draws the outcome from the latent probability and injects a
// settlement for the market's executed trade, paying out at the trade's
// take-profit or stop-loss level.
func (s *simulator) resolve(ctx context.Context, m domain.Market, latent float64) {
	outcome := 0.0
	if s.rng.Float64() < latent {
		outcome = 1.0
	}

	settlement := bridge.Settlement{
		MarketID:  m.ID,
		Outcome:   outcome,
		SettledAt: s.now().UTC(),
	}

	open, err := s.trades.ListOpen(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "sandbox settlement trade lookup failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	for _, t := range open {
		if t.MarketID != m.ID || t.Status != domain.TradeStatusExecuted {
			continue
		}
		settlement.TradeID = t.ID
		won := (t.Direction == domain.DirectionLong && outcome == 1) ||
			(t.Direction == domain.DirectionShort && outcome == 0)
		if won {
			settlement.RealizedPnL = t.TakeProfit
		} else {
			settlement.RealizedPnL = -t.StopLoss
		}
		break
	}

	s.sandbox.InjectSettlement(settlement)
	s.settled[m.ID] = true
	s.logger.InfoContext(ctx, "sandbox market resolved",
		slog.String("market_id", m.ID),
		slog.Float64("outcome", outcome),
	)
}

// latentProbability derives a stable per-market ground truth in [0.05, 0.95]
// so repeated sandbox predictions stay coherent.
func latentProbability(marketID string) float64 {
	h := fnv.New32a()
	h.Write([]byte(marketID))
	return 0.05 + 0.9*float64(h.Sum32()%1000)/999.0
}

func clampProb(p float64) float64 {
	if p < 0.01 {
		return 0.01
	}
	if p > 0.99 {
		return 0.99
	}
	return p
}
