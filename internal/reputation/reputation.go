// Package reputation owns agent reputation and accuracy. Scores change only
// through the settlement path here; every update is recorded as an
// append-only ReputationEvent.
package reputation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ethervenue/venue/internal/domain"
)

// Config holds the reputation update parameters.
type Config struct {
	// BaseDelta bounds a single update to [-BaseDelta, +BaseDelta] points.
	BaseDelta int
	// SuspensionFloor is the rolling accuracy below which an agent is
	// suspended and excluded from aggregation.
	SuspensionFloor float64
	// AccuracyWindow is the trailing number of settled markets the rolling
	// accuracy is computed over.
	AccuracyWindow int
}

// Store applies settlement outcomes to agent reputation.
type Store struct {
	agents      domain.AgentStore
	predictions domain.PredictionStore
	events      domain.ReputationEventStore
	cfg         Config
	logger      *slog.Logger

	mu sync.Mutex // serializes settlement updates
}

// NewStore creates a reputation Store.
func NewStore(agents domain.AgentStore, predictions domain.PredictionStore, events domain.ReputationEventStore, cfg Config, logger *slog.Logger) *Store {
	return &Store{
		agents:      agents,
		predictions: predictions,
		events:      events,
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "reputation")),
	}
}

// Delta maps a (predicted probability, outcome) pair onto a bounded
// reputation change: a Brier-style score scaled into
// [-baseDelta, +baseDelta]. The magnitude truncates toward zero so the full
// ±baseDelta is reserved for exactly right or exactly wrong predictions at
// probability 1 or 0; anything short of full confidence stays strictly
// inside the bound. Predictions near 0.5 are nearly neutral either way.
func Delta(baseDelta int, predicted, outcome float64) int {
	score := (1-math.Abs(predicted-outcome))*2 - 1 // in [-1, 1]
	return int(score * float64(baseDelta))
}

// Settle applies the realized outcome (0 or 1) of a settled market to every
// agent that contributed a prediction. Each agent gets one ReputationEvent,
// a clamped reputation update, a refreshed rolling accuracy, and a status
// re-evaluation against the suspension floor.
func (s *Store) Settle(ctx context.Context, marketID string, outcome float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	preds, err := s.predictions.ListByMarket(ctx, marketID)
	if err != nil {
		return fmt.Errorf("reputation: list predictions for %s: %w", marketID, err)
	}

	now := time.Now().UTC()
	for _, p := range preds {
		ag, err := s.agents.GetByID(ctx, p.AgentID)
		if err != nil {
			s.logger.WarnContext(ctx, "settlement for unknown agent",
				slog.String("agent_id", p.AgentID),
				slog.String("market_id", marketID),
			)
			continue
		}

		delta := Delta(s.cfg.BaseDelta, p.Probability, outcome)
		ev := domain.ReputationEvent{
			AgentID:   ag.ID,
			MarketID:  marketID,
			Predicted: p.Probability,
			Outcome:   outcome,
			Delta:     delta,
			CreatedAt: now,
		}
		if err := s.events.Append(ctx, ev); err != nil {
			return fmt.Errorf("reputation: append event for %s: %w", ag.ID, err)
		}

		ag.Reputation = clampReputation(ag.Reputation + delta)
		ag.TradeCount++
		ag.UpdatedAt = now

		acc, err := s.rollingAccuracy(ctx, ag.ID)
		if err != nil {
			return err
		}
		ag.Accuracy = acc

		switch {
		case ag.Status == domain.AgentStatusActive && acc < s.cfg.SuspensionFloor:
			ag.Status = domain.AgentStatusSuspended
			s.logger.WarnContext(ctx, "agent suspended",
				slog.String("agent_id", ag.ID),
				slog.Float64("accuracy", acc),
			)
		case ag.Status == domain.AgentStatusSuspended && acc >= s.cfg.SuspensionFloor:
			// Accuracy recovered; the agent rejoins aggregation.
			ag.Status = domain.AgentStatusActive
			s.logger.InfoContext(ctx, "agent reactivated",
				slog.String("agent_id", ag.ID),
				slog.Float64("accuracy", acc),
			)
		}

		if err := s.agents.Upsert(ctx, ag); err != nil {
			return fmt.Errorf("reputation: update agent %s: %w", ag.ID, err)
		}
	}

	return nil
}

// Reactivate is the manual operator override for a suspended agent.
func (s *Store) Reactivate(ctx context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ag, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		return fmt.Errorf("reputation: reactivate %s: %w", agentID, err)
	}
	ag.Status = domain.AgentStatusActive
	ag.UpdatedAt = time.Now().UTC()
	if err := s.agents.Upsert(ctx, ag); err != nil {
		return fmt.Errorf("reputation: reactivate %s: %w", agentID, err)
	}
	return nil
}

// rollingAccuracy computes the fraction of correct-side predictions over the
// agent's trailing event window. A prediction is counted correct when it put
// more than half its probability mass on the realized outcome.
func (s *Store) rollingAccuracy(ctx context.Context, agentID string) (float64, error) {
	evs, err := s.events.ListByAgent(ctx, agentID, domain.ListOpts{Limit: s.cfg.AccuracyWindow})
	if err != nil {
		return 0, fmt.Errorf("reputation: list events for %s: %w", agentID, err)
	}
	if len(evs) == 0 {
		return 0, nil
	}
	correct := 0
	for _, ev := range evs {
		if math.Abs(ev.Predicted-ev.Outcome) < 0.5 {
			correct++
		}
	}
	return float64(correct) / float64(len(evs)), nil
}

func clampReputation(r int) int {
	if r < 0 {
		return 0
	}
	if r > domain.ReputationMax {
		return domain.ReputationMax
	}
	return r
}
