// Package aggregator computes the reputation-weighted prediction consensus
// for a market. It never mutates agent state; reputation is read once as a
// snapshot at the start of each computation so concurrent settlement updates
// cannot be observed mid-aggregation.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ethervenue/venue/internal/domain"
)

const (
	// Weight clamp bounds for the reputation factor.
	minReputationWeight = 0.05
	maxReputationWeight = 2.0

	// Agents below this rolling accuracy have their weight halved so
	// low-skill agents cannot dominate via volume.
	accuracyFloor = 0.5
	accuracyDecay = 0.5
)

// Aggregator derives per-market consensus from current predictions and the
// current agent reputation snapshot.
type Aggregator struct {
	predictions domain.PredictionStore
	agents      domain.AgentStore
	minAgents   int
	logger      *slog.Logger
}

// New creates an Aggregator. minAgents is the consensus quorum; markets with
// fewer contributing agents yield domain.ErrInsufficientData.
func New(predictions domain.PredictionStore, agents domain.AgentStore, minAgents int, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		predictions: predictions,
		agents:      agents,
		minAgents:   minAgents,
		logger:      logger.With(slog.String("component", "aggregator")),
	}
}

// Snapshot returns the current set of active agents keyed by ID. Suspended
// and idle agents are excluded, so their predictions carry no weight.
func (a *Aggregator) Snapshot(ctx context.Context) (map[string]domain.Agent, error) {
	active, err := a.agents.ListByStatus(ctx, domain.AgentStatusActive)
	if err != nil {
		return nil, fmt.Errorf("aggregator: snapshot agents: %w", err)
	}
	snap := make(map[string]domain.Agent, len(active))
	for _, ag := range active {
		snap[ag.ID] = ag
	}
	return snap, nil
}

// ComputeConsensus takes a fresh agent snapshot and computes the consensus
// for one market. It returns domain.ErrInsufficientData when the market has
// no tradable consensus (zero predictions or contributor count below quorum);
// that condition is the monitoring steady state, not an operator error.
func (a *Aggregator) ComputeConsensus(ctx context.Context, marketID string) (domain.Consensus, error) {
	snap, err := a.Snapshot(ctx)
	if err != nil {
		return domain.Consensus{}, err
	}
	return a.ComputeWithSnapshot(ctx, marketID, snap)
}

// ComputeWithSnapshot computes consensus against a caller-provided agent
// snapshot. The scheduler takes one snapshot per cycle and reuses it across
// all markets so every market in a cycle sees the same reputation state.
func (a *Aggregator) ComputeWithSnapshot(ctx context.Context, marketID string, snap map[string]domain.Agent) (domain.Consensus, error) {
	preds, err := a.predictions.ListByMarket(ctx, marketID)
	if err != nil {
		return domain.Consensus{}, fmt.Errorf("aggregator: list predictions for %s: %w", marketID, err)
	}

	var (
		totalWeight  float64
		weightedProb float64
		weightedDist float64
		contributors int
	)
	for _, p := range preds {
		ag, ok := snap[p.AgentID]
		if !ok {
			// Not in the snapshot: suspended, idle, or unknown.
			continue
		}
		w := agentWeight(ag)
		weightedProb += p.Probability * w
		weightedDist += math.Abs(p.Probability-0.5) * 2 * w
		totalWeight += w
		contributors++
	}

	if contributors < a.minAgents || totalWeight == 0 {
		a.logger.DebugContext(ctx, "market below quorum",
			slog.String("market_id", marketID),
			slog.Int("contributors", contributors),
			slog.Int("quorum", a.minAgents),
		)
		return domain.Consensus{}, domain.ErrInsufficientData
	}

	c := domain.Consensus{
		MarketID:    marketID,
		Probability: weightedProb / totalWeight,
		Confidence:  (weightedDist / totalWeight) * a.quorumScale(contributors),
		AgentCount:  contributors,
		ComputedAt:  time.Now().UTC(),
	}
	return c, nil
}

// quorumScale bounds confidence by contributor count: full confidence
// requires twice the minimum quorum, so unanimous predictions from a bare
// quorum cannot read as maximal certainty.
func (a *Aggregator) quorumScale(contributors int) float64 {
	full := a.minAgents * 2
	if contributors >= full {
		return 1.0
	}
	return float64(contributors) / float64(full)
}

// agentWeight computes the aggregation weight for one agent:
// clamp(reputation/10000, 0.05, 2.0) x (1 + verification bonus) x decay,
// where decay halves the weight of agents whose rolling accuracy is below
// the floor.
func agentWeight(ag domain.Agent) float64 {
	w := float64(ag.Reputation) / float64(domain.ReputationMax)
	if w < minReputationWeight {
		w = minReputationWeight
	}
	if w > maxReputationWeight {
		w = maxReputationWeight
	}
	w *= 1 + ag.VerificationBonus
	if ag.Accuracy < accuracyFloor {
		w *= accuracyDecay
	}
	return w
}
