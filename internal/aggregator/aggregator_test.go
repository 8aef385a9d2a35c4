package aggregator

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethervenue/venue/internal/domain"
	"github.com/ethervenue/venue/internal/store/memory"
)

func newTestAggregator(t *testing.T) (*Aggregator, *memory.PredictionStore, *memory.AgentStore) {
	t.Helper()
	preds := memory.NewPredictionStore()
	agents := memory.NewAgentStore()
	agg := New(preds, agents, 3, slog.Default())
	return agg, preds, agents
}

func addAgent(t *testing.T, agents *memory.AgentStore, id string, rep int, acc float64, status domain.AgentStatus) {
	t.Helper()
	require.NoError(t, agents.Upsert(context.Background(), domain.Agent{
		ID:         id,
		Type:       domain.AgentTypeCryptoSpecialist,
		Reputation: rep,
		Accuracy:   acc,
		Status:     status,
	}))
}

func addPrediction(t *testing.T, preds *memory.PredictionStore, marketID, agentID string, prob float64) {
	t.Helper()
	require.NoError(t, preds.Upsert(context.Background(), domain.Prediction{
		MarketID:    marketID,
		AgentID:     agentID,
		Probability: prob,
		Stake:       100,
		SubmittedAt: time.Now(),
	}))
}

func TestComputeConsensusNoPredictions(t *testing.T) {
	agg, _, _ := newTestAggregator(t)

	_, err := agg.ComputeConsensus(context.Background(), "mkt-empty")
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestComputeConsensusBelowQuorum(t *testing.T) {
	agg, preds, agents := newTestAggregator(t)

	addAgent(t, agents, "a1", 8000, 0.8, domain.AgentStatusActive)
	addAgent(t, agents, "a2", 8000, 0.8, domain.AgentStatusActive)
	addPrediction(t, preds, "mkt-1", "a1", 0.9)
	addPrediction(t, preds, "mkt-1", "a2", 0.85)

	_, err := agg.ComputeConsensus(context.Background(), "mkt-1")
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestComputeConsensusFiveAgentScenario(t *testing.T) {
	agg, preds, agents := newTestAggregator(t)

	probs := []float64{0.8, 0.75, 0.7, 0.9, 0.6}
	ids := []string{"a1", "a2", "a3", "a4", "a5"}
	for i, id := range ids {
		addAgent(t, agents, id, 8000, 0.8, domain.AgentStatusActive)
		addPrediction(t, preds, "mkt-1", id, probs[i])
	}

	c, err := agg.ComputeConsensus(context.Background(), "mkt-1")
	require.NoError(t, err)

	// Equal weights, so the consensus is the plain mean.
	assert.InDelta(t, 0.75, c.Probability, 1e-9)
	// Raw confidence mean(|p-0.5|*2) = 0.5, scaled by 5/6 quorum factor.
	assert.InDelta(t, 0.5*5.0/6.0, c.Confidence, 1e-9)
	assert.Equal(t, 5, c.AgentCount)
}

func TestComputeConsensusIgnoresSuspendedAgents(t *testing.T) {
	agg, preds, agents := newTestAggregator(t)

	for _, id := range []string{"a1", "a2", "a3"} {
		addAgent(t, agents, id, 8000, 0.8, domain.AgentStatusActive)
		addPrediction(t, preds, "mkt-1", id, 0.8)
	}
	// A suspended agent with an extreme prediction must carry no weight.
	addAgent(t, agents, "banned", 9999, 0.9, domain.AgentStatusSuspended)
	addPrediction(t, preds, "mkt-1", "banned", 0.01)

	c, err := agg.ComputeConsensus(context.Background(), "mkt-1")
	require.NoError(t, err)
	assert.Equal(t, 3, c.AgentCount)
	assert.InDelta(t, 0.8, c.Probability, 1e-9)
}

func TestComputeConsensusWeightsByReputation(t *testing.T) {
	agg, preds, agents := newTestAggregator(t)

	addAgent(t, agents, "strong", 10000, 0.9, domain.AgentStatusActive)
	addAgent(t, agents, "weak1", 1000, 0.9, domain.AgentStatusActive)
	addAgent(t, agents, "weak2", 1000, 0.9, domain.AgentStatusActive)
	addPrediction(t, preds, "mkt-1", "strong", 0.9)
	addPrediction(t, preds, "mkt-1", "weak1", 0.4)
	addPrediction(t, preds, "mkt-1", "weak2", 0.4)

	c, err := agg.ComputeConsensus(context.Background(), "mkt-1")
	require.NoError(t, err)
	// weights: strong 1.0, weak 0.1 each -> (0.9 + 0.04 + 0.04) / 1.2
	assert.InDelta(t, 0.98/1.2, c.Probability, 1e-9)
}

func TestComputeConsensusLowAccuracyDecay(t *testing.T) {
	agg, preds, agents := newTestAggregator(t)

	addAgent(t, agents, "sharp", 5000, 0.8, domain.AgentStatusActive)
	addAgent(t, agents, "dull1", 5000, 0.3, domain.AgentStatusActive)
	addAgent(t, agents, "dull2", 5000, 0.3, domain.AgentStatusActive)
	addPrediction(t, preds, "mkt-1", "sharp", 0.9)
	addPrediction(t, preds, "mkt-1", "dull1", 0.1)
	addPrediction(t, preds, "mkt-1", "dull2", 0.1)

	c, err := agg.ComputeConsensus(context.Background(), "mkt-1")
	require.NoError(t, err)
	// sharp weight 0.5, dull weights 0.25 each -> (0.45+0.025+0.025)/1.0
	assert.InDelta(t, 0.5, c.Probability, 1e-9)
}

func TestQuorumScaleCapsAtFullQuorum(t *testing.T) {
	agg, preds, agents := newTestAggregator(t)

	// Six identical predictions reach the full-confidence quorum.
	for _, id := range []string{"a1", "a2", "a3", "a4", "a5", "a6"} {
		addAgent(t, agents, id, 8000, 0.8, domain.AgentStatusActive)
		addPrediction(t, preds, "mkt-1", id, 1.0)
	}

	c, err := agg.ComputeConsensus(context.Background(), "mkt-1")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, c.Confidence, 1e-9)
}

func TestComputeConsensusReplacedPredictionCountsOnce(t *testing.T) {
	agg, preds, agents := newTestAggregator(t)

	for _, id := range []string{"a1", "a2", "a3"} {
		addAgent(t, agents, id, 8000, 0.8, domain.AgentStatusActive)
		addPrediction(t, preds, "mkt-1", id, 0.6)
	}
	// a1 resubmits; the later probability replaces the earlier one.
	addPrediction(t, preds, "mkt-1", "a1", 0.9)

	c, err := agg.ComputeConsensus(context.Background(), "mkt-1")
	require.NoError(t, err)
	assert.Equal(t, 3, c.AgentCount)
	assert.InDelta(t, (0.9+0.6+0.6)/3, c.Probability, 1e-9)
}
