package reputation

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

func testConfig() Config {
	return Config{BaseDelta: 150, SuspensionFloor: 0.40, AccuracyWindow: 20}
}

func newTestStore(t *testing.T) (*Store, *memory.AgentStore, *memory.PredictionStore, *memory.ReputationEventStore) {
	t.Helper()
	agents := memory.NewAgentStore()
	preds := memory.NewPredictionStore()
	events := memory.NewReputationEventStore()
	s := NewStore(agents, preds, events, testConfig(), slog.Default())
	return s, agents, preds, events
}

func TestDeltaBounds(t *testing.T) {
	const base = 150
	for _, p := range []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1} {
		for _, o := range []float64{0, 1} {
			d := Delta(base, p, o)
			assert.GreaterOrEqual(t, d, -base)
			assert.LessOrEqual(t, d, base)
		}
	}
}

func TestDeltaExtremes(t *testing.T) {
	const base = 150
	// Max gain only for an exactly correct, fully confident prediction.
	assert.Equal(t, base, Delta(base, 1.0, 1.0))
	assert.Equal(t, base, Delta(base, 0.0, 0.0))
	// Max loss for a fully confident, fully wrong prediction.
	assert.Equal(t, -base, Delta(base, 1.0, 0.0))
	assert.Equal(t, -base, Delta(base, 0.0, 1.0))
	// Indifference is neutral regardless of outcome.
	assert.Equal(t, 0, Delta(base, 0.5, 0.0))
	assert.Equal(t, 0, Delta(base, 0.5, 1.0))
	// Anything short of full confidence stays strictly inside the bound,
	// even when scaling lands within rounding distance of it.
	assert.Less(t, Delta(base, 0.99, 1.0), base)
	assert.Less(t, Delta(base, 0.999, 1.0), base)
	assert.Greater(t, Delta(base, 0.001, 1.0), -base)
	assert.Greater(t, Delta(base, 0.999, 0.0), -base)
}

func TestSettleAppliesBoundedUpdates(t *testing.T) {
	s, agents, preds, events := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, agents.Upsert(ctx, domain.Agent{
		ID: "a1", Reputation: 5000, Status: domain.AgentStatusActive,
	}))
	require.NoError(t, preds.Upsert(ctx, domain.Prediction{
		MarketID: "mkt-1", AgentID: "a1", Probability: 0.9, SubmittedAt: time.Now(),
	}))

	require.NoError(t, s.Settle(ctx, "mkt-1", 1))

	ag, err := agents.GetByID(ctx, "a1")
	require.NoError(t, err)
	// delta = round(((1-0.1)*2-1)*150) = 120
	assert.Equal(t, 5120, ag.Reputation)
	assert.Equal(t, 1, ag.TradeCount)
	assert.Equal(t, 1.0, ag.Accuracy)

	evs, err := events.ListByAgent(ctx, "a1", domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, 120, evs[0].Delta)
}

func TestSettleClampsReputation(t *testing.T) {
	s, agents, preds, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, agents.Upsert(ctx, domain.Agent{
		ID: "low", Reputation: 50, Status: domain.AgentStatusActive,
	}))
	require.NoError(t, preds.Upsert(ctx, domain.Prediction{
		MarketID: "mkt-1", AgentID: "low", Probability: 1.0,
	}))

	require.NoError(t, s.Settle(ctx, "mkt-1", 0))

	ag, err := agents.GetByID(ctx, "low")
	require.NoError(t, err)
	assert.Equal(t, 0, ag.Reputation)
}

func TestSettleSuspendsLowAccuracyAgent(t *testing.T) {
	s, agents, preds, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, agents.Upsert(ctx, domain.Agent{
		ID: "a1", Reputation: 5000, Status: domain.AgentStatusActive,
	}))

	// Three wrong calls, then one right: rolling accuracy 0.25 < 0.40.
	markets := []struct {
		id      string
		prob    float64
		outcome float64
	}{
		{"m1", 0.9, 0}, {"m2", 0.8, 0}, {"m3", 0.7, 0}, {"m4", 0.9, 1},
	}
	for _, mk := range markets {
		require.NoError(t, preds.Upsert(ctx, domain.Prediction{
			MarketID: mk.id, AgentID: "a1", Probability: mk.prob,
		}))
		require.NoError(t, s.Settle(ctx, mk.id, mk.outcome))
	}

	ag, err := agents.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusSuspended, ag.Status)
	assert.InDelta(t, 0.25, ag.Accuracy, 1e-9)
}

func TestSuspendedAgentRecoversOnAccuracy(t *testing.T) {
	s, agents, preds, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, agents.Upsert(ctx, domain.Agent{
		ID: "a1", Reputation: 5000, Status: domain.AgentStatusActive,
	}))

	// Two misses suspend the agent (accuracy 0).
	for _, id := range []string{"m1", "m2"} {
		require.NoError(t, preds.Upsert(ctx, domain.Prediction{
			MarketID: id, AgentID: "a1", Probability: 0.9,
		}))
		require.NoError(t, s.Settle(ctx, id, 0))
	}
	ag, _ := agents.GetByID(ctx, "a1")
	require.Equal(t, domain.AgentStatusSuspended, ag.Status)

	// Two hits bring accuracy to 0.5 >= 0.40 and reactivate.
	for _, id := range []string{"m3", "m4"} {
		require.NoError(t, preds.Upsert(ctx, domain.Prediction{
			MarketID: id, AgentID: "a1", Probability: 0.9,
		}))
		require.NoError(t, s.Settle(ctx, id, 1))
	}
	ag, _ = agents.GetByID(ctx, "a1")
	assert.Equal(t, domain.AgentStatusActive, ag.Status)
}

func TestReactivateManualOverride(t *testing.T) {
	s, agents, _, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, agents.Upsert(ctx, domain.Agent{
		ID: "a1", Status: domain.AgentStatusSuspended,
	}))
	require.NoError(t, s.Reactivate(ctx, "a1"))

	ag, err := agents.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusActive, ag.Status)
}
