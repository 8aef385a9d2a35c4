package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethervenue/venue/internal/aggregator"
	"github.com/ethervenue/venue/internal/bridge"
	"github.com/ethervenue/venue/internal/cache/local"
	"github.com/ethervenue/venue/internal/domain"
	"github.com/ethervenue/venue/internal/notify"
	"github.com/ethervenue/venue/internal/registry"
	"github.com/ethervenue/venue/internal/reputation"
	"github.com/ethervenue/venue/internal/risk"
	"github.com/ethervenue/venue/internal/signalgen"
	"github.com/ethervenue/venue/internal/store/memory"
)

type testVenue struct {
	scheduler *Scheduler
	markets   *memory.MarketStore
	agents    *memory.AgentStore
	preds     *memory.PredictionStore
	trades    *memory.TradeStore
	registry  *registry.Registry
	bridge    *bridge.SandboxBridge
	cache     *local.ConsensusCache
	locks     *local.LockManager
}

func newTestVenue(t *testing.T) *testVenue {
	t.Helper()
	logger := slog.Default()

	markets := memory.NewMarketStore()
	agents := memory.NewAgentStore()
	preds := memory.NewPredictionStore()
	trades := memory.NewTradeStore()
	events := memory.NewReputationEventStore()

	reg := registry.New(markets, preds, registry.DefaultPrices(), registry.Config{
		MaxActiveMarkets: 25,
		CryptoAssets:     []string{"BTC", "ETH", "SOL", "ARB", "AVAX"},
	}, logger)

	agg := aggregator.New(preds, agents, 3, logger)
	gen := signalgen.New(signalgen.Config{ExecutionThreshold: 0.70, MaxPositionSize: 0.025}, logger)
	riskMgr := risk.NewManager(trades, risk.NewBreaker(0.10, 5), risk.NewStaticCorrelations(0.1), risk.Config{
		MaxTotalExposure:       0.15,
		CorrelationLimit:       0.70,
		MaxConcurrentPositions: 5,
		StopLossPct:            0.015,
		TakeProfitPct:          0.03,
	}, logger)
	rep := reputation.NewStore(agents, preds, events, reputation.Config{
		BaseDelta: 150, SuspensionFloor: 0.40, AccuracyWindow: 20,
	}, logger)

	sandbox := bridge.NewSandboxBridge()
	cache := local.NewConsensusCache()
	locks := local.NewLockManager()
	bus := local.NewSignalBus()
	notifier := notify.NewNotifier(nil, nil, logger)

	sched := New(reg, agg, gen, riskMgr, rep, sandbox, cache, locks, bus, notifier, nil, Config{
		MarketCreationInterval: 6 * time.Hour,
		SignalCycleInterval:    30 * time.Minute,
		SettlementPollInterval: 5 * time.Minute,
	}, logger)

	return &testVenue{
		scheduler: sched,
		markets:   markets,
		agents:    agents,
		preds:     preds,
		trades:    trades,
		registry:  reg,
		bridge:    sandbox,
		cache:     cache,
		locks:     locks,
	}
}

// seedConfidentMarket creates an open market with six unanimous confident
// agents, enough for full quorum-scaled confidence.
func (v *testVenue) seedConfidentMarket(t *testing.T) domain.Market {
	t.Helper()
	ctx := context.Background()

	m, created, err := v.registry.CreateNext(ctx)
	require.NoError(t, err)
	require.True(t, created)

	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("agent-%d", i)
		require.NoError(t, v.agents.Upsert(ctx, domain.Agent{
			ID: id, Type: domain.AgentTypeCryptoSpecialist,
			Reputation: 6000, Accuracy: 0.8, Status: domain.AgentStatusActive,
		}))
		require.NoError(t, v.registry.RecordPrediction(ctx, domain.Prediction{
			MarketID: m.ID, AgentID: id, Probability: 0.95, Stake: 10,
		}))
	}
	return m
}

func TestSignalCycleExecutesConfidentMarket(t *testing.T) {
	v := newTestVenue(t)
	ctx := context.Background()
	m := v.seedConfidentMarket(t)

	require.NoError(t, v.scheduler.SignalCycle(ctx))

	got, err := v.markets.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusExecutable, got.Status)

	open, err := v.trades.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, domain.TradeStatusExecuted, open[0].Status)
	assert.Equal(t, domain.DirectionLong, open[0].Direction)
	assert.Positive(t, open[0].FillPrice)

	// Consensus lands in the dashboard cache.
	cons, err := v.cache.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, cons.AgentCount)
	assert.InDelta(t, 0.95, cons.Probability, 1e-9)
}

func TestSignalCycleMonitoringBelowQuorum(t *testing.T) {
	v := newTestVenue(t)
	ctx := context.Background()

	m, _, err := v.registry.CreateNext(ctx)
	require.NoError(t, err)

	// Two agents is below the quorum of three.
	for i := 0; i < 2; i++ {
		id := fmt.Sprintf("agent-%d", i)
		require.NoError(t, v.agents.Upsert(ctx, domain.Agent{
			ID: id, Reputation: 6000, Accuracy: 0.8, Status: domain.AgentStatusActive,
		}))
		require.NoError(t, v.registry.RecordPrediction(ctx, domain.Prediction{
			MarketID: m.ID, AgentID: id, Probability: 0.95,
		}))
	}

	require.NoError(t, v.scheduler.SignalCycle(ctx))

	got, err := v.markets.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusOpen, got.Status)

	open, err := v.trades.ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestSignalCycleIdempotentForExecutableMarket(t *testing.T) {
	v := newTestVenue(t)
	ctx := context.Background()
	v.seedConfidentMarket(t)

	require.NoError(t, v.scheduler.SignalCycle(ctx))
	require.NoError(t, v.scheduler.SignalCycle(ctx))

	// The second cycle refreshes the cache but opens no second position.
	open, err := v.trades.ListOpen(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestCreationTickRespectsLock(t *testing.T) {
	v := newTestVenue(t)
	ctx := context.Background()

	unlock, err := v.locks.Acquire(ctx, creationLockKey, time.Minute)
	require.NoError(t, err)
	defer unlock()

	require.NoError(t, v.scheduler.CreationTick(ctx))

	n, err := v.markets.CountByStatus(ctx, domain.MarketStatusOpen)
	require.NoError(t, err)
	assert.Zero(t, n, "tick must be skipped while the lock is held")
}

func TestSettlementPollAppliesOutcome(t *testing.T) {
	v := newTestVenue(t)
	ctx := context.Background()
	m := v.seedConfidentMarket(t)

	require.NoError(t, v.scheduler.SignalCycle(ctx))
	open, err := v.trades.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)

	v.bridge.InjectSettlement(bridge.Settlement{
		MarketID:    m.ID,
		Outcome:     1,
		TradeID:     open[0].ID,
		RealizedPnL: 0.012,
		SettledAt:   time.Now().UTC(),
	})

	require.NoError(t, v.scheduler.SettlementPoll(ctx))

	got, err := v.markets.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusSettled, got.Status)
	require.NotNil(t, got.Outcome)
	assert.Equal(t, 1.0, *got.Outcome)

	tr, err := v.trades.GetByID(ctx, open[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusSettled, tr.Status)
	assert.Equal(t, 0.012, tr.RealizedPnL)

	// Every contributor was rewarded for the correct unanimous call.
	ag, err := v.agents.GetByID(ctx, "agent-0")
	require.NoError(t, err)
	assert.Greater(t, ag.Reputation, 6000)
	assert.Equal(t, 1, ag.TradeCount)

	// Settled consensus leaves the cache.
	_, err = v.cache.Get(ctx, m.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSettlementPollExpiresOverdueMarkets(t *testing.T) {
	v := newTestVenue(t)
	ctx := context.Background()

	m, _, err := v.registry.CreateNext(ctx)
	require.NoError(t, err)
	m.Deadline = time.Now().Add(-time.Hour)
	require.NoError(t, v.markets.Update(ctx, m))

	require.NoError(t, v.scheduler.SettlementPoll(ctx))

	got, err := v.markets.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusExpired, got.Status)
}

func TestSettlementReplayIsHarmless(t *testing.T) {
	v := newTestVenue(t)
	ctx := context.Background()
	m := v.seedConfidentMarket(t)

	require.NoError(t, v.scheduler.SignalCycle(ctx))
	open, _ := v.trades.ListOpen(ctx)
	require.Len(t, open, 1)

	st := bridge.Settlement{MarketID: m.ID, Outcome: 1, TradeID: open[0].ID, RealizedPnL: 0.01}
	v.bridge.InjectSettlement(st)
	require.NoError(t, v.scheduler.SettlementPoll(ctx))

	// The bridge may replay a settlement; reputation must not be applied twice.
	v.bridge.InjectSettlement(st)
	require.NoError(t, v.scheduler.SettlementPoll(ctx))

	ag, err := v.agents.GetByID(ctx, "agent-0")
	require.NoError(t, err)
	assert.Equal(t, 1, ag.TradeCount)
}
