package registry

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

func newTestRegistry(t *testing.T) (*Registry, *memory.MarketStore, *memory.PredictionStore) {
	t.Helper()
	markets := memory.NewMarketStore()
	preds := memory.NewPredictionStore()
	r := New(markets, preds, DefaultPrices(), Config{
		MaxActiveMarkets: 25,
		CryptoAssets:     []string{"BTC", "ETH", "SOL", "ARB", "AVAX"},
	}, slog.Default())
	return r, markets, preds
}

func TestCreateNextRotatesTypes(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	var types []domain.MarketType
	for i := 0; i < 3; i++ {
		m, created, err := r.CreateNext(ctx)
		require.NoError(t, err)
		require.True(t, created)
		types = append(types, m.Type)
	}
	assert.Equal(t, []domain.MarketType{
		domain.MarketTypeCryptoPrice,
		domain.MarketTypeAIPerf,
		domain.MarketTypeTechTrend,
	}, types)
}

func TestCreateCryptoMarketTargetPrice(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	m, created, err := r.CreateNext(context.Background())
	require.NoError(t, err)
	require.True(t, created)
	require.NotNil(t, m.Crypto)

	// First round-robin asset is BTC at 95000; target is 15% above.
	assert.Equal(t, "BTC", m.Crypto.Asset)
	assert.InDelta(t, 95_000*1.15, m.Crypto.TargetPrice, 1e-6)
	assert.Equal(t, domain.MarketStatusOpen, m.Status)
	assert.Contains(t, m.Question, "BTC")
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), m.Deadline, time.Minute)
}

func TestCreateNextSkipsAtCap(t *testing.T) {
	markets := memory.NewMarketStore()
	preds := memory.NewPredictionStore()
	r := New(markets, preds, DefaultPrices(), Config{
		MaxActiveMarkets: 2,
		CryptoAssets:     []string{"BTC"},
	}, slog.Default())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, created, err := r.CreateNext(ctx)
		require.NoError(t, err)
		require.True(t, created)
	}

	_, created, err := r.CreateNext(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	n, err := markets.CountByStatus(ctx, domain.MarketStatusOpen)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRecordPredictionVolumeMonotone(t *testing.T) {
	r, markets, _ := newTestRegistry(t)
	ctx := context.Background()

	m, _, err := r.CreateNext(ctx)
	require.NoError(t, err)

	require.NoError(t, r.RecordPrediction(ctx, domain.Prediction{
		MarketID: m.ID, AgentID: "a1", Probability: 0.8, Stake: 100,
	}))
	require.NoError(t, r.RecordPrediction(ctx, domain.Prediction{
		MarketID: m.ID, AgentID: "a2", Probability: 0.6, Stake: 50,
	}))

	got, err := markets.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 150.0, got.Volume)

	// Resubmission replaces the prediction but never moves volume.
	require.NoError(t, r.RecordPrediction(ctx, domain.Prediction{
		MarketID: m.ID, AgentID: "a1", Probability: 0.3, Stake: 100,
	}))
	got, err = markets.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 150.0, got.Volume)
}

func TestRecordPredictionClosedMarket(t *testing.T) {
	r, markets, _ := newTestRegistry(t)
	ctx := context.Background()

	m, _, err := r.CreateNext(ctx)
	require.NoError(t, err)
	m.Status = domain.MarketStatusExpired
	require.NoError(t, markets.Update(ctx, m))

	err = r.RecordPrediction(ctx, domain.Prediction{MarketID: m.ID, AgentID: "a1", Probability: 0.7})
	assert.ErrorIs(t, err, domain.ErrMarketClosed)
}

func TestLifecycleTransitions(t *testing.T) {
	r, markets, _ := newTestRegistry(t)
	ctx := context.Background()

	m, _, err := r.CreateNext(ctx)
	require.NoError(t, err)

	// Settling an open market is illegal; it must pass through executable.
	err = r.Settle(ctx, m.ID, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	require.NoError(t, r.MarkExecutable(ctx, m.ID))
	require.NoError(t, r.Settle(ctx, m.ID, 1))

	got, err := markets.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusSettled, got.Status)
	require.NotNil(t, got.Outcome)
	assert.Equal(t, 1.0, *got.Outcome)
	assert.NotNil(t, got.SettledAt)

	// Settled is terminal.
	err = r.MarkExecutable(ctx, m.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestExpireDue(t *testing.T) {
	r, markets, _ := newTestRegistry(t)
	ctx := context.Background()

	past, _, err := r.CreateNext(ctx)
	require.NoError(t, err)
	past.Deadline = time.Now().Add(-time.Hour)
	require.NoError(t, markets.Update(ctx, past))

	future, _, err := r.CreateNext(ctx)
	require.NoError(t, err)

	expired, err := r.ExpireDue(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, past.ID, expired[0].ID)

	got, err := markets.GetByID(ctx, past.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusExpired, got.Status)

	got, err = markets.GetByID(ctx, future.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusOpen, got.Status)
}

func TestListOpenIncludesExecutable(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	a, _, err := r.CreateNext(ctx)
	require.NoError(t, err)
	_, _, err = r.CreateNext(ctx)
	require.NoError(t, err)
	require.NoError(t, r.MarkExecutable(ctx, a.ID))

	open, err := r.ListOpen(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 2)
}
