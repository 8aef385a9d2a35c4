package risk

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
	return Config{
		MaxTotalExposure:       0.15,
		CorrelationLimit:       0.70,
		MaxConcurrentPositions: 5,
		StopLossPct:            0.015,
		TakeProfitPct:          0.03,
	}
}

func newTestManager(t *testing.T) (*Manager, *memory.TradeStore) {
	t.Helper()
	trades := memory.NewTradeStore()
	breaker := NewBreaker(0.10, 5)
	m := NewManager(trades, breaker, DefaultCorrelations(), testConfig(), slog.Default())
	return m, trades
}

func signal(id, asset string, size float64) domain.Signal {
	return domain.Signal{
		ID:         id,
		MarketID:   "mkt-" + asset,
		Asset:      asset,
		Direction:  domain.DirectionLong,
		Strength:   0.8,
		Confidence: 0.85,
		Size:       size,
		CreatedAt:  time.Now(),
	}
}

func TestAuthorizeApprovesAndAttachesRiskLevels(t *testing.T) {
	m, _ := newTestManager(t)

	tr, err := m.Authorize(context.Background(), signal("sig-1", "BTC", 0.02))
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusApproved, tr.Status)
	assert.Equal(t, 0.015, tr.StopLoss)
	assert.Equal(t, 0.03, tr.TakeProfit)
}

func TestAuthorizeExposureLimit(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	// Uncorrelated synthetic assets so only the exposure check can fail.
	assets := []string{"AAA", "BBB", "CCC"}
	corr := NewStaticCorrelations(0.1)
	m.corr = corr

	var used float64
	for i, a := range assets {
		tr, err := m.Authorize(ctx, signal("sig-"+a, a, 0.05))
		require.NoError(t, err, "trade %d", i)
		require.Equal(t, domain.TradeStatusApproved, tr.Status)
		used += 0.05
	}
	require.InDelta(t, 0.15, used, 1e-9)

	tr, err := m.Authorize(ctx, signal("sig-over", "DDD", 0.01))
	reason, ok := domain.IsRiskRejected(err)
	require.True(t, ok)
	assert.Equal(t, domain.RejectExposure, reason)
	assert.Equal(t, domain.TradeStatusRejected, tr.Status)
}

func TestAuthorizeCorrelationLimit(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Authorize(ctx, signal("sig-btc", "BTC", 0.02))
	require.NoError(t, err)

	// BTC/ETH correlation 0.85 > 0.70 limit.
	tr, err := m.Authorize(ctx, signal("sig-eth", "ETH", 0.01))
	reason, ok := domain.IsRiskRejected(err)
	require.True(t, ok)
	assert.Equal(t, domain.RejectCorrelation, reason)
	assert.Equal(t, domain.TradeStatusRejected, tr.Status)
}

func TestAuthorizePositionCountLimit(t *testing.T) {
	trades := memory.NewTradeStore()
	breaker := NewBreaker(0.50, 50)
	cfg := testConfig()
	cfg.MaxTotalExposure = 1.0
	m := NewManager(trades, breaker, NewStaticCorrelations(0.1), cfg, slog.Default())
	ctx := context.Background()

	for _, a := range []string{"A1", "A2", "A3", "A4", "A5"} {
		_, err := m.Authorize(ctx, signal("sig-"+a, a, 0.01))
		require.NoError(t, err)
	}

	_, err := m.Authorize(ctx, signal("sig-A6", "A6", 0.01))
	reason, ok := domain.IsRiskRejected(err)
	require.True(t, ok)
	assert.Equal(t, domain.RejectPositionCount, reason)
}

func TestAuthorizeIdempotentPerSignal(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.Authorize(ctx, signal("sig-1", "BTC", 0.02))
	require.NoError(t, err)

	second, err := m.Authorize(ctx, signal("sig-1", "BTC", 0.02))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	open, err := m.trades.ListOpen(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1, "retry must not double-count exposure")
}

func TestBreakerTripsAfterConsecutiveLosses(t *testing.T) {
	m, trades := newTestManager(t)
	ctx := context.Background()

	// Five losing settlements trip the streak breaker.
	for i := 0; i < 5; i++ {
		tr, err := m.Authorize(ctx, signal(testUUID(i), "AAA", 0.01))
		require.NoError(t, err)
		tr.Status = domain.TradeStatusExecuted
		require.NoError(t, m.Commit(ctx, tr))
		require.NoError(t, m.Settle(ctx, tr.ID, -0.005, time.Now()))
	}
	assert.True(t, m.Breaker().Tripped())

	// Even a very high-confidence signal is rejected while tripped.
	hot := signal("sig-hot", "ZZZ", 0.001)
	hot.Confidence = 0.95
	_, err := m.Authorize(ctx, hot)
	reason, ok := domain.IsRiskRejected(err)
	require.True(t, ok)
	assert.Equal(t, domain.RejectBreakerTripped, reason)

	// Manual reset restores authorization.
	m.Breaker().Reset()
	_, err = m.Authorize(ctx, signal("sig-after-reset", "ZZZ", 0.001))
	assert.NoError(t, err)

	wins, total, err := trades.CountSettledWinners(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, wins)
	assert.Equal(t, 5, total)
}

func TestBreakerTripsOnDailyLoss(t *testing.T) {
	b := NewBreaker(0.10, 50)

	b.RecordSettlement(-0.06)
	assert.False(t, b.Tripped())
	b.RecordSettlement(0.01) // win breaks the streak but not the daily loss
	b.RecordSettlement(-0.05)
	assert.True(t, b.Tripped())
}

func TestBreakerWinResetsStreak(t *testing.T) {
	b := NewBreaker(1.0, 3)

	b.RecordSettlement(-0.01)
	b.RecordSettlement(-0.01)
	b.RecordSettlement(0.02)
	b.RecordSettlement(-0.01)
	b.RecordSettlement(-0.01)
	assert.False(t, b.Tripped())
	b.RecordSettlement(-0.01)
	assert.True(t, b.Tripped())
}

func testUUID(i int) string {
	return string(rune('a'+i)) + "-signal"
}
