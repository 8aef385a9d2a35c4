package signalgen

import (
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethervenue/venue/internal/domain"
)

func testMarket() domain.Market {
	return domain.Market{
		ID:       "mkt-btc",
		Type:     domain.MarketTypeCryptoPrice,
		Question: "Will BTC be above $112,000 by March 15?",
		Crypto:   &domain.CryptoDetail{Asset: "BTC", TargetPrice: 112000},
		Status:   domain.MarketStatusOpen,
	}
}

func consensus(prob, conf float64) domain.Consensus {
	return domain.Consensus{
		MarketID:    "mkt-btc",
		Probability: prob,
		Confidence:  conf,
		AgentCount:  5,
		ComputedAt:  time.Now(),
	}
}

func TestEvaluateBelowThresholdStaysMonitoring(t *testing.T) {
	g := New(Config{ExecutionThreshold: 0.70, MaxPositionSize: 0.025}, slog.Default())

	for _, conf := range []float64{0.0, 0.3, 0.5, 0.6999} {
		sig, ok := g.Evaluate(testMarket(), consensus(0.9, conf))
		assert.False(t, ok, "confidence %v must stay monitoring", conf)
		assert.Nil(t, sig)
	}
}

func TestEvaluateDirection(t *testing.T) {
	g := New(Config{ExecutionThreshold: 0.70, MaxPositionSize: 0.025}, slog.Default())

	long, ok := g.Evaluate(testMarket(), consensus(0.8, 0.75))
	require.True(t, ok)
	assert.Equal(t, domain.DirectionLong, long.Direction)
	assert.Equal(t, "BTC", long.Asset)

	short, ok := g.Evaluate(testMarket(), consensus(0.2, 0.75))
	require.True(t, ok)
	assert.Equal(t, domain.DirectionShort, short.Direction)
}

func TestEvaluateExactMidpointIsAmbiguous(t *testing.T) {
	g := New(Config{ExecutionThreshold: 0.70, MaxPositionSize: 0.025}, slog.Default())

	sig, ok := g.Evaluate(testMarket(), consensus(0.5, 0.99))
	assert.False(t, ok)
	assert.Nil(t, sig)
}

func TestEvaluateStrengthAndSize(t *testing.T) {
	g := New(Config{ExecutionThreshold: 0.70, MaxPositionSize: 0.025}, slog.Default())

	sig, ok := g.Evaluate(testMarket(), consensus(0.9, 0.8))
	require.True(t, ok)
	// strength = 0.8 * |2*0.9-1| = 0.64
	assert.InDelta(t, 0.64, sig.Strength, 1e-9)
	assert.InDelta(t, 0.64*0.025, sig.Size, 1e-9)
}

func TestSizeMonotoneAndCapped(t *testing.T) {
	const maxSize = 0.025
	g := New(Config{ExecutionThreshold: 0.0, MaxPositionSize: maxSize}, slog.Default())

	rng := rand.New(rand.NewSource(42))
	prevStrength, prevSize := -1.0, -1.0
	for i := 0; i < 1000; i++ {
		conf := rng.Float64()
		prob := rng.Float64()
		if prob == 0.5 {
			continue
		}
		sig, ok := g.Evaluate(testMarket(), consensus(prob, conf))
		if !ok {
			continue
		}
		assert.GreaterOrEqual(t, sig.Size, 0.0)
		assert.LessOrEqual(t, sig.Size, maxSize)
		if prevStrength >= 0 && sig.Strength >= prevStrength {
			assert.GreaterOrEqual(t, sig.Size, prevSize)
		}
		prevStrength, prevSize = sig.Strength, sig.Size
	}
}
