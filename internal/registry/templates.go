package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ethervenue/venue/internal/domain"
)

// targetPremium is the fraction above the indicative price a crypto market
// question resolves against.
const targetPremium = 0.15

// PriceSource supplies an indicative price for an asset, used only to set the
// target level of a new crypto market.
type PriceSource interface {
	Price(ctx context.Context, asset string) (float64, error)
}

// StaticPrices is a fixed-table PriceSource for sandbox mode and tests.
type StaticPrices map[string]float64

// Price returns the table price, or 100 for unknown assets.
func (p StaticPrices) Price(_ context.Context, asset string) (float64, error) {
	if v, ok := p[asset]; ok {
		return v, nil
	}
	return 100, nil
}

// DefaultPrices are the sandbox indicative prices.
func DefaultPrices() StaticPrices {
	return StaticPrices{
		"BTC":  95_000,
		"ETH":  3_200,
		"SOL":  180,
		"ARB":  0.85,
		"AVAX": 32,
	}
}

var techTrends = []string{
	"Quantum computing breakthrough in 2026",
	"AI chip shortage resolved by Q3 2026",
	"Autonomous vehicles in 3+ cities by 2026",
}

// buildCryptoMarket picks the next asset round-robin and asks whether it will
// trade above a target 15% over its indicative price within 30 days. Caller
// holds r.mu.
func (r *Registry) buildCryptoMarket(ctx context.Context) (domain.Market, error) {
	asset := r.cfg.CryptoAssets[r.assetIdx%len(r.cfg.CryptoAssets)]
	r.assetIdx++

	price, err := r.prices.Price(ctx, asset)
	if err != nil {
		return domain.Market{}, fmt.Errorf("registry: price for %s: %w", asset, err)
	}
	target := price * (1 + targetPremium)

	now := r.now().UTC()
	deadline := now.AddDate(0, 0, 30)
	return domain.Market{
		ID:       uuid.New().String(),
		Type:     domain.MarketTypeCryptoPrice,
		Question: fmt.Sprintf("Will %s be above $%.0f by %s?", asset, target, deadline.Format("January 2, 2006")),
		Crypto: &domain.CryptoDetail{
			Asset:       asset,
			TargetPrice: target,
		},
		Status:    domain.MarketStatusOpen,
		CreatedAt: now,
		Deadline:  deadline,
	}, nil
}

// buildAIMarket creates the monthly agent-performance market. Caller holds
// r.mu.
func (r *Registry) buildAIMarket() domain.Market {
	now := r.now().UTC()
	return domain.Market{
		ID:        uuid.New().String(),
		Type:      domain.MarketTypeAIPerf,
		Question:  "Will AI trading agents achieve >65% win rate this month?",
		Status:    domain.MarketStatusOpen,
		CreatedAt: now,
		Deadline:  now.AddDate(0, 0, 30),
	}
}

// buildTechMarket rotates through the tech trend question pool with a 90-day
// horizon. Caller holds r.mu.
func (r *Registry) buildTechMarket() domain.Market {
	trend := techTrends[r.assetIdx%len(techTrends)]
	now := r.now().UTC()
	return domain.Market{
		ID:        uuid.New().String(),
		Type:      domain.MarketTypeTechTrend,
		Question:  fmt.Sprintf("Will we see: %s?", trend),
		Status:    domain.MarketStatusOpen,
		CreatedAt: now,
		Deadline:  now.AddDate(0, 0, 90),
	}
}
