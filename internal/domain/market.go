package domain

import "time"

// MarketType is the closed set of prediction market templates the venue
// creates. Type-specific fields live in the corresponding detail payload on
// Market rather than being resolved dynamically.
type MarketType string

const (
	MarketTypeCryptoPrice MarketType = "crypto-price"
	MarketTypeAIPerf      MarketType = "ai-performance"
	MarketTypeTechTrend   MarketType = "tech-trend"
)

// MarketStatus represents the lifecycle state of a market.
//
// Valid transitions are open → executable → settled and open → expired.
type MarketStatus string

const (
	MarketStatusOpen       MarketStatus = "open"
	MarketStatusExecutable MarketStatus = "executable"
	MarketStatusSettled    MarketStatus = "settled"
	MarketStatusExpired    MarketStatus = "expired"
)

// CryptoDetail carries the crypto-price variant payload: the underlying asset
// and the price level the market question resolves against.
type CryptoDetail struct {
	Asset       string
	TargetPrice float64
}

// Market is a single prediction market managed by the registry.
type Market struct {
	ID        string
	Type      MarketType
	Question  string
	Crypto    *CryptoDetail // nil unless Type == MarketTypeCryptoPrice
	Volume    float64       // sum of agent stakes, monotone while open
	Status    MarketStatus
	Outcome   *float64 // 0 or 1 once settled
	CreatedAt time.Time
	Deadline  time.Time
	SettledAt *time.Time
}

// Asset returns the underlying asset symbol, or "" for non-crypto markets.
func (m Market) Asset() string {
	if m.Crypto != nil {
		return m.Crypto.Asset
	}
	return ""
}

// IsOpen reports whether the market still accepts predictions and signal
// evaluation. Executable markets are open markets with a live signal.
func (m Market) IsOpen() bool {
	return m.Status == MarketStatusOpen || m.Status == MarketStatusExecutable
}

// CanTransition reports whether moving from the market's current status to
// next is a legal lifecycle transition.
func (m Market) CanTransition(next MarketStatus) bool {
	switch m.Status {
	case MarketStatusOpen:
		return next == MarketStatusExecutable || next == MarketStatusExpired
	case MarketStatusExecutable:
		return next == MarketStatusSettled
	default:
		return false
	}
}
