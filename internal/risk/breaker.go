package risk

import (
	"sync"
	"time"
)

// Breaker is the venue-wide circuit breaker. It trips when the daily
// realized loss reaches the configured fraction of the portfolio or when the
// consecutive-loss streak reaches its limit; while tripped, all new trade
// authorization is rejected. The trip clears on an explicit Reset or at the
// next UTC day boundary.
type Breaker struct {
	mu sync.Mutex

	maxDailyLoss  float64
	maxLossStreak int

	day        time.Time // UTC midnight of the day dailyLoss accumulates for
	dailyLoss  float64   // positive number, fraction of portfolio lost today
	lossStreak int
	tripped    bool

	now func() time.Time
}

// NewBreaker creates a Breaker with the given limits.
func NewBreaker(maxDailyLoss float64, maxLossStreak int) *Breaker {
	b := &Breaker{
		maxDailyLoss:  maxDailyLoss,
		maxLossStreak: maxLossStreak,
		now:           time.Now,
	}
	b.day = midnightUTC(b.now())
	return b
}

// RecordSettlement feeds one settled trade's realized P&L (portfolio
// fraction, negative for a loss) into the breaker state.
func (b *Breaker) RecordSettlement(pnl float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rolloverLocked()

	if pnl < 0 {
		b.dailyLoss += -pnl
		b.lossStreak++
	} else {
		b.lossStreak = 0
	}

	if b.dailyLoss >= b.maxDailyLoss || b.lossStreak >= b.maxLossStreak {
		b.tripped = true
	}
}

// Tripped reports whether the breaker currently blocks new authorization.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rolloverLocked()
	return b.tripped
}

// Reset clears the trip, the loss streak, and today's loss accumulator. It is
// the manual operator override.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tripped = false
	b.lossStreak = 0
	b.dailyLoss = 0
}

// Snapshot returns the current breaker state for dashboards.
func (b *Breaker) Snapshot() (tripped bool, dailyLoss float64, lossStreak int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rolloverLocked()
	return b.tripped, b.dailyLoss, b.lossStreak
}

// rolloverLocked clears the trip and daily accumulator when a new UTC day has
// started. The loss streak carries across days; only an explicit Reset or a
// winning trade clears it.
func (b *Breaker) rolloverLocked() {
	today := midnightUTC(b.now())
	if today.After(b.day) {
		b.day = today
		b.dailyLoss = 0
		if b.lossStreak < b.maxLossStreak {
			b.tripped = false
		}
	}
}

func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
