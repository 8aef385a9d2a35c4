package domain

import "time"

// Direction is the side of a trading signal.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Signal is a generated, not-yet-executed trading recommendation derived from
// an executable consensus. A market whose consensus stays below the execution
// threshold has no Signal at all; it is in the monitoring state.
type Signal struct {
	ID         string // UUID
	MarketID   string
	Asset      string
	Direction  Direction
	Strength   float64 // confidence x |2p-1|, in [0,1]
	Confidence float64
	Size       float64 // recommended position size fraction, <= max position size
	Reason     string
	CreatedAt  time.Time
}
