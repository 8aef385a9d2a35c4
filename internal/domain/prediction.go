package domain

import "time"

// Prediction is one agent's forecast for one market. Unique per
// (market, agent); a later submission replaces the earlier one.
type Prediction struct {
	MarketID    string
	AgentID     string
	Probability float64 // direction probability in [0,1]
	Stake       float64 // stake weight, added to market volume on first submit
	SubmittedAt time.Time
}

// Consensus is the reputation-weighted aggregate of all current predictions
// for a market. It is derived state: recomputed every cycle from predictions
// and the agent snapshot, never treated as ground truth.
type Consensus struct {
	MarketID    string
	Probability float64 // weighted mean direction probability
	Confidence  float64 // in [0,1], quorum-scaled distance from indifference
	AgentCount  int     // contributing (non-suspended) agents
	ComputedAt  time.Time
}
