package domain

import "time"

// AgentType is the specialization of a prediction agent.
type AgentType string

const (
	AgentTypeCryptoSpecialist AgentType = "crypto-specialist"
	AgentTypeMarketMaker      AgentType = "market-maker"
	AgentTypeTechTrendAnalyst AgentType = "tech-trend-analyst"
	AgentTypeArbitrageHunter  AgentType = "arbitrage-hunter"
)

// AgentStatus represents the participation state of an agent.
type AgentStatus string

const (
	AgentStatusActive    AgentStatus = "active"
	AgentStatusIdle      AgentStatus = "idle"
	AgentStatusSuspended AgentStatus = "suspended"
)

// ReputationMax is the upper bound of the reputation scale.
const ReputationMax = 10_000

// Agent is a registered prediction agent. Reputation and accuracy are owned
// by the reputation store; other components treat them as read-only.
type Agent struct {
	ID         string
	Type       AgentType
	Reputation int     // clamped to [0, ReputationMax]
	Accuracy   float64 // rolling fraction in [0,1] over the trailing window
	TradeCount int
	Status     AgentStatus
	// VerificationBonus is the externally supplied karma/on-chain blend
	// multiplier input in [0,1]. The venue does not compute it.
	VerificationBonus float64
	UpdatedAt         time.Time
}

// ReputationEvent is an append-only audit record of one reputation update
// applied when a market settled.
type ReputationEvent struct {
	ID        int64
	AgentID   string
	MarketID  string
	Predicted float64 // direction probability the agent submitted
	Outcome   float64 // realized outcome, 0 or 1
	Delta     int     // reputation points applied, in [-baseDelta, +baseDelta]
	CreatedAt time.Time
}
