package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists markets. The registry is the only writer.
type MarketStore interface {
	Create(ctx context.Context, m Market) error
	Update(ctx context.Context, m Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	ListByStatus(ctx context.Context, status MarketStatus, opts ListOpts) ([]Market, error)
	CountByStatus(ctx context.Context, status MarketStatus) (int, error)
	ListSettledBefore(ctx context.Context, before time.Time) ([]Market, error)
}

// AgentStore persists agents. Reputation fields are written only through the
// reputation store's settlement path.
type AgentStore interface {
	Upsert(ctx context.Context, a Agent) error
	GetByID(ctx context.Context, id string) (Agent, error)
	List(ctx context.Context, opts ListOpts) ([]Agent, error)
	ListByStatus(ctx context.Context, status AgentStatus) ([]Agent, error)
}

// PredictionStore persists predictions with replace-on-resubmit semantics
// per (market, agent).
type PredictionStore interface {
	Upsert(ctx context.Context, p Prediction) error
	ListByMarket(ctx context.Context, marketID string) ([]Prediction, error)
	DeleteByMarket(ctx context.Context, marketID string) error
}

// TradeStore persists trades. The risk manager is the only creator.
type TradeStore interface {
	Create(ctx context.Context, t Trade) error
	Update(ctx context.Context, t Trade) error
	GetByID(ctx context.Context, id string) (Trade, error)
	ListOpen(ctx context.Context) ([]Trade, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]Trade, error)
	SumRealizedPnL(ctx context.Context, since time.Time) (float64, error)
	CountSettledWinners(ctx context.Context) (wins, total int, err error)
	ListSettledBefore(ctx context.Context, before time.Time) ([]Trade, error)
}

// ReputationEventStore persists the append-only reputation audit trail.
type ReputationEventStore interface {
	Append(ctx context.Context, ev ReputationEvent) error
	ListByAgent(ctx context.Context, agentID string, opts ListOpts) ([]ReputationEvent, error)
	ListBefore(ctx context.Context, before time.Time) ([]ReputationEvent, error)
}
