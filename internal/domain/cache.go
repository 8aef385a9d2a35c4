package domain

import (
	"context"
	"time"
)

// ConsensusCache is a disposable read model holding the latest consensus per
// market for dashboard queries. It is rebuilt every signal cycle and never
// consulted by the pipeline itself.
type ConsensusCache interface {
	Set(ctx context.Context, c Consensus) error
	Get(ctx context.Context, marketID string) (Consensus, error)
	GetAll(ctx context.Context, marketIDs []string) (map[string]Consensus, error)
	Invalidate(ctx context.Context, marketID string) error
}

// LockManager provides distributed locking so that only one venue instance
// runs a given periodic task at a time.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of venue events (signals, trades,
// breaker trips) to dashboard consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
