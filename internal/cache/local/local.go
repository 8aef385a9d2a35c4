// Package local provides in-process implementations of the cache interfaces
// for sandbox mode and tests. The redis package is the multi-instance
// implementation.
package local

import (
	"context"
	"sync"
	"time"

	"github.com/ethervenue/venue/internal/domain"
)

// ConsensusCache is an in-process domain.ConsensusCache.
type ConsensusCache struct {
	mu   sync.RWMutex
	data map[string]domain.Consensus
}

// NewConsensusCache creates an empty ConsensusCache.
func NewConsensusCache() *ConsensusCache {
	return &ConsensusCache{data: make(map[string]domain.Consensus)}
}

func (c *ConsensusCache) Set(_ context.Context, cons domain.Consensus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[cons.MarketID] = cons
	return nil
}

func (c *ConsensusCache) Get(_ context.Context, marketID string) (domain.Consensus, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cons, ok := c.data[marketID]
	if !ok {
		return domain.Consensus{}, domain.ErrNotFound
	}
	return cons, nil
}

func (c *ConsensusCache) GetAll(_ context.Context, marketIDs []string) (map[string]domain.Consensus, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]domain.Consensus)
	for _, id := range marketIDs {
		if cons, ok := c.data[id]; ok {
			out[id] = cons
		}
	}
	return out, nil
}

func (c *ConsensusCache) Invalidate(_ context.Context, marketID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, marketID)
	return nil
}

// LockManager is an in-process domain.LockManager. With a single instance
// there is nothing to contend with, but the held-lock semantics match the
// redis implementation so sandbox behaviour is faithful.
type LockManager struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]time.Time), clock: time.Now}
}

func (l *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, ok := l.held[key]; ok && l.clock().Before(expiry) {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = l.clock().Add(ttl)

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}

// SignalBus is an in-process domain.SignalBus. Publishes are dropped for slow
// subscribers rather than blocking the pipeline.
type SignalBus struct {
	mu   sync.RWMutex
	subs map[string][]chan []byte
}

// NewSignalBus creates an empty SignalBus.
func NewSignalBus() *SignalBus {
	return &SignalBus{subs: make(map[string][]chan []byte)}
}

func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 64)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		chans := b.subs[channel]
		for i, c := range chans {
			if c == ch {
				b.subs[channel] = append(chans[:i], chans[i+1:]...)
				close(ch)
				break
			}
		}
	}()
	return ch, nil
}

// Compile-time interface checks.
var (
	_ domain.ConsensusCache = (*ConsensusCache)(nil)
	_ domain.LockManager    = (*LockManager)(nil)
	_ domain.SignalBus      = (*SignalBus)(nil)
)
