package bridge

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// SandboxBridge is an in-process Bridge that fills every order instantly at a
// synthetic price. Settlements are injected by the sandbox market simulator.
type SandboxBridge struct {
	mu      sync.Mutex
	fills   []Fill
	pending []Settlement
}

// NewSandboxBridge creates an empty SandboxBridge.
func NewSandboxBridge() *SandboxBridge {
	return &SandboxBridge{}
}

// Submit fills the order immediately. The fill price is a deterministic
// function of the asset so sandbox runs are reproducible.
func (b *SandboxBridge) Submit(_ context.Context, order Order) (Fill, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fill := Fill{
		TradeID:   order.TradeID,
		FillPrice: syntheticPrice(order.Asset),
		FilledAt:  time.Now().UTC(),
	}
	b.fills = append(b.fills, fill)
	return fill, nil
}

// Settlements drains the injected settlement queue.
func (b *SandboxBridge) Settlements(_ context.Context) ([]Settlement, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.pending
	b.pending = nil
	return out, nil
}

// InjectSettlement queues a settlement for the next poll.
func (b *SandboxBridge) InjectSettlement(s Settlement) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, s)
}

// Fills returns every fill the sandbox has produced.
func (b *SandboxBridge) Fills() []Fill {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Fill, len(b.fills))
	copy(out, b.fills)
	return out
}

func syntheticPrice(asset string) float64 {
	h := fnv.New32a()
	h.Write([]byte(asset))
	return 100 + float64(h.Sum32()%90_000)
}

var _ Bridge = (*SandboxBridge)(nil)
