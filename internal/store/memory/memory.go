// Package memory implements the domain store interfaces with in-process
// maps. It backs sandbox mode and package tests; the postgres package is the
// durable implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ethervenue/venue/internal/domain"
)

// MarketStore is an in-memory domain.MarketStore.
type MarketStore struct {
	mu      sync.RWMutex
	markets map[string]domain.Market
}

// NewMarketStore creates an empty MarketStore.
func NewMarketStore() *MarketStore {
	return &MarketStore{markets: make(map[string]domain.Market)}
}

func (s *MarketStore) Create(_ context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markets[m.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.markets[m.ID] = m
	return nil
}

func (s *MarketStore) Update(_ context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markets[m.ID]; !ok {
		return domain.ErrNotFound
	}
	s.markets[m.ID] = m
	return nil
}

func (s *MarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *MarketStore) ListByStatus(_ context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Market
	for _, m := range s.markets {
		if m.Status == status {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, opts), nil
}

func (s *MarketStore) CountByStatus(_ context.Context, status domain.MarketStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.markets {
		if m.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *MarketStore) ListSettledBefore(_ context.Context, before time.Time) ([]domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Market
	for _, m := range s.markets {
		if m.Status == domain.MarketStatusSettled && m.SettledAt != nil && m.SettledAt.Before(before) {
			out = append(out, m)
		}
	}
	return out, nil
}

// AgentStore is an in-memory domain.AgentStore.
type AgentStore struct {
	mu     sync.RWMutex
	agents map[string]domain.Agent
}

// NewAgentStore creates an empty AgentStore.
func NewAgentStore() *AgentStore {
	return &AgentStore{agents: make(map[string]domain.Agent)}
}

func (s *AgentStore) Upsert(_ context.Context, a domain.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.ID] = a
	return nil
}

func (s *AgentStore) GetByID(_ context.Context, id string) (domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return domain.Agent{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *AgentStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, opts), nil
}

func (s *AgentStore) ListByStatus(_ context.Context, status domain.AgentStatus) ([]domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Agent
	for _, a := range s.agents {
		if a.Status == status {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PredictionStore is an in-memory domain.PredictionStore. Upsert replaces any
// earlier submission from the same agent for the same market.
type PredictionStore struct {
	mu   sync.RWMutex
	byMk map[string]map[string]domain.Prediction // marketID -> agentID -> prediction
}

// NewPredictionStore creates an empty PredictionStore.
func NewPredictionStore() *PredictionStore {
	return &PredictionStore{byMk: make(map[string]map[string]domain.Prediction)}
}

func (s *PredictionStore) Upsert(_ context.Context, p domain.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mk, ok := s.byMk[p.MarketID]
	if !ok {
		mk = make(map[string]domain.Prediction)
		s.byMk[p.MarketID] = mk
	}
	mk[p.AgentID] = p
	return nil
}

func (s *PredictionStore) ListByMarket(_ context.Context, marketID string) ([]domain.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mk := s.byMk[marketID]
	out := make([]domain.Prediction, 0, len(mk))
	for _, p := range mk {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}

func (s *PredictionStore) DeleteByMarket(_ context.Context, marketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byMk, marketID)
	return nil
}

// TradeStore is an in-memory domain.TradeStore.
type TradeStore struct {
	mu     sync.RWMutex
	trades map[string]domain.Trade
	order  []string // insertion order for ListRecent
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{trades: make(map[string]domain.Trade)}
}

func (s *TradeStore) Create(_ context.Context, t domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trades[t.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.trades[t.ID] = t
	s.order = append(s.order, t.ID)
	return nil
}

func (s *TradeStore) Update(_ context.Context, t domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trades[t.ID]; !ok {
		return domain.ErrNotFound
	}
	s.trades[t.ID] = t
	return nil
}

func (s *TradeStore) GetByID(_ context.Context, id string) (domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trades[id]
	if !ok {
		return domain.Trade{}, domain.ErrNotFound
	}
	return t, nil
}

func (s *TradeStore) ListOpen(_ context.Context) ([]domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Trade
	for _, t := range s.trades {
		if t.IsOpen() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out, nil
}

func (s *TradeStore) ListRecent(_ context.Context, opts domain.ListOpts) ([]domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Trade, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.trades[s.order[i]])
	}
	return paginate(out, opts), nil
}

func (s *TradeStore) SumRealizedPnL(_ context.Context, since time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum float64
	for _, t := range s.trades {
		if t.Status == domain.TradeStatusSettled && t.ClosedAt != nil && !t.ClosedAt.Before(since) {
			sum += t.RealizedPnL
		}
	}
	return sum, nil
}

func (s *TradeStore) CountSettledWinners(_ context.Context) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wins, total := 0, 0
	for _, t := range s.trades {
		if t.Status != domain.TradeStatusSettled {
			continue
		}
		total++
		if t.RealizedPnL > 0 {
			wins++
		}
	}
	return wins, total, nil
}

func (s *TradeStore) ListSettledBefore(_ context.Context, before time.Time) ([]domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Trade
	for _, t := range s.trades {
		if t.Status == domain.TradeStatusSettled && t.ClosedAt != nil && t.ClosedAt.Before(before) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ReputationEventStore is an in-memory domain.ReputationEventStore.
type ReputationEventStore struct {
	mu     sync.RWMutex
	events []domain.ReputationEvent
	nextID int64
}

// NewReputationEventStore creates an empty ReputationEventStore.
func NewReputationEventStore() *ReputationEventStore {
	return &ReputationEventStore{nextID: 1}
}

func (s *ReputationEventStore) Append(_ context.Context, ev domain.ReputationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.ID = s.nextID
	s.nextID++
	s.events = append(s.events, ev)
	return nil
}

func (s *ReputationEventStore) ListByAgent(_ context.Context, agentID string, opts domain.ListOpts) ([]domain.ReputationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ReputationEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].AgentID == agentID {
			out = append(out, s.events[i])
		}
	}
	return paginate(out, opts), nil
}

func (s *ReputationEventStore) ListBefore(_ context.Context, before time.Time) ([]domain.ReputationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ReputationEvent
	for _, ev := range s.events {
		if ev.CreatedAt.Before(before) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func paginate[T any](in []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(in) {
			return []T{}
		}
		in = in[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(in) {
		in = in[:opts.Limit]
	}
	return in
}

// Compile-time interface checks.
var (
	_ domain.MarketStore          = (*MarketStore)(nil)
	_ domain.AgentStore           = (*AgentStore)(nil)
	_ domain.PredictionStore      = (*PredictionStore)(nil)
	_ domain.TradeStore           = (*TradeStore)(nil)
	_ domain.ReputationEventStore = (*ReputationEventStore)(nil)
)
