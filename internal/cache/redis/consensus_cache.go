package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ethervenue/venue/internal/domain"
)

// consensusTTL keeps stale consensus snapshots from outliving two signal
// cycles when a market goes quiet.
const consensusTTL = time.Hour

// ConsensusCache implements domain.ConsensusCache with JSON values keyed per
// market. It is a disposable read model for the dashboard; losing it costs
// nothing because every cycle rewrites it.
type ConsensusCache struct {
	rdb *redis.Client
}

// NewConsensusCache creates a ConsensusCache backed by the given Client.
func NewConsensusCache(c *Client) *ConsensusCache {
	return &ConsensusCache{rdb: c.Underlying()}
}

func consensusKey(marketID string) string {
	return "consensus:" + marketID
}

func (cc *ConsensusCache) Set(ctx context.Context, cons domain.Consensus) error {
	data, err := json.Marshal(cons)
	if err != nil {
		return fmt.Errorf("redis: marshal consensus %s: %w", cons.MarketID, err)
	}
	if err := cc.rdb.Set(ctx, consensusKey(cons.MarketID), data, consensusTTL).Err(); err != nil {
		return fmt.Errorf("redis: set consensus %s: %w", cons.MarketID, err)
	}
	return nil
}

func (cc *ConsensusCache) Get(ctx context.Context, marketID string) (domain.Consensus, error) {
	data, err := cc.rdb.Get(ctx, consensusKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Consensus{}, domain.ErrNotFound
		}
		return domain.Consensus{}, fmt.Errorf("redis: get consensus %s: %w", marketID, err)
	}

	var cons domain.Consensus
	if err := json.Unmarshal(data, &cons); err != nil {
		return domain.Consensus{}, fmt.Errorf("redis: unmarshal consensus %s: %w", marketID, err)
	}
	return cons, nil
}

// GetAll fetches the consensus for every listed market in one MGET. Markets
// with no cached consensus are simply absent from the result.
func (cc *ConsensusCache) GetAll(ctx context.Context, marketIDs []string) (map[string]domain.Consensus, error) {
	if len(marketIDs) == 0 {
		return map[string]domain.Consensus{}, nil
	}

	keys := make([]string, len(marketIDs))
	for i, id := range marketIDs {
		keys[i] = consensusKey(id)
	}

	vals, err := cc.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: mget consensus: %w", err)
	}

	out := make(map[string]domain.Consensus, len(marketIDs))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var cons domain.Consensus
		if err := json.Unmarshal([]byte(s), &cons); err != nil {
			continue
		}
		out[marketIDs[i]] = cons
	}
	return out, nil
}

func (cc *ConsensusCache) Invalidate(ctx context.Context, marketID string) error {
	if err := cc.rdb.Del(ctx, consensusKey(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate consensus %s: %w", marketID, err)
	}
	return nil
}

var _ domain.ConsensusCache = (*ConsensusCache)(nil)
