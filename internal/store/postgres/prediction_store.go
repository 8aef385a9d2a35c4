package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ethervenue/venue/internal/domain"
)

// PredictionStore implements domain.PredictionStore using PostgreSQL. The
// (market_id, agent_id) primary key gives replace-on-resubmit semantics.
type PredictionStore struct {
	pool *pgxpool.Pool
}

// NewPredictionStore creates a PredictionStore backed by the given pool.
func NewPredictionStore(pool *pgxpool.Pool) *PredictionStore {
	return &PredictionStore{pool: pool}
}

func (s *PredictionStore) Upsert(ctx context.Context, p domain.Prediction) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO predictions (market_id, agent_id, probability, stake, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (market_id, agent_id) DO UPDATE SET
			probability = EXCLUDED.probability,
			stake = EXCLUDED.stake,
			submitted_at = EXCLUDED.submitted_at`,
		p.MarketID, p.AgentID, p.Probability, p.Stake, p.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert prediction: %w", mapErr(err))
	}
	return nil
}

func (s *PredictionStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Prediction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT market_id, agent_id, probability, stake, submitted_at
		FROM predictions WHERE market_id = $1 ORDER BY agent_id`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list predictions: %w", err)
	}
	defer rows.Close()

	var preds []domain.Prediction
	for rows.Next() {
		var p domain.Prediction
		if err := rows.Scan(&p.MarketID, &p.AgentID, &p.Probability, &p.Stake, &p.SubmittedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan prediction: %w", err)
		}
		preds = append(preds, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan predictions: %w", err)
	}
	return preds, nil
}

func (s *PredictionStore) DeleteByMarket(ctx context.Context, marketID string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM predictions WHERE market_id = $1`, marketID); err != nil {
		return fmt.Errorf("postgres: delete predictions: %w", err)
	}
	return nil
}

var _ domain.PredictionStore = (*PredictionStore)(nil)
