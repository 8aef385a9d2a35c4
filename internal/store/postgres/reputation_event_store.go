package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ethervenue/venue/internal/domain"
)

// ReputationEventStore implements domain.ReputationEventStore using
// PostgreSQL. Events are append-only; there is no update or delete path.
type ReputationEventStore struct {
	pool *pgxpool.Pool
}

// NewReputationEventStore creates a ReputationEventStore backed by the given
// pool.
func NewReputationEventStore(pool *pgxpool.Pool) *ReputationEventStore {
	return &ReputationEventStore{pool: pool}
}

func (s *ReputationEventStore) Append(ctx context.Context, ev domain.ReputationEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reputation_events (agent_id, market_id, predicted, outcome, delta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.AgentID, ev.MarketID, ev.Predicted, ev.Outcome, ev.Delta, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append reputation event: %w", mapErr(err))
	}
	return nil
}

func (s *ReputationEventStore) ListByAgent(ctx context.Context, agentID string, opts domain.ListOpts) ([]domain.ReputationEvent, error) {
	query := `
		SELECT id, agent_id, market_id, predicted, outcome, delta, created_at
		FROM reputation_events WHERE agent_id = $1 ORDER BY id DESC`
	args := []any{agentID}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list reputation events: %w", err)
	}
	defer rows.Close()

	var events []domain.ReputationEvent
	for rows.Next() {
		var ev domain.ReputationEvent
		if err := rows.Scan(&ev.ID, &ev.AgentID, &ev.MarketID, &ev.Predicted, &ev.Outcome, &ev.Delta, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan reputation event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan reputation events: %w", err)
	}
	return events, nil
}

func (s *ReputationEventStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ReputationEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, agent_id, market_id, predicted, outcome, delta, created_at
		FROM reputation_events WHERE created_at < $1 ORDER BY id ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list reputation events before: %w", err)
	}
	defer rows.Close()

	var events []domain.ReputationEvent
	for rows.Next() {
		var ev domain.ReputationEvent
		if err := rows.Scan(&ev.ID, &ev.AgentID, &ev.MarketID, &ev.Predicted, &ev.Outcome, &ev.Delta, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan reputation event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan reputation events: %w", err)
	}
	return events, nil
}

var _ domain.ReputationEventStore = (*ReputationEventStore)(nil)
