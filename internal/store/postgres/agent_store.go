package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ethervenue/venue/internal/domain"
)

// AgentStore implements domain.AgentStore using PostgreSQL.
type AgentStore struct {
	pool *pgxpool.Pool
}

// NewAgentStore creates an AgentStore backed by the given pool.
func NewAgentStore(pool *pgxpool.Pool) *AgentStore {
	return &AgentStore{pool: pool}
}

const agentSelectCols = `id, type, reputation, accuracy, trade_count, status,
	verification_bonus, updated_at`

func scanAgentRows(rows pgx.Rows) ([]domain.Agent, error) {
	var agents []domain.Agent
	for rows.Next() {
		var a domain.Agent
		if err := rows.Scan(
			&a.ID, &a.Type, &a.Reputation, &a.Accuracy, &a.TradeCount,
			&a.Status, &a.VerificationBonus, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (s *AgentStore) Upsert(ctx context.Context, a domain.Agent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agents (id, type, reputation, accuracy, trade_count,
			status, verification_bonus, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			reputation = EXCLUDED.reputation,
			accuracy = EXCLUDED.accuracy,
			trade_count = EXCLUDED.trade_count,
			status = EXCLUDED.status,
			verification_bonus = EXCLUDED.verification_bonus,
			updated_at = EXCLUDED.updated_at`,
		a.ID, a.Type, a.Reputation, a.Accuracy, a.TradeCount,
		a.Status, a.VerificationBonus, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert agent: %w", mapErr(err))
	}
	return nil
}

func (s *AgentStore) GetByID(ctx context.Context, id string) (domain.Agent, error) {
	var a domain.Agent
	err := s.pool.QueryRow(ctx,
		`SELECT `+agentSelectCols+` FROM agents WHERE id = $1`, id,
	).Scan(
		&a.ID, &a.Type, &a.Reputation, &a.Accuracy, &a.TradeCount,
		&a.Status, &a.VerificationBonus, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Agent{}, fmt.Errorf("postgres: get agent %s: %w", id, mapErr(err))
	}
	return a, nil
}

func (s *AgentStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Agent, error) {
	query := `SELECT ` + agentSelectCols + ` FROM agents ORDER BY id`
	args := []any{}
	argIdx := 1

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
		return nil, fmt.Errorf("postgres: list agents: %w", err)
	}
	defer rows.Close()

	agents, err := scanAgentRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan agents: %w", err)
	}
	return agents, nil
}

func (s *AgentStore) ListByStatus(ctx context.Context, status domain.AgentStatus) ([]domain.Agent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+agentSelectCols+` FROM agents WHERE status = $1 ORDER BY id`, status)
	if err != nil {
		return nil, fmt.Errorf("postgres: list agents by status: %w", err)
	}
	defer rows.Close()

	agents, err := scanAgentRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan agents by status: %w", err)
	}
	return agents, nil
}

var _ domain.AgentStore = (*AgentStore)(nil)
