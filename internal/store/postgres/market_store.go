package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ethervenue/venue/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a MarketStore backed by the given pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketSelectCols = `id, type, question, asset, target_price, volume,
	status, outcome, created_at, deadline, settled_at`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m           domain.Market
		asset       *string
		targetPrice *float64
	)
	err := row.Scan(
		&m.ID, &m.Type, &m.Question, &asset, &targetPrice, &m.Volume,
		&m.Status, &m.Outcome, &m.CreatedAt, &m.Deadline, &m.SettledAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	if asset != nil && targetPrice != nil {
		m.Crypto = &domain.CryptoDetail{Asset: *asset, TargetPrice: *targetPrice}
	}
	return m, nil
}

func scanMarketRows(rows pgx.Rows) ([]domain.Market, error) {
	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

func marketCryptoFields(m domain.Market) (asset *string, targetPrice *float64) {
	if m.Crypto != nil {
		asset = &m.Crypto.Asset
		targetPrice = &m.Crypto.TargetPrice
	}
	return asset, targetPrice
}

func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	asset, targetPrice := marketCryptoFields(m)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO markets (id, type, question, asset, target_price, volume,
			status, outcome, created_at, deadline, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.Type, m.Question, asset, targetPrice, m.Volume,
		m.Status, m.Outcome, m.CreatedAt, m.Deadline, m.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create market: %w", mapErr(err))
	}
	return nil
}

func (s *MarketStore) Update(ctx context.Context, m domain.Market) error {
	asset, targetPrice := marketCryptoFields(m)
	tag, err := s.pool.Exec(ctx, `
		UPDATE markets SET type = $2, question = $3, asset = $4,
			target_price = $5, volume = $6, status = $7, outcome = $8,
			deadline = $9, settled_at = $10
		WHERE id = $1`,
		m.ID, m.Type, m.Question, asset, targetPrice, m.Volume,
		m.Status, m.Outcome, m.Deadline, m.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update market: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketSelectCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, mapErr(err))
	}
	return m, nil
}

func (s *MarketStore) ListByStatus(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketSelectCols + ` FROM markets WHERE status = $1 ORDER BY created_at DESC`
	args := []any{status}
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
		return nil, fmt.Errorf("postgres: list markets by status: %w", err)
	}
	defer rows.Close()

	markets, err := scanMarketRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan markets: %w", err)
	}
	return markets, nil
}

func (s *MarketStore) CountByStatus(ctx context.Context, status domain.MarketStatus) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM markets WHERE status = $1`, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return n, nil
}

func (s *MarketStore) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketSelectCols+` FROM markets
		 WHERE status = $1 AND settled_at < $2 ORDER BY settled_at ASC`,
		domain.MarketStatusSettled, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled markets: %w", err)
	}
	defer rows.Close()

	markets, err := scanMarketRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan settled markets: %w", err)
	}
	return markets, nil
}

var _ domain.MarketStore = (*MarketStore)(nil)
