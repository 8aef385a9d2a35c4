package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ethervenue/venue/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, signal_id, market_id, asset, direction, size,
	status, reason, stop_loss, take_profit, fill_price, realized_pnl,
	opened_at, closed_at`

func scanTrade(row pgx.Row) (domain.Trade, error) {
	var t domain.Trade
	err := row.Scan(
		&t.ID, &t.SignalID, &t.MarketID, &t.Asset, &t.Direction, &t.Size,
		&t.Status, &t.Reason, &t.StopLoss, &t.TakeProfit, &t.FillPrice,
		&t.RealizedPnL, &t.OpenedAt, &t.ClosedAt,
	)
	return t, err
}

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *TradeStore) Create(ctx context.Context, t domain.Trade) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trades (id, signal_id, market_id, asset, direction, size,
			status, reason, stop_loss, take_profit, fill_price, realized_pnl,
			opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		t.ID, t.SignalID, t.MarketID, t.Asset, t.Direction, t.Size,
		t.Status, t.Reason, t.StopLoss, t.TakeProfit, t.FillPrice,
		t.RealizedPnL, t.OpenedAt, t.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create trade: %w", mapErr(err))
	}
	return nil
}

func (s *TradeStore) Update(ctx context.Context, t domain.Trade) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE trades SET status = $2, reason = $3, fill_price = $4,
			realized_pnl = $5, closed_at = $6
		WHERE id = $1`,
		t.ID, t.Status, t.Reason, t.FillPrice, t.RealizedPnL, t.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update trade: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *TradeStore) GetByID(ctx context.Context, id string) (domain.Trade, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE id = $1`, id)
	t, err := scanTrade(row)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("postgres: get trade %s: %w", id, mapErr(err))
	}
	return t, nil
}

func (s *TradeStore) ListOpen(ctx context.Context) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades
		 WHERE status IN ($1, $2) ORDER BY opened_at ASC`,
		domain.TradeStatusApproved, domain.TradeStatusExecuted)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open trades: %w", err)
	}
	return trades, nil
}

func (s *TradeStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades ORDER BY opened_at DESC`
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
		return nil, fmt.Errorf("postgres: list recent trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent trades: %w", err)
	}
	return trades, nil
}

func (s *TradeStore) SumRealizedPnL(ctx context.Context, since time.Time) (float64, error) {
	var sum float64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(realized_pnl), 0) FROM trades
		WHERE status = $1 AND closed_at >= $2`,
		domain.TradeStatusSettled, since).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum realized pnl: %w", err)
	}
	return sum, nil
}

func (s *TradeStore) CountSettledWinners(ctx context.Context) (int, int, error) {
	var wins, total int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE realized_pnl > 0), COUNT(*)
		FROM trades WHERE status = $1`,
		domain.TradeStatusSettled).Scan(&wins, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("postgres: count settled winners: %w", err)
	}
	return wins, total, nil
}

func (s *TradeStore) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades
		 WHERE status = $1 AND closed_at < $2 ORDER BY closed_at ASC`,
		domain.TradeStatusSettled, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan settled trades: %w", err)
	}
	return trades, nil
}

var _ domain.TradeStore = (*TradeStore)(nil)
