package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// LedgerStore implements domain.LedgerStore using PostgreSQL. The
// one-open-trade-per-pair invariant is enforced by a partial unique index
// on trades(symbol) WHERE status = 'OPEN', so concurrent opens resolve in
// the database, not in application locks.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

const tradeSelectCols = `id, symbol, side, quantity, entry_price, amount, fees,
	stop_loss_price, take_profit_price, status, strategy_name, entry_time,
	exit_price, exit_time, profit_loss`

func scanTradeRow(row pgx.Row) (domain.Trade, error) {
	var t domain.Trade
	var status string
	err := row.Scan(
		&t.ID, &t.Symbol, &t.Side, &t.Quantity, &t.EntryPrice, &t.Amount, &t.Fees,
		&t.StopLossPrice, &t.TakeProfitPrice, &status, &t.Strategy, &t.EntryTime,
		&t.ExitPrice, &t.ExitTime, &t.ProfitLoss,
	)
	if err != nil {
		return domain.Trade{}, err
	}
	t.Status = domain.TradeStatus(status)
	return t, nil
}

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		t, err := scanTradeRow(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// OpenTrade persists a new OPEN trade. A concurrent OPEN trade for the same
// symbol trips the partial unique index and maps to domain.ErrConflict.
func (s *LedgerStore) OpenTrade(ctx context.Context, trade domain.Trade) error {
	const query = `
		INSERT INTO trades (
			id, symbol, side, quantity, entry_price, amount, fees,
			stop_loss_price, take_profit_price, status, strategy_name,
			entry_time, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		trade.ID, trade.Symbol, trade.Side, trade.Quantity, trade.EntryPrice,
		trade.Amount, trade.Fees, trade.StopLossPrice, trade.TakeProfitPrice,
		string(domain.TradeStatusOpen), trade.Strategy, trade.EntryTime,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrConflict
		}
		return fmt.Errorf("postgres: open trade %s: %w", trade.Symbol, err)
	}
	return nil
}

// CloseTrade transitions an OPEN trade to CLOSED or STOPPED in a single
// conditional update, adding the exit fee to the accumulated fees. A trade
// that exists but is not OPEN yields ErrInvalidState; a missing id yields
// ErrNotFound.
func (s *LedgerStore) CloseTrade(ctx context.Context, id string, exitPrice, profitLoss, exitFee float64, exitTime time.Time, status domain.TradeStatus) error {
	if status != domain.TradeStatusClosed && status != domain.TradeStatusStopped {
		return fmt.Errorf("postgres: close trade %s: status %q: %w", id, status, domain.ErrInvalidState)
	}

	const query = `
		UPDATE trades SET
			status      = $2,
			exit_price  = $3,
			exit_time   = $4,
			profit_loss = $5,
			fees        = fees + $6,
			updated_at  = NOW()
		WHERE id = $1 AND status = 'OPEN'`

	tag, err := s.pool.Exec(ctx, query, id, string(status), exitPrice, exitTime, profitLoss, exitFee)
	if err != nil {
		return fmt.Errorf("postgres: close trade %s: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Distinguish a missing trade from one that already exited.
	var existing string
	err = s.pool.QueryRow(ctx, `SELECT status FROM trades WHERE id = $1`, id).Scan(&existing)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: close trade %s: %w", id, err)
	}
	return domain.ErrInvalidState
}

// GetTrade retrieves a single trade by id.
func (s *LedgerStore) GetTrade(ctx context.Context, id string) (domain.Trade, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE id = $1`, id)
	t, err := scanTradeRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trade{}, domain.ErrNotFound
		}
		return domain.Trade{}, fmt.Errorf("postgres: get trade %s: %w", id, err)
	}
	return t, nil
}

// ListTrades returns trades matching the filter, newest first.
func (s *LedgerStore) ListTrades(ctx context.Context, filter domain.TradeFilter) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE 1=1`
	var args []any
	argIdx := 1

	if filter.Symbol != "" {
		query += fmt.Sprintf(" AND symbol = $%d", argIdx)
		args = append(args, filter.Symbol)
		argIdx++
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		query += fmt.Sprintf(" AND status = ANY($%d)", argIdx)
		args = append(args, statuses)
		argIdx++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(" AND entry_time >= $%d", argIdx)
		args = append(args, *filter.Since)
		argIdx++
	}
	if filter.Until != nil {
		query += fmt.Sprintf(" AND entry_time <= $%d", argIdx)
		args = append(args, *filter.Until)
		argIdx++
	}

	query += " ORDER BY entry_time DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

// ListOpenTrades returns every OPEN trade, newest first.
func (s *LedgerStore) ListOpenTrades(ctx context.Context) ([]domain.Trade, error) {
	return s.ListTrades(ctx, domain.TradeFilter{
		Statuses: []domain.TradeStatus{domain.TradeStatusOpen},
	})
}

// PortfolioSnapshot recomputes portfolio aggregates from the ledger in a
// single query. Nothing is cached; the snapshot cannot drift from the
// trades.
func (s *LedgerStore) PortfolioSnapshot(ctx context.Context, startingBalance float64) (domain.PortfolioSnapshot, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'OPEN'),
			COUNT(*) FILTER (WHERE status <> 'OPEN' AND profit_loss > 0),
			COUNT(*) FILTER (WHERE status <> 'OPEN' AND profit_loss <= 0),
			COALESCE(SUM(profit_loss) FILTER (WHERE status <> 'OPEN'), 0),
			COALESCE(SUM(amount + fees) FILTER (WHERE status = 'OPEN'), 0),
			COALESCE(SUM(quantity * entry_price) FILTER (WHERE status = 'OPEN'), 0)
		FROM trades`

	var (
		total, open, wins, losses int
		realized, locked, openVal float64
	)
	err := s.pool.QueryRow(ctx, query).Scan(&total, &open, &wins, &losses, &realized, &locked, &openVal)
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("postgres: portfolio snapshot: %w", err)
	}

	snap := domain.PortfolioSnapshot{
		StartingBalance:  startingBalance,
		TotalBalance:     startingBalance + realized,
		AvailableBalance: startingBalance + realized - locked,
		TotalProfitLoss:  realized,
		TotalTrades:      total,
		OpenTrades:       open,
		WinningTrades:    wins,
		LosingTrades:     losses,
		GeneratedAt:      time.Now().UTC(),
	}
	snap.TotalEquity = snap.AvailableBalance + openVal
	if closed := wins + losses; closed > 0 {
		snap.WinRate = float64(wins) / float64(closed) * 100
	}
	return snap, nil
}

// ResetTrades deletes the entire ledger. Operator action only.
func (s *LedgerStore) ResetTrades(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM trades`); err != nil {
		return fmt.Errorf("postgres: reset trades: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.LedgerStore = (*LedgerStore)(nil)
