package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
)

// TickStore implements domain.TickStore using PostgreSQL. Writes are
// append-only; there is no update or delete path.
type TickStore struct {
	pool *pgxpool.Pool
}

// NewTickStore creates a TickStore backed by the given connection pool.
func NewTickStore(pool *pgxpool.Pool) *TickStore {
	return &TickStore{pool: pool}
}

// Append stores one tick. Duplicate (symbol, timestamp) deliveries are
// dropped idempotently so redelivered ticks cannot skew rolling windows.
func (s *TickStore) Append(ctx context.Context, tick domain.Tick) error {
	const query = `
		INSERT INTO ticks (symbol, price, bid, ask, volume, ts, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, ts) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		tick.Symbol, tick.Price, tick.Bid, tick.Ask, tick.Volume, tick.Timestamp, tick.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append tick %s: %w", tick.Symbol, err)
	}
	return nil
}

// Recent returns up to window most recent ticks for the symbol, ordered
// oldest to newest. No ticks is an empty slice, not an error.
func (s *TickStore) Recent(ctx context.Context, symbol string, window int) ([]domain.Tick, error) {
	if window <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT symbol, price, bid, ask, volume, ts, received_at
		FROM ticks
		WHERE symbol = $1
		ORDER BY ts DESC
		LIMIT $2`, symbol, window)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent ticks %s: %w", symbol, err)
	}
	defer rows.Close()

	var ticks []domain.Tick
	for rows.Next() {
		var t domain.Tick
		if err := rows.Scan(&t.Symbol, &t.Price, &t.Bid, &t.Ask, &t.Volume, &t.Timestamp, &t.ReceivedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan tick: %w", err)
		}
		ticks = append(ticks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: recent ticks %s: %w", symbol, err)
	}

	// The query returns newest first; callers want oldest first.
	for i, j := 0, len(ticks)-1; i < j; i, j = i+1, j-1 {
		ticks[i], ticks[j] = ticks[j], ticks[i]
	}
	return ticks, nil
}

// Compile-time interface check.
var _ domain.TickStore = (*TickStore)(nil)
