package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
)

// PairStore implements domain.PairStore using PostgreSQL.
type PairStore struct {
	pool *pgxpool.Pool
}

// NewPairStore creates a PairStore backed by the given connection pool.
func NewPairStore(pool *pgxpool.Pool) *PairStore {
	return &PairStore{pool: pool}
}

const pairSelectCols = `symbol, altname, ws_name, base, quote, status, updated_at`

// UpsertBatch inserts or refreshes a batch of pairs in one transaction.
// Identity (symbol) is immutable; only the mutable metadata is replaced.
func (s *PairStore) UpsertBatch(ctx context.Context, pairs []domain.Pair) error {
	if len(pairs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin pair upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	const query = `
		INSERT INTO pairs (symbol, altname, ws_name, base, quote, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol) DO UPDATE SET
			altname    = EXCLUDED.altname,
			ws_name    = EXCLUDED.ws_name,
			base       = EXCLUDED.base,
			quote      = EXCLUDED.quote,
			status     = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`

	for _, p := range pairs {
		if _, err := tx.Exec(ctx, query,
			p.Symbol, p.Altname, p.WSName, p.Base, p.Quote, string(p.Status), p.UpdatedAt,
		); err != nil {
			return fmt.Errorf("postgres: upsert pair %s: %w", p.Symbol, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit pair upsert: %w", err)
	}
	return nil
}

// List returns all known pairs ordered by symbol.
func (s *PairStore) List(ctx context.Context) ([]domain.Pair, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pairSelectCols+` FROM pairs ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pairs: %w", err)
	}
	defer rows.Close()

	var pairs []domain.Pair
	for rows.Next() {
		var p domain.Pair
		var status string
		if err := rows.Scan(&p.Symbol, &p.Altname, &p.WSName, &p.Base, &p.Quote, &status, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan pair: %w", err)
		}
		p.Status = domain.PairStatus(status)
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// Get retrieves a single pair by symbol.
func (s *PairStore) Get(ctx context.Context, symbol string) (domain.Pair, error) {
	var p domain.Pair
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT `+pairSelectCols+` FROM pairs WHERE symbol = $1`, symbol,
	).Scan(&p.Symbol, &p.Altname, &p.WSName, &p.Base, &p.Quote, &status, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Pair{}, domain.ErrNotFound
		}
		return domain.Pair{}, fmt.Errorf("postgres: get pair %s: %w", symbol, err)
	}
	p.Status = domain.PairStatus(status)
	return p, nil
}

// Compile-time interface check.
var _ domain.PairStore = (*PairStore)(nil)
