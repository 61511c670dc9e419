package domain

import (
	"context"
	"time"
)

// TradeFilter narrows ListTrades queries.
type TradeFilter struct {
	Symbol   string
	Statuses []TradeStatus
	Limit    int
	Offset   int
	Since    *time.Time
	Until    *time.Time
}

// PairStore persists the tradeable-pair universe.
type PairStore interface {
	UpsertBatch(ctx context.Context, pairs []Pair) error
	List(ctx context.Context) ([]Pair, error)
	Get(ctx context.Context, symbol string) (Pair, error)
}

// TickStore is append-only time-series persistence of ticks per pair.
// Append is idempotent for duplicate (symbol, timestamp) deliveries.
type TickStore interface {
	Append(ctx context.Context, tick Tick) error
	// Recent returns up to window most recent ticks for the symbol,
	// ordered oldest to newest. An empty slice is not an error.
	Recent(ctx context.Context, symbol string, window int) ([]Tick, error)
}

// LedgerStore is the durable trade ledger. All mutations are atomic with
// respect to the one-open-trade-per-pair invariant.
type LedgerStore interface {
	// OpenTrade persists a new OPEN trade. It fails with ErrConflict if
	// an OPEN trade already exists for the symbol.
	OpenTrade(ctx context.Context, trade Trade) error
	// CloseTrade transitions an OPEN trade to CLOSED or STOPPED, setting
	// exit price/time and realized P&L. It fails with ErrNotFound if no
	// trade with the id exists and ErrInvalidState if it is not OPEN.
	CloseTrade(ctx context.Context, id string, exitPrice, profitLoss, exitFee float64, exitTime time.Time, status TradeStatus) error
	GetTrade(ctx context.Context, id string) (Trade, error)
	ListTrades(ctx context.Context, filter TradeFilter) ([]Trade, error)
	ListOpenTrades(ctx context.Context) ([]Trade, error)
	// PortfolioSnapshot recomputes portfolio aggregates from the ledger.
	PortfolioSnapshot(ctx context.Context, startingBalance float64) (PortfolioSnapshot, error)
	// ResetTrades deletes the whole ledger (operator action).
	ResetTrades(ctx context.Context) error
}

// PriceCache holds the latest observed price per symbol for fast staleness
// checks and close-all pricing.
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, symbol string) (float64, time.Time, error)
}

// SignalBus is a lightweight pub/sub used to push pipeline events to the
// websocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (<-chan BusMessage, func(), error)
}

// BusMessage is one message received from a SignalBus subscription.
type BusMessage struct {
	Channel string
	Payload []byte
}

// LedgerArchiver exports a ledger snapshot to external storage.
type LedgerArchiver interface {
	Archive(ctx context.Context, trades []Trade, snapshot PortfolioSnapshot) (string, error)
}

// RateLimiter applies a sliding allowance of limit events per window for a
// key. Used by the API middleware to throttle per-client request rates.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
