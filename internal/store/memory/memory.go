// Package memory provides in-memory store implementations used by sim mode
// and tests. Semantics mirror the postgres stores, including the
// one-open-trade-per-pair invariant.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
)

// TickStore is an in-memory domain.TickStore with per-symbol bounded
// history.
type TickStore struct {
	mu    sync.RWMutex
	limit int
	ticks map[string][]domain.Tick
	seen  map[string]map[time.Time]bool
}

// NewTickStore creates a TickStore keeping at most limit ticks per symbol
// (0 means 1000).
func NewTickStore(limit int) *TickStore {
	if limit <= 0 {
		limit = 1000
	}
	return &TickStore{
		limit: limit,
		ticks: make(map[string][]domain.Tick),
		seen:  make(map[string]map[time.Time]bool),
	}
}

// Append stores a tick, dropping duplicate (symbol, timestamp) deliveries.
func (s *TickStore) Append(_ context.Context, tick domain.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen[tick.Symbol] == nil {
		s.seen[tick.Symbol] = make(map[time.Time]bool)
	}
	if s.seen[tick.Symbol][tick.Timestamp] {
		return nil
	}
	s.seen[tick.Symbol][tick.Timestamp] = true

	list := append(s.ticks[tick.Symbol], tick)
	sort.Slice(list, func(i, j int) bool { return list[i].Timestamp.Before(list[j].Timestamp) })
	if len(list) > s.limit {
		drop := list[:len(list)-s.limit]
		for _, t := range drop {
			delete(s.seen[tick.Symbol], t.Timestamp)
		}
		list = list[len(list)-s.limit:]
	}
	s.ticks[tick.Symbol] = list
	return nil
}

// Recent returns up to window most recent ticks, oldest first.
func (s *TickStore) Recent(_ context.Context, symbol string, window int) ([]domain.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.ticks[symbol]
	if window <= 0 || len(list) == 0 {
		return nil, nil
	}
	if window > len(list) {
		window = len(list)
	}
	out := make([]domain.Tick, window)
	copy(out, list[len(list)-window:])
	return out, nil
}

// LedgerStore is an in-memory domain.LedgerStore.
type LedgerStore struct {
	mu     sync.RWMutex
	trades map[string]domain.Trade
	open   map[string]string // symbol -> open trade id
	order  []string          // ids in insertion order
}

// NewLedgerStore creates an empty LedgerStore.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		trades: make(map[string]domain.Trade),
		open:   make(map[string]string),
	}
}

// OpenTrade persists a new OPEN trade, enforcing one OPEN per symbol.
func (s *LedgerStore) OpenTrade(_ context.Context, trade domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.open[trade.Symbol]; exists {
		return domain.ErrConflict
	}
	trade.Status = domain.TradeStatusOpen
	s.trades[trade.ID] = trade
	s.open[trade.Symbol] = trade.ID
	s.order = append(s.order, trade.ID)
	return nil
}

// CloseTrade transitions an OPEN trade to a terminal state.
func (s *LedgerStore) CloseTrade(_ context.Context, id string, exitPrice, profitLoss, exitFee float64, exitTime time.Time, status domain.TradeStatus) error {
	if status != domain.TradeStatusClosed && status != domain.TradeStatusStopped {
		return domain.ErrInvalidState
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trade, ok := s.trades[id]
	if !ok {
		return domain.ErrNotFound
	}
	if trade.Status != domain.TradeStatusOpen {
		return domain.ErrInvalidState
	}

	trade.Status = status
	trade.ExitPrice = &exitPrice
	trade.ExitTime = &exitTime
	trade.ProfitLoss = &profitLoss
	trade.Fees += exitFee
	s.trades[id] = trade
	delete(s.open, trade.Symbol)
	return nil
}

// GetTrade retrieves a trade by id.
func (s *LedgerStore) GetTrade(_ context.Context, id string) (domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trade, ok := s.trades[id]
	if !ok {
		return domain.Trade{}, domain.ErrNotFound
	}
	return trade, nil
}

// ListTrades returns trades matching the filter, newest first.
func (s *LedgerStore) ListTrades(_ context.Context, filter domain.TradeFilter) ([]domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Trade
	for i := len(s.order) - 1; i >= 0; i-- {
		trade := s.trades[s.order[i]]
		if filter.Symbol != "" && trade.Symbol != filter.Symbol {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, trade.Status) {
			continue
		}
		if filter.Since != nil && trade.EntryTime.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && trade.EntryTime.After(*filter.Until) {
			continue
		}
		out = append(out, trade)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ListOpenTrades returns every OPEN trade, newest first.
func (s *LedgerStore) ListOpenTrades(ctx context.Context) ([]domain.Trade, error) {
	return s.ListTrades(ctx, domain.TradeFilter{
		Statuses: []domain.TradeStatus{domain.TradeStatusOpen},
	})
}

// PortfolioSnapshot recomputes aggregates from the stored trades.
func (s *LedgerStore) PortfolioSnapshot(_ context.Context, startingBalance float64) (domain.PortfolioSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := domain.PortfolioSnapshot{
		StartingBalance: startingBalance,
		GeneratedAt:     time.Now().UTC(),
	}
	var realized, locked, openVal float64
	for _, trade := range s.trades {
		snap.TotalTrades++
		if trade.Status == domain.TradeStatusOpen {
			snap.OpenTrades++
			locked += trade.Amount + trade.Fees
			openVal += trade.Quantity * trade.EntryPrice
			continue
		}
		if trade.ProfitLoss != nil {
			realized += *trade.ProfitLoss
			if *trade.ProfitLoss > 0 {
				snap.WinningTrades++
			} else {
				snap.LosingTrades++
			}
		}
	}

	snap.TotalProfitLoss = realized
	snap.TotalBalance = startingBalance + realized
	snap.AvailableBalance = snap.TotalBalance - locked
	snap.TotalEquity = snap.AvailableBalance + openVal
	if closed := snap.WinningTrades + snap.LosingTrades; closed > 0 {
		snap.WinRate = float64(snap.WinningTrades) / float64(closed) * 100
	}
	return snap, nil
}

// ResetTrades clears the ledger.
func (s *LedgerStore) ResetTrades(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = make(map[string]domain.Trade)
	s.open = make(map[string]string)
	s.order = nil
	return nil
}

func containsStatus(statuses []domain.TradeStatus, status domain.TradeStatus) bool {
	for _, st := range statuses {
		if st == status {
			return true
		}
	}
	return false
}

// PairStore is an in-memory domain.PairStore.
type PairStore struct {
	mu    sync.RWMutex
	pairs map[string]domain.Pair
}

// NewPairStore creates an empty PairStore.
func NewPairStore() *PairStore {
	return &PairStore{pairs: make(map[string]domain.Pair)}
}

// UpsertBatch inserts or refreshes a batch of pairs.
func (s *PairStore) UpsertBatch(_ context.Context, pairs []domain.Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pairs {
		s.pairs[p.Symbol] = p
	}
	return nil
}

// List returns all known pairs ordered by symbol.
func (s *PairStore) List(_ context.Context) ([]domain.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Pair, 0, len(s.pairs))
	for _, p := range s.pairs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// Get retrieves a pair by symbol.
func (s *PairStore) Get(_ context.Context, symbol string) (domain.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pairs[symbol]
	if !ok {
		return domain.Pair{}, domain.ErrNotFound
	}
	return p, nil
}

// PriceCache is an in-memory domain.PriceCache.
type PriceCache struct {
	mu     sync.RWMutex
	prices map[string]pricePoint
}

type pricePoint struct {
	price float64
	ts    time.Time
}

// NewPriceCache creates an empty PriceCache.
func NewPriceCache() *PriceCache {
	return &PriceCache{prices: make(map[string]pricePoint)}
}

// SetPrice stores the latest price for a symbol.
func (c *PriceCache) SetPrice(_ context.Context, symbol string, price float64, ts time.Time) error {
	c.mu.Lock()
	c.prices[symbol] = pricePoint{price: price, ts: ts}
	c.mu.Unlock()
	return nil
}

// GetPrice retrieves the latest price for a symbol.
func (c *PriceCache) GetPrice(_ context.Context, symbol string) (float64, time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[symbol]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return p.price, p.ts, nil
}

// SignalBus is an in-process domain.SignalBus for sim mode.
type SignalBus struct {
	mu   sync.Mutex
	subs map[int]subscriber
	next int
}

type subscriber struct {
	channels map[string]bool
	ch       chan domain.BusMessage
}

// NewSignalBus creates an empty SignalBus.
func NewSignalBus() *SignalBus {
	return &SignalBus{subs: make(map[int]subscriber)}
}

// Publish delivers the payload to all matching subscribers. Slow
// subscribers drop messages rather than blocking the pipeline.
func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if len(sub.channels) > 0 && !sub.channels[channel] {
			continue
		}
		select {
		case sub.ch <- domain.BusMessage{Channel: channel, Payload: payload}:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber for the given channels (empty means all).
func (b *SignalBus) Subscribe(_ context.Context, channels ...string) (<-chan domain.BusMessage, func(), error) {
	set := make(map[string]bool, len(channels))
	for _, c := range channels {
		set[c] = true
	}
	ch := make(chan domain.BusMessage, 64)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = subscriber{channels: set, ch: ch}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub.ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel, nil
}

// Compile-time interface checks.
var (
	_ domain.TickStore   = (*TickStore)(nil)
	_ domain.LedgerStore = (*LedgerStore)(nil)
	_ domain.PairStore   = (*PairStore)(nil)
	_ domain.PriceCache  = (*PriceCache)(nil)
	_ domain.SignalBus   = (*SignalBus)(nil)
)
