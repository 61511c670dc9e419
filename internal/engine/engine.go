// Package engine implements the per-pair trade-lifecycle state machine:
// entry on a strategy signal, stop-loss/take-profit monitoring on every
// tick, and fee-aware P&L accounting, all persisted through the ledger
// store.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
	"github.com/burhankhanlodhy/scalper-bot/internal/indicator"
	"github.com/burhankhanlodhy/scalper-bot/internal/metrics"
	"github.com/burhankhanlodhy/scalper-bot/internal/notify"
	"github.com/burhankhanlodhy/scalper-bot/internal/strategy"
)

// RiskConfig holds the runtime-adjustable trading parameters. Values are
// read per evaluation, never cached by the loops, so SetRiskConfig takes
// effect on the next tick.
type RiskConfig struct {
	TradeAmount     float64 `json:"trade_amount"`
	MakerFeeRate    float64 `json:"maker_fee_rate"`
	ProfitTargetPct float64 `json:"profit_target_pct"`
	StopLossPct     float64 `json:"stop_loss_pct"`
	Strategy        string  `json:"strategy"`
}

// Config is the full engine configuration.
type Config struct {
	Risk            RiskConfig
	Indicator       indicator.Config
	WindowSize      int
	StartingBalance float64
	StaleAfter      time.Duration
	StartEnabled    bool
}

// Engine consumes ticks and drives trades through
// FLAT -> OPEN -> {CLOSED, STOPPED}. Evaluation is serialized per pair;
// the ledger's conditional writes are the hard line of defence for the
// one-open-trade-per-pair invariant.
type Engine struct {
	ledger   domain.LedgerStore
	ticks    domain.TickStore
	prices   domain.PriceCache
	registry *strategy.Registry
	bus      domain.SignalBus // optional
	notifier *notify.Notifier // optional
	logger   *slog.Logger

	indicatorCfg    indicator.Config
	windowSize      int
	startingBalance float64
	staleAfter      time.Duration

	riskMu sync.RWMutex
	risk   RiskConfig

	trading atomic.Bool

	// pairLocks serializes [receive tick -> evaluate -> mutate] per pair.
	pairLocks sync.Map // symbol -> *sync.Mutex

	staleMu sync.Mutex
	stale   map[string]time.Time // symbol -> last price time when flagged
}

// New creates an Engine. bus and notifier may be nil.
func New(cfg Config, ledger domain.LedgerStore, ticks domain.TickStore, prices domain.PriceCache,
	registry *strategy.Registry, bus domain.SignalBus, notifier *notify.Notifier, logger *slog.Logger) *Engine {

	e := &Engine{
		ledger:          ledger,
		ticks:           ticks,
		prices:          prices,
		registry:        registry,
		bus:             bus,
		notifier:        notifier,
		logger:          logger.With(slog.String("component", "engine")),
		indicatorCfg:    cfg.Indicator,
		windowSize:      cfg.WindowSize,
		startingBalance: cfg.StartingBalance,
		staleAfter:      cfg.StaleAfter,
		risk:            cfg.Risk,
		stale:           make(map[string]time.Time),
	}
	e.trading.Store(cfg.StartEnabled)
	return e
}

// ToggleTrading switches entry evaluation on or off. Monitoring of already
// open trades is unaffected.
func (e *Engine) ToggleTrading(on bool) {
	e.trading.Store(on)
	e.logger.Info("trading toggled", slog.Bool("enabled", on))
}

// TradingEnabled reports the current toggle state.
func (e *Engine) TradingEnabled() bool { return e.trading.Load() }

// RiskConfig returns a copy of the current risk parameters.
func (e *Engine) RiskConfig() RiskConfig {
	e.riskMu.RLock()
	defer e.riskMu.RUnlock()
	return e.risk
}

// SetRiskConfig replaces the runtime risk parameters after validation.
// Open trades keep the thresholds they were created with.
func (e *Engine) SetRiskConfig(cfg RiskConfig) error {
	if cfg.TradeAmount <= 0 {
		return fmt.Errorf("engine: trade amount must be positive")
	}
	if cfg.MakerFeeRate < 0 || cfg.MakerFeeRate >= 1 {
		return fmt.Errorf("engine: maker fee rate must be in [0, 1)")
	}
	if cfg.StopLossPct <= 0 || cfg.StopLossPct >= 1 {
		return fmt.Errorf("engine: stop loss pct must be in (0, 1)")
	}
	if cfg.ProfitTargetPct <= 0 {
		return fmt.Errorf("engine: profit target pct must be positive")
	}
	if _, err := e.registry.Get(cfg.Strategy); err != nil {
		return err
	}
	e.riskMu.Lock()
	e.risk = cfg
	e.riskMu.Unlock()
	e.logger.Info("risk config updated", slog.String("strategy", cfg.Strategy))
	return nil
}

// Run consumes the tick channel until it is closed or ctx is cancelled.
// Cancellation stops new entries immediately, but a transition already in
// flight is persisted with a detached context: it either completes or was
// never attempted.
func (e *Engine) Run(ctx context.Context, ticks <-chan domain.Tick) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}
			if err := e.HandleTick(ctx, tick); err != nil {
				e.logger.Error("tick handling failed",
					slog.String("pair", tick.Symbol),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// HandleTick is the full per-tick pipeline step: persist the tick, refresh
// the price cache, monitor the pair's open trade against its exit rules,
// and evaluate the entry signal when the pair is flat.
func (e *Engine) HandleTick(ctx context.Context, tick domain.Tick) error {
	if tick.Symbol == "" || tick.Price <= 0 {
		return fmt.Errorf("engine: reject tick: %w", domain.ErrParse)
	}

	if err := e.ticks.Append(ctx, tick); err != nil {
		metrics.StorageErrors.WithLabelValues("tick_append").Inc()
		return fmt.Errorf("engine: persist tick %s: %w", tick.Symbol, err)
	}
	if err := e.prices.SetPrice(ctx, tick.Symbol, tick.Price, tick.Timestamp); err != nil {
		// Cache misses degrade staleness checks but never stop the pipeline.
		e.logger.Warn("price cache update failed",
			slog.String("pair", tick.Symbol),
			slog.String("error", err.Error()),
		)
	}
	metrics.TicksIngested.WithLabelValues(tick.Symbol).Inc()
	e.clearStale(tick.Symbol)
	e.publish(ctx, "ticks", map[string]any{
		"event":  "tick",
		"pair":   tick.Symbol,
		"price":  tick.Price,
		"volume": tick.Volume,
		"time":   tick.Timestamp.Format(time.RFC3339Nano),
	})

	mu := e.lockPair(tick.Symbol)
	defer mu.Unlock()

	if err := e.monitorOpenTrade(ctx, tick); err != nil {
		return err
	}
	if !e.trading.Load() {
		return nil
	}
	return e.evaluateEntry(ctx, tick)
}

// lockPair returns the locked per-pair mutex.
func (e *Engine) lockPair(symbol string) *sync.Mutex {
	v, _ := e.pairLocks.LoadOrStore(symbol, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu
}

// monitorOpenTrade checks the pair's OPEN trade (if any) against its
// stop-loss and take-profit prices. When both thresholds are met on the
// same tick, the stop-loss wins: capital preservation over profit.
func (e *Engine) monitorOpenTrade(ctx context.Context, tick domain.Tick) error {
	open, err := e.ledger.ListTrades(ctx, domain.TradeFilter{
		Symbol:   tick.Symbol,
		Statuses: []domain.TradeStatus{domain.TradeStatusOpen},
	})
	if err != nil {
		metrics.StorageErrors.WithLabelValues("list_open").Inc()
		return fmt.Errorf("engine: list open trades %s: %w", tick.Symbol, err)
	}

	for _, trade := range open {
		switch {
		case tick.Price <= trade.StopLossPrice:
			if err := e.exitTrade(ctx, trade, tick.Price, tick.Timestamp, domain.TradeStatusStopped); err != nil {
				return err
			}
		case tick.Price >= trade.TakeProfitPrice:
			if err := e.exitTrade(ctx, trade, tick.Price, tick.Timestamp, domain.TradeStatusClosed); err != nil {
				return err
			}
		}
	}
	return nil
}

// evaluateEntry runs the configured signal for a flat pair and opens a
// trade when it triggers.
func (e *Engine) evaluateEntry(ctx context.Context, tick domain.Tick) error {
	risk := e.RiskConfig()

	signal, err := e.registry.Get(risk.Strategy)
	if err != nil {
		return err
	}

	snapshot, err := e.ledger.PortfolioSnapshot(ctx, e.startingBalance)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("portfolio").Inc()
		return fmt.Errorf("engine: portfolio snapshot: %w", err)
	}
	entryFee := risk.TradeAmount * risk.MakerFeeRate
	if snapshot.AvailableBalance < risk.TradeAmount+entryFee {
		return nil
	}

	window, err := e.ticks.Recent(ctx, tick.Symbol, e.windowSize)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("tick_recent").Inc()
		return fmt.Errorf("engine: recent ticks %s: %w", tick.Symbol, err)
	}
	snap := indicator.Compute(window, e.indicatorCfg)

	if !signal.ShouldEnter(snap, tick) {
		return nil
	}
	return e.openTrade(ctx, tick, risk, entryFee)
}

// openTrade builds and persists a new OPEN trade. A conflicting concurrent
// entry is rejected by the ledger and ignored here; the race resolved
// safely.
func (e *Engine) openTrade(ctx context.Context, tick domain.Tick, risk RiskConfig, entryFee float64) error {
	trade := domain.Trade{
		ID:              uuid.NewString(),
		Symbol:          tick.Symbol,
		Side:            "buy",
		Quantity:        risk.TradeAmount / tick.Price,
		EntryPrice:      tick.Price,
		Amount:          risk.TradeAmount,
		Fees:            entryFee,
		StopLossPrice:   tick.Price * (1 - risk.StopLossPct),
		TakeProfitPrice: tick.Price * (1 + risk.ProfitTargetPct),
		Status:          domain.TradeStatusOpen,
		Strategy:        risk.Strategy,
		EntryTime:       tick.Timestamp,
	}

	if err := e.ledger.OpenTrade(e.persistCtx(ctx), trade); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			metrics.OpenConflicts.Inc()
			e.logger.Debug("entry rejected, trade already open", slog.String("pair", tick.Symbol))
			return nil
		}
		metrics.StorageErrors.WithLabelValues("open_trade").Inc()
		return fmt.Errorf("engine: open trade %s: %w", tick.Symbol, err)
	}

	metrics.TradesOpened.WithLabelValues(tick.Symbol).Inc()
	e.logger.Info("trade opened",
		slog.String("id", trade.ID),
		slog.String("pair", trade.Symbol),
		slog.Float64("entry", trade.EntryPrice),
		slog.Float64("stop", trade.StopLossPrice),
		slog.Float64("target", trade.TakeProfitPrice),
	)
	e.publish(ctx, "trades", map[string]any{
		"event": "trade_opened",
		"id":    trade.ID,
		"pair":  trade.Symbol,
		"entry": trade.EntryPrice,
	})
	if e.notifier != nil {
		msg := fmt.Sprintf("%s: $%.2f at $%.4f (stop $%.4f, target $%.4f)",
			trade.Symbol, trade.Amount, trade.EntryPrice, trade.StopLossPrice, trade.TakeProfitPrice)
		_ = e.notifier.Notify(ctx, notify.EventTradeOpened, "Trade opened", msg)
	}
	return nil
}

// exitTrade transitions an OPEN trade to its terminal state. The realized
// P&L nets out both the entry fee (already recorded on the trade) and the
// exit fee on the notional at exit.
func (e *Engine) exitTrade(ctx context.Context, trade domain.Trade, exitPrice float64, exitTime time.Time, status domain.TradeStatus) error {
	risk := e.RiskConfig()

	exitFee := exitPrice * trade.Quantity * risk.MakerFeeRate
	profitLoss := (exitPrice-trade.EntryPrice)*trade.Quantity - trade.Fees - exitFee

	err := e.ledger.CloseTrade(e.persistCtx(ctx), trade.ID, exitPrice, profitLoss, exitFee, exitTime, status)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidState) {
			// A concurrent exit won; the trade is already terminal.
			e.logger.Debug("exit skipped, trade no longer open", slog.String("id", trade.ID))
			return nil
		}
		metrics.StorageErrors.WithLabelValues("close_trade").Inc()
		return fmt.Errorf("engine: close trade %s: %w", trade.ID, err)
	}

	metrics.TradesClosed.WithLabelValues(trade.Symbol, string(status)).Inc()
	e.logger.Info("trade exited",
		slog.String("id", trade.ID),
		slog.String("pair", trade.Symbol),
		slog.String("status", string(status)),
		slog.Float64("entry", trade.EntryPrice),
		slog.Float64("exit", exitPrice),
		slog.Float64("pnl", profitLoss),
	)
	e.publish(ctx, "trades", map[string]any{
		"event":  "trade_exited",
		"id":     trade.ID,
		"pair":   trade.Symbol,
		"status": string(status),
		"exit":   exitPrice,
		"pnl":    profitLoss,
	})
	if e.notifier != nil {
		event := notify.EventTradeClosed
		if status == domain.TradeStatusStopped {
			event = notify.EventTradeStopped
		}
		msg := fmt.Sprintf("%s: entry $%.4f, exit $%.4f, P&L $%.4f",
			trade.Symbol, trade.EntryPrice, exitPrice, profitLoss)
		_ = e.notifier.Notify(ctx, event, fmt.Sprintf("Trade %s", status), msg)
	}
	return nil
}

// CloseAll forces every OPEN trade to CLOSED at the current market price,
// reusing the regular exit path. Pairs without a known price are skipped
// and reported; stale prices are better than forced exits at zero.
func (e *Engine) CloseAll(ctx context.Context) (int, error) {
	open, err := e.ledger.ListOpenTrades(ctx)
	if err != nil {
		return 0, fmt.Errorf("engine: list open trades: %w", err)
	}

	closed := 0
	var errs []error
	for _, trade := range open {
		price, _, err := e.prices.GetPrice(ctx, trade.Symbol)
		if err != nil || price <= 0 {
			price, err = e.lastStoredPrice(ctx, trade.Symbol)
			if err != nil {
				errs = append(errs, fmt.Errorf("no price for %s: %w", trade.Symbol, err))
				continue
			}
		}

		mu := e.lockPair(trade.Symbol)
		err = e.exitTrade(ctx, trade, price, time.Now().UTC(), domain.TradeStatusClosed)
		mu.Unlock()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		closed++
	}

	if e.notifier != nil && closed > 0 {
		_ = e.notifier.Notify(ctx, notify.EventCloseAll, "Positions flattened",
			fmt.Sprintf("%d open trade(s) closed at market", closed))
	}
	if len(errs) > 0 {
		return closed, fmt.Errorf("engine: close all: %w", errors.Join(errs...))
	}
	return closed, nil
}

// lastStoredPrice falls back to the tick store when the cache has no price.
func (e *Engine) lastStoredPrice(ctx context.Context, symbol string) (float64, error) {
	recent, err := e.ticks.Recent(ctx, symbol, 1)
	if err != nil {
		return 0, err
	}
	if len(recent) == 0 {
		return 0, domain.ErrNotFound
	}
	return recent[len(recent)-1].Price, nil
}

// RunStaleChecker periodically flags pairs that have an OPEN trade but no
// price data within the staleness threshold. Flagged trades are left
// untouched: acting on stale prices is worse than waiting.
func (e *Engine) RunStaleChecker(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.checkStale(ctx)
		}
	}
}

func (e *Engine) checkStale(ctx context.Context) {
	open, err := e.ledger.ListOpenTrades(ctx)
	if err != nil {
		e.logger.Warn("stale check: list open trades failed", slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	for _, trade := range open {
		_, ts, err := e.prices.GetPrice(ctx, trade.Symbol)
		if err == nil && now.Sub(ts) <= e.staleAfter {
			e.clearStale(trade.Symbol)
			continue
		}

		e.staleMu.Lock()
		_, already := e.stale[trade.Symbol]
		if !already {
			e.stale[trade.Symbol] = ts
		}
		count := len(e.stale)
		e.staleMu.Unlock()

		if !already {
			metrics.StalePairs.Set(float64(count))
			e.logger.Warn("open trade has stale price data",
				slog.String("pair", trade.Symbol),
				slog.String("id", trade.ID),
				slog.Duration("threshold", e.staleAfter),
			)
			if e.notifier != nil {
				_ = e.notifier.Notify(ctx, notify.EventStalePair, "Stale pair",
					fmt.Sprintf("%s has an open trade but no recent price data", trade.Symbol))
			}
		}
	}
}

// StalePairs returns the currently flagged pairs.
func (e *Engine) StalePairs() []string {
	e.staleMu.Lock()
	defer e.staleMu.Unlock()
	out := make([]string, 0, len(e.stale))
	for symbol := range e.stale {
		out = append(out, symbol)
	}
	return out
}

func (e *Engine) clearStale(symbol string) {
	e.staleMu.Lock()
	if _, ok := e.stale[symbol]; ok {
		delete(e.stale, symbol)
		metrics.StalePairs.Set(float64(len(e.stale)))
	}
	e.staleMu.Unlock()
}

// persistCtx detaches trade-state writes from cancellation so shutdown
// cannot abandon a transition halfway. Values (trace data) survive.
func (e *Engine) persistCtx(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// publish best-effort sends an event to the signal bus.
func (e *Engine) publish(ctx context.Context, channel string, payload map[string]any) {
	if e.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, channel, data); err != nil {
		e.logger.Debug("bus publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
