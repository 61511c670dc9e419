package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
	"github.com/burhankhanlodhy/scalper-bot/internal/indicator"
	"github.com/burhankhanlodhy/scalper-bot/internal/store/memory"
	"github.com/burhankhanlodhy/scalper-bot/internal/strategy"
)

type fixture struct {
	engine *Engine
	ledger *memory.LedgerStore
	ticks  *memory.TickStore
	prices *memory.PriceCache
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()

	cfg := Config{
		Risk: RiskConfig{
			TradeAmount:     10,
			MakerFeeRate:    0.0025,
			ProfitTargetPct: 0.02,
			StopLossPct:     0.015,
			Strategy:        "sma_cross",
		},
		Indicator: indicator.Config{
			ShortPeriod: 3,
			LongPeriod:  5,
			BandPeriod:  5,
			BandStdDev:  2,
		},
		WindowSize:      100,
		StartingBalance: 100,
		StaleAfter:      30 * time.Second,
		StartEnabled:    true,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	ledger := memory.NewLedgerStore()
	ticks := memory.NewTickStore(0)
	prices := memory.NewPriceCache()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	eng := New(cfg, ledger, ticks, prices, strategy.NewRegistry(), nil, nil, logger)
	return &fixture{engine: eng, ledger: ledger, ticks: ticks, prices: prices}
}

// feedRising sends one tick per price, one second apart.
func (f *fixture) feedRising(t *testing.T, symbol string, prices ...float64) {
	t.Helper()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, p := range prices {
		tick := domain.Tick{
			Symbol:    symbol,
			Price:     p,
			Volume:    1,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, f.engine.HandleTick(context.Background(), tick))
	}
}

func openTradeAt(t *testing.T, ledger *memory.LedgerStore, symbol string, entry, stop, target float64) domain.Trade {
	t.Helper()
	trade := domain.Trade{
		ID:              "trade-" + symbol,
		Symbol:          symbol,
		Side:            "buy",
		Quantity:        10 / entry,
		EntryPrice:      entry,
		Amount:          10,
		Fees:            0.025,
		StopLossPrice:   stop,
		TakeProfitPrice: target,
		Status:          domain.TradeStatusOpen,
		Strategy:        "sma_cross",
		EntryTime:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, ledger.OpenTrade(context.Background(), trade))
	return trade
}

func TestHandleTickRejectsInvalidTicks(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	err := f.engine.HandleTick(ctx, domain.Tick{Symbol: "", Price: 100, Timestamp: time.Now()})
	assert.ErrorIs(t, err, domain.ErrParse)

	err = f.engine.HandleTick(ctx, domain.Tick{Symbol: "XBT/USD", Price: 0, Timestamp: time.Now()})
	assert.ErrorIs(t, err, domain.ErrParse)
}

func TestEntryOnCrossover(t *testing.T) {
	f := newFixture(t, nil)
	f.feedRising(t, "XBT/USD", 100, 101, 102, 103, 104)

	open, err := f.ledger.ListOpenTrades(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)

	trade := open[0]
	assert.Equal(t, "XBT/USD", trade.Symbol)
	assert.Equal(t, "buy", trade.Side)
	assert.Equal(t, 104.0, trade.EntryPrice)
	assert.InDelta(t, 10.0/104.0, trade.Quantity, 1e-12)
	assert.InDelta(t, 10.0, trade.Amount, 1e-12)
	assert.InDelta(t, 0.025, trade.Fees, 1e-12)
	assert.InDelta(t, 104*0.985, trade.StopLossPrice, 1e-9)
	assert.InDelta(t, 104*1.02, trade.TakeProfitPrice, 1e-9)
	assert.Equal(t, domain.TradeStatusOpen, trade.Status)
	assert.Equal(t, "sma_cross", trade.Strategy)
}

func TestNoEntryBeforeIndicatorsDefined(t *testing.T) {
	f := newFixture(t, nil)
	f.feedRising(t, "XBT/USD", 100, 101, 102, 103)

	open, err := f.ledger.ListOpenTrades(context.Background())
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestSecondEntryRejectedWhileOpen(t *testing.T) {
	f := newFixture(t, nil)
	// 105 and 106 keep the crossover signal firing after the entry at
	// 104; the ledger must keep holding a single open trade.
	f.feedRising(t, "XBT/USD", 100, 101, 102, 103, 104, 105, 106)

	open, err := f.ledger.ListOpenTrades(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, 104.0, open[0].EntryPrice)
}

func TestStopLossExit(t *testing.T) {
	f := newFixture(t, nil)
	trade := openTradeAt(t, f.ledger, "XBT/USD", 100, 98.5, 102)

	tick := domain.Tick{Symbol: "XBT/USD", Price: 98.4, Volume: 1, Timestamp: time.Now().UTC()}
	require.NoError(t, f.engine.HandleTick(context.Background(), tick))

	got, err := f.ledger.GetTrade(context.Background(), trade.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusStopped, got.Status)
	require.NotNil(t, got.ExitPrice)
	assert.Equal(t, 98.4, *got.ExitPrice)
	require.NotNil(t, got.ProfitLoss)
	// (98.4-100)*0.1 - 0.025 entry fee - 98.4*0.1*0.0025 exit fee
	assert.InDelta(t, -0.2096, *got.ProfitLoss, 1e-9)
	assert.InDelta(t, 0.025+0.0246, got.Fees, 1e-9)
	require.NotNil(t, got.ExitTime)
}

func TestTakeProfitExit(t *testing.T) {
	f := newFixture(t, nil)
	trade := openTradeAt(t, f.ledger, "ETH/USD", 100, 98.5, 102)

	tick := domain.Tick{Symbol: "ETH/USD", Price: 102.5, Volume: 1, Timestamp: time.Now().UTC()}
	require.NoError(t, f.engine.HandleTick(context.Background(), tick))

	got, err := f.ledger.GetTrade(context.Background(), trade.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusClosed, got.Status)
	require.NotNil(t, got.ProfitLoss)
	// (102.5-100)*0.1 - 0.025 entry fee - 102.5*0.1*0.0025 exit fee
	assert.InDelta(t, 0.199375, *got.ProfitLoss, 1e-9)
}

func TestStopLossWinsWhenBothThresholdsHit(t *testing.T) {
	f := newFixture(t, nil)
	trade := openTradeAt(t, f.ledger, "XBT/USD", 100, 100, 100)

	tick := domain.Tick{Symbol: "XBT/USD", Price: 100, Volume: 1, Timestamp: time.Now().UTC()}
	require.NoError(t, f.engine.HandleTick(context.Background(), tick))

	got, err := f.ledger.GetTrade(context.Background(), trade.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusStopped, got.Status)
}

func TestInsufficientBalanceSkipsEntry(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		// 10 available against 10 notional + 0.025 fee.
		cfg.StartingBalance = 10
	})
	f.feedRising(t, "XBT/USD", 100, 101, 102, 103, 104)

	open, err := f.ledger.ListOpenTrades(context.Background())
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestTradingDisabledStillMonitorsExits(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.StartEnabled = false })
	trade := openTradeAt(t, f.ledger, "XBT/USD", 100, 98.5, 102)

	// Rising prices would normally trigger a fresh entry on ETH/USD.
	f.feedRising(t, "ETH/USD", 100, 101, 102, 103, 104)

	open, err := f.ledger.ListOpenTrades(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1) // only the pre-existing trade

	tick := domain.Tick{Symbol: "XBT/USD", Price: 98, Volume: 1, Timestamp: time.Now().UTC()}
	require.NoError(t, f.engine.HandleTick(context.Background(), tick))

	got, err := f.ledger.GetTrade(context.Background(), trade.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusStopped, got.Status)
}

func TestToggleTrading(t *testing.T) {
	f := newFixture(t, nil)
	assert.True(t, f.engine.TradingEnabled())

	f.engine.ToggleTrading(false)
	assert.False(t, f.engine.TradingEnabled())

	f.feedRising(t, "XBT/USD", 100, 101, 102, 103, 104)
	open, err := f.ledger.ListOpenTrades(context.Background())
	require.NoError(t, err)
	assert.Empty(t, open)

	f.engine.ToggleTrading(true)
	f.feedRising(t, "XBT/USD", 105, 106)
	open, err = f.ledger.ListOpenTrades(context.Background())
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestSetRiskConfig(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("valid update takes effect", func(t *testing.T) {
		cfg := f.engine.RiskConfig()
		cfg.Strategy = "band_touch"
		cfg.TradeAmount = 25
		require.NoError(t, f.engine.SetRiskConfig(cfg))
		assert.Equal(t, "band_touch", f.engine.RiskConfig().Strategy)
		assert.Equal(t, 25.0, f.engine.RiskConfig().TradeAmount)
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		base := f.engine.RiskConfig()

		cfg := base
		cfg.TradeAmount = 0
		assert.Error(t, f.engine.SetRiskConfig(cfg))

		cfg = base
		cfg.MakerFeeRate = 1
		assert.Error(t, f.engine.SetRiskConfig(cfg))

		cfg = base
		cfg.StopLossPct = 0
		assert.Error(t, f.engine.SetRiskConfig(cfg))

		cfg = base
		cfg.ProfitTargetPct = -0.1
		assert.Error(t, f.engine.SetRiskConfig(cfg))

		cfg = base
		cfg.Strategy = "does_not_exist"
		assert.Error(t, f.engine.SetRiskConfig(cfg))
	})
}

func TestCloseAll(t *testing.T) {
	ctx := context.Background()

	t.Run("closes at cached price", func(t *testing.T) {
		f := newFixture(t, nil)
		trade := openTradeAt(t, f.ledger, "XBT/USD", 100, 98.5, 102)
		require.NoError(t, f.prices.SetPrice(ctx, "XBT/USD", 101, time.Now().UTC()))

		closed, err := f.engine.CloseAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, closed)

		got, err := f.ledger.GetTrade(ctx, trade.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TradeStatusClosed, got.Status)
		require.NotNil(t, got.ExitPrice)
		assert.Equal(t, 101.0, *got.ExitPrice)
	})

	t.Run("falls back to last stored tick", func(t *testing.T) {
		f := newFixture(t, nil)
		openTradeAt(t, f.ledger, "ETH/USD", 100, 98.5, 102)
		require.NoError(t, f.ticks.Append(ctx, domain.Tick{
			Symbol: "ETH/USD", Price: 99.5, Timestamp: time.Now().UTC(),
		}))

		closed, err := f.engine.CloseAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, closed)
	})

	t.Run("skips pairs with no known price", func(t *testing.T) {
		f := newFixture(t, nil)
		trade := openTradeAt(t, f.ledger, "SOL/USD", 100, 98.5, 102)

		closed, err := f.engine.CloseAll(ctx)
		assert.Equal(t, 0, closed)
		assert.Error(t, err)

		got, gerr := f.ledger.GetTrade(ctx, trade.ID)
		require.NoError(t, gerr)
		assert.Equal(t, domain.TradeStatusOpen, got.Status)
	})
}

func TestRunDrainsChannelUntilClosed(t *testing.T) {
	f := newFixture(t, nil)
	ticks := make(chan domain.Tick, 8)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, p := range []float64{100, 101, 102, 103, 104} {
		ticks <- domain.Tick{Symbol: "XBT/USD", Price: p, Timestamp: base.Add(time.Duration(i) * time.Second)}
	}
	close(ticks)

	require.NoError(t, f.engine.Run(context.Background(), ticks))

	open, err := f.ledger.ListOpenTrades(context.Background())
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestPortfolioAfterRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	openTradeAt(t, f.ledger, "XBT/USD", 100, 98.5, 102)
	tick := domain.Tick{Symbol: "XBT/USD", Price: 102.5, Volume: 1, Timestamp: time.Now().UTC()}
	require.NoError(t, f.engine.HandleTick(ctx, tick))

	snap, err := f.ledger.PortfolioSnapshot(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.TotalTrades)
	assert.Equal(t, 0, snap.OpenTrades)
	assert.Equal(t, 1, snap.WinningTrades)
	assert.InDelta(t, 0.199375, snap.TotalProfitLoss, 1e-9)
	assert.InDelta(t, 100.199375, snap.TotalBalance, 1e-9)
	assert.InDelta(t, 100.199375, snap.AvailableBalance, 1e-9)
	assert.InDelta(t, 100.0, snap.WinRate, 1e-9)
}
