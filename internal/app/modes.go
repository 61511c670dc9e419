package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/burhankhanlodhy/scalper-bot/internal/engine"
	"github.com/burhankhanlodhy/scalper-bot/internal/feed"
	"github.com/burhankhanlodhy/scalper-bot/internal/indicator"
	"github.com/burhankhanlodhy/scalper-bot/internal/metrics"
	"github.com/burhankhanlodhy/scalper-bot/internal/notify"
	"github.com/burhankhanlodhy/scalper-bot/internal/platform/kraken"
	"github.com/burhankhanlodhy/scalper-bot/internal/registry"
	"github.com/burhankhanlodhy/scalper-bot/internal/server"
	"github.com/burhankhanlodhy/scalper-bot/internal/server/handler"
	"github.com/burhankhanlodhy/scalper-bot/internal/server/ws"
	"github.com/burhankhanlodhy/scalper-bot/internal/service"
	"github.com/burhankhanlodhy/scalper-bot/internal/strategy"
)

// TradeMode runs the full pipeline against Postgres and Redis: pair
// registry, price feed, trading engine, stale checker, and the API server.
// New entries are evaluated when trading.start_enabled is set (or after the
// operator toggles trading on).
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")
	return a.runPipeline(ctx, deps, a.cfg.Trading.StartEnabled)
}

// MonitorMode runs the same pipeline with entry evaluation disabled at
// boot: ticks are ingested, open positions keep being monitored, and the
// API stays available. The operator can still toggle trading on.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	return a.runPipeline(ctx, deps, false)
}

// SimMode runs the full pipeline against in-memory stores: live market
// data, no Postgres or Redis, nothing survives a restart.
func (a *App) SimMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sim mode")
	return a.runPipeline(ctx, deps, a.cfg.Trading.StartEnabled)
}

// runPipeline assembles and runs every subsystem. All goroutines share one
// errgroup: the first fatal error (or ctx cancellation) stops the rest.
func (a *App) runPipeline(ctx context.Context, deps *Dependencies, startEnabled bool) error {
	g, ctx := errgroup.WithContext(ctx)

	// --- Pair registry ---
	venue := kraken.NewClient(a.cfg.Kraken.RestHost)
	reg := registry.New(venue, deps.PairStore, a.cfg.Registry.Pairs, a.cfg.Feed.MaxPairs, a.logger)
	if err := reg.Refresh(ctx); err != nil {
		// Not fatal: the refresh loop retries, and the feed subscribes
		// once pairs arrive.
		a.logger.WarnContext(ctx, "initial pair refresh failed",
			slog.String("error", err.Error()),
		)
	}
	g.Go(func() error {
		return reg.Run(ctx, a.cfg.Registry.RefreshInterval.Duration)
	})

	// --- Price feed ---
	transport := kraken.NewWSClient(
		a.cfg.Kraken.WsHost,
		a.cfg.Feed.BatchSize,
		a.cfg.Feed.HeartbeatGrace.Duration,
		a.logger,
	)
	feedClient := feed.NewClient(transport, a.cfg.Feed.BackoffBase.Duration, a.cfg.Feed.BackoffMax.Duration, a.logger)
	if err := feedClient.Subscribe(ctx, reg.SubscriptionList()); err != nil {
		return fmt.Errorf("app: initial subscribe: %w", err)
	}
	reg.OnRefresh(func() {
		// Push universe changes to a live connection; Subscribe defers
		// to the next connect when the feed is down.
		_ = feedClient.Subscribe(ctx, reg.SubscriptionList())
	})
	feedClient.OnReconnect(func() {
		metrics.FeedReconnects.Inc()
		// Pick up any universe changes for the next connect.
		_ = feedClient.Subscribe(ctx, reg.SubscriptionList())
		_ = deps.Notifier.Notify(ctx, notify.EventFeedDown,
			"Feed disconnected",
			"price feed lost, reconnecting with backoff",
		)
	})
	g.Go(func() error {
		return feedClient.Run(ctx)
	})

	// --- Trading engine ---
	indicatorCfg := indicator.Config{
		ShortPeriod: a.cfg.Trading.ShortPeriod,
		LongPeriod:  a.cfg.Trading.LongPeriod,
		BandPeriod:  a.cfg.Trading.BandPeriod,
		BandStdDev:  a.cfg.Trading.BandStdDev,
	}
	eng := engine.New(
		engine.Config{
			Risk: engine.RiskConfig{
				TradeAmount:     a.cfg.Trading.TradeAmount,
				MakerFeeRate:    a.cfg.Trading.MakerFeeRate,
				ProfitTargetPct: a.cfg.Trading.ProfitTargetPct,
				StopLossPct:     a.cfg.Trading.StopLossPct,
				Strategy:        a.cfg.Trading.Strategy,
			},
			Indicator:       indicatorCfg,
			WindowSize:      a.cfg.Trading.WindowSize,
			StartingBalance: a.cfg.Trading.StartingBalance,
			StaleAfter:      a.cfg.Trading.StaleAfter.Duration,
			StartEnabled:    startEnabled,
		},
		deps.LedgerStore,
		deps.TickStore,
		deps.PriceCache,
		strategy.NewRegistry(),
		deps.SignalBus,
		deps.Notifier,
		a.logger,
	)
	g.Go(func() error {
		return eng.Run(ctx, feedClient.Ticks())
	})
	g.Go(func() error {
		return eng.RunStaleChecker(ctx, staleCheckInterval(a.cfg.Trading.StaleAfter.Duration))
	})

	// --- API server ---
	a.startHTTPServer(ctx, g, deps, eng, reg, feedClient)

	return g.Wait()
}

// staleCheckInterval derives how often open positions are checked for a
// silent pair: half the staleness threshold, floored at 10s.
func staleCheckInterval(staleAfter time.Duration) time.Duration {
	interval := staleAfter / 2
	if interval < 10*time.Second {
		interval = 10 * time.Second
	}
	return interval
}

// startHTTPServer builds the services, handlers, and websocket hub, then
// runs the API server on the errgroup with graceful shutdown on ctx end.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	eng *engine.Engine,
	reg *registry.Registry,
	feedClient *feed.Client,
) {
	tradingSvc := service.NewTradingService(
		deps.LedgerStore,
		eng,
		reg,
		feedClient,
		deps.Archiver,
		a.cfg.Mode,
		a.cfg.Trading.StartingBalance,
		a.logger,
	)
	chartSvc := service.NewChartService(
		deps.TickStore,
		indicator.Config{
			ShortPeriod: a.cfg.Trading.ShortPeriod,
			LongPeriod:  a.cfg.Trading.LongPeriod,
			BandPeriod:  a.cfg.Trading.BandPeriod,
			BandStdDev:  a.cfg.Trading.BandStdDev,
		},
		a.cfg.Trading.WindowSize,
		a.logger,
	)

	hub := ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.New(
		server.Config{
			Addr:        fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port),
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
			RateLimit:   120,
			RateWindow:  time.Minute,
		},
		server.Handlers{
			Health:    handler.NewHealthHandler(a.logger),
			Portfolio: handler.NewPortfolioHandler(tradingSvc, a.logger),
			Trades:    handler.NewTradeHandler(tradingSvc, a.logger),
			Pairs:     handler.NewPairHandler(tradingSvc, a.logger),
			Chart:     handler.NewChartHandler(chartSvc, a.logger),
			Bot:       handler.NewBotHandler(tradingSvc, a.logger),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown failed", slog.String("error", err.Error()))
		}
		return ctx.Err()
	})
}
