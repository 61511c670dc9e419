// Package service contains the application services that sit between the
// HTTP handlers and the trading engine, ledger, and pair registry.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
	"github.com/burhankhanlodhy/scalper-bot/internal/engine"
	"github.com/burhankhanlodhy/scalper-bot/internal/feed"
	"github.com/burhankhanlodhy/scalper-bot/internal/registry"
)

// BotStatus summarizes the live state of the bot for the status endpoint.
type BotStatus struct {
	Mode            string    `json:"mode"`
	TradingEnabled  bool      `json:"trading_enabled"`
	FeedState       string    `json:"feed_state"`
	FeedReconnects  int64     `json:"feed_reconnects"`
	TrackedPairs    int       `json:"tracked_pairs"`
	StalePairs      []string  `json:"stale_pairs"`
	StartedAt       time.Time `json:"started_at"`
	UptimeSeconds   int64     `json:"uptime_seconds"`
	StartingBalance float64   `json:"starting_balance"`
}

// TradingService exposes portfolio, ledger, and bot-control operations.
type TradingService struct {
	ledger   domain.LedgerStore
	engine   *engine.Engine
	registry *registry.Registry
	feed     *feed.Client
	archiver domain.LedgerArchiver

	mode            string
	startingBalance float64
	startedAt       time.Time
	logger          *slog.Logger
}

// NewTradingService creates a TradingService. The archiver may be nil when
// no object store is configured; ExportLedger then returns an error.
func NewTradingService(
	ledger domain.LedgerStore,
	eng *engine.Engine,
	reg *registry.Registry,
	feedClient *feed.Client,
	archiver domain.LedgerArchiver,
	mode string,
	startingBalance float64,
	logger *slog.Logger,
) *TradingService {
	return &TradingService{
		ledger:          ledger,
		engine:          eng,
		registry:        reg,
		feed:            feedClient,
		archiver:        archiver,
		mode:            mode,
		startingBalance: startingBalance,
		startedAt:       time.Now(),
		logger:          logger,
	}
}

// GetPortfolio derives the portfolio summary from the trade ledger.
func (s *TradingService) GetPortfolio(ctx context.Context) (domain.PortfolioSnapshot, error) {
	snap, err := s.ledger.PortfolioSnapshot(ctx, s.startingBalance)
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("trading_service: portfolio snapshot: %w", err)
	}
	return snap, nil
}

// ListTrades returns trades matching the filter, newest first.
func (s *TradingService) ListTrades(ctx context.Context, filter domain.TradeFilter) ([]domain.Trade, error) {
	trades, err := s.ledger.ListTrades(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("trading_service: list trades: %w", err)
	}
	return trades, nil
}

// ListOpenTrades returns all currently open trades.
func (s *TradingService) ListOpenTrades(ctx context.Context) ([]domain.Trade, error) {
	trades, err := s.ledger.ListOpenTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("trading_service: list open trades: %w", err)
	}
	return trades, nil
}

// GetTrade returns a single trade by id.
func (s *TradingService) GetTrade(ctx context.Context, id string) (domain.Trade, error) {
	trade, err := s.ledger.GetTrade(ctx, id)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("trading_service: get trade %q: %w", id, err)
	}
	return trade, nil
}

// ListPairs returns the registry's current tradeable-pair universe.
func (s *TradingService) ListPairs() []domain.Pair {
	return s.registry.List()
}

// ToggleTrading enables or disables new trade entry. Open positions keep
// being monitored either way.
func (s *TradingService) ToggleTrading(on bool) bool {
	s.engine.ToggleTrading(on)
	s.logger.Info("trading_service: trading toggled", slog.Bool("enabled", on))
	return s.engine.TradingEnabled()
}

// CloseAllPositions force-exits every open trade at the latest known price
// and returns the number of trades closed.
func (s *TradingService) CloseAllPositions(ctx context.Context) (int, error) {
	closed, err := s.engine.CloseAll(ctx)
	if err != nil {
		return closed, fmt.Errorf("trading_service: close all: %w", err)
	}
	return closed, nil
}

// GetRiskConfig returns the engine's live risk parameters.
func (s *TradingService) GetRiskConfig() engine.RiskConfig {
	return s.engine.RiskConfig()
}

// SetRiskConfig validates and applies new risk parameters. Changes affect
// future entries only; open trades keep their recorded stop and target.
func (s *TradingService) SetRiskConfig(cfg engine.RiskConfig) error {
	if err := s.engine.SetRiskConfig(cfg); err != nil {
		return fmt.Errorf("trading_service: set risk config: %w", err)
	}
	return nil
}

// ResetTrades clears the trade ledger, restoring the paper portfolio to its
// starting balance. Destructive; callers must gate this behind an explicit
// confirmation.
func (s *TradingService) ResetTrades(ctx context.Context) error {
	if err := s.ledger.ResetTrades(ctx); err != nil {
		return fmt.Errorf("trading_service: reset trades: %w", err)
	}
	s.logger.Info("trading_service: ledger reset")
	return nil
}

// ExportLedger uploads the full trade history plus the current portfolio
// summary to object storage and returns the object key.
func (s *TradingService) ExportLedger(ctx context.Context) (string, error) {
	if s.archiver == nil {
		return "", fmt.Errorf("trading_service: export: no object store configured")
	}

	trades, err := s.ledger.ListTrades(ctx, domain.TradeFilter{})
	if err != nil {
		return "", fmt.Errorf("trading_service: export list trades: %w", err)
	}
	snap, err := s.ledger.PortfolioSnapshot(ctx, s.startingBalance)
	if err != nil {
		return "", fmt.Errorf("trading_service: export portfolio: %w", err)
	}

	key, err := s.archiver.Archive(ctx, trades, snap)
	if err != nil {
		return "", fmt.Errorf("trading_service: export upload: %w", err)
	}

	s.logger.Info("trading_service: ledger exported",
		slog.String("key", key),
		slog.Int("trades", len(trades)),
	)
	return key, nil
}

// Status reports the bot's live operational state.
func (s *TradingService) Status() BotStatus {
	stale := s.engine.StalePairs()
	if stale == nil {
		stale = []string{}
	}
	return BotStatus{
		Mode:            s.mode,
		TradingEnabled:  s.engine.TradingEnabled(),
		FeedState:       string(s.feed.State()),
		FeedReconnects:  s.feed.Reconnects(),
		TrackedPairs:    len(s.registry.List()),
		StalePairs:      stale,
		StartedAt:       s.startedAt,
		UptimeSeconds:   int64(time.Since(s.startedAt).Seconds()),
		StartingBalance: s.startingBalance,
	}
}
