package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
	"github.com/burhankhanlodhy/scalper-bot/internal/indicator"
)

// ChartData bundles the recent price window with the indicator values
// computed over it, ready for rendering.
type ChartData struct {
	Symbol     string                   `json:"symbol"`
	Ticks      []domain.Tick            `json:"ticks"`
	Indicators domain.IndicatorSnapshot `json:"indicators"`
}

// ChartService serves per-pair price and indicator data.
type ChartService struct {
	ticks  domain.TickStore
	cfg    indicator.Config
	window int
	logger *slog.Logger
}

// NewChartService creates a ChartService reading at most window ticks per
// request.
func NewChartService(ticks domain.TickStore, cfg indicator.Config, window int, logger *slog.Logger) *ChartService {
	return &ChartService{
		ticks:  ticks,
		cfg:    cfg,
		window: window,
		logger: logger,
	}
}

// GetChartData returns up to limit recent ticks for the symbol, oldest
// first, along with indicators computed over that window. A limit of zero
// or above the configured window falls back to the window size.
func (s *ChartService) GetChartData(ctx context.Context, symbol string, limit int) (ChartData, error) {
	if limit <= 0 || limit > s.window {
		limit = s.window
	}

	ticks, err := s.ticks.Recent(ctx, symbol, limit)
	if err != nil {
		return ChartData{}, fmt.Errorf("chart_service: recent ticks for %q: %w", symbol, err)
	}
	if len(ticks) == 0 {
		return ChartData{}, fmt.Errorf("chart_service: %q: %w", symbol, domain.ErrNotFound)
	}

	return ChartData{
		Symbol:     symbol,
		Ticks:      ticks,
		Indicators: indicator.Compute(ticks, s.cfg),
	}, nil
}
