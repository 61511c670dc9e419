package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
	"github.com/burhankhanlodhy/scalper-bot/internal/service"
)

// ChartDataService defines what the chart handler needs from the service
// layer.
type ChartDataService interface {
	GetChartData(ctx context.Context, symbol string, limit int) (service.ChartData, error)
}

// ChartHandler serves per-pair price and indicator data.
type ChartHandler struct {
	charts ChartDataService
	logger *slog.Logger
}

// NewChartHandler creates a ChartHandler.
func NewChartHandler(charts ChartDataService, logger *slog.Logger) *ChartHandler {
	return &ChartHandler{charts: charts, logger: logger}
}

// GetChartData returns recent ticks plus indicator values for a symbol.
// GET /api/chart/{symbol}?limit=100
func (h *ChartHandler) GetChartData(w http.ResponseWriter, r *http.Request) {
	symbol := pathParam(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	data, err := h.charts.GetChartData(r.Context(), symbol, limit)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no tick data for symbol")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get chart data failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load chart data")
		return
	}

	writeJSON(w, http.StatusOK, data)
}
