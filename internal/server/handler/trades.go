package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
)

// TradeService defines what the trade handler needs from the service layer.
type TradeService interface {
	ListTrades(ctx context.Context, filter domain.TradeFilter) ([]domain.Trade, error)
	ListOpenTrades(ctx context.Context) ([]domain.Trade, error)
	GetTrade(ctx context.Context, id string) (domain.Trade, error)
	ResetTrades(ctx context.Context) error
	ExportLedger(ctx context.Context) (string, error)
}

// TradeHandler serves trade ledger endpoints.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, logger: logger}
}

// listTradesResponse wraps the list endpoint output with the applied filter.
type listTradesResponse struct {
	Trades []domain.Trade `json:"trades"`
	Count  int            `json:"count"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ListTrades returns trades matching the query filters, newest first.
// GET /api/trades?symbol=XBTUSD&status=CLOSED,STOPPED&limit=50&offset=0
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	filter := parseTradeFilter(r)

	trades, err := h.trades.ListTrades(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	writeJSON(w, http.StatusOK, listTradesResponse{
		Trades: trades,
		Count:  len(trades),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// ListOpenTrades returns all currently open trades.
// GET /api/trades/open
func (h *TradeHandler) ListOpenTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.trades.ListOpenTrades(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list open trades failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list open trades")
		return
	}

	writeJSON(w, http.StatusOK, listTradesResponse{
		Trades: trades,
		Count:  len(trades),
	})
}

// GetTrade returns a single trade by id.
// GET /api/trades/{id}
func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing trade id")
		return
	}

	trade, err := h.trades.GetTrade(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "trade not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get trade failed",
			slog.String("trade_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get trade")
		return
	}

	writeJSON(w, http.StatusOK, trade)
}

// ResetTrades deletes the whole ledger. Requires confirm=true to guard
// against accidental calls.
// POST /api/trades/reset?confirm=true
func (h *TradeHandler) ResetTrades(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusBadRequest, "reset requires confirm=true")
		return
	}

	if err := h.trades.ResetTrades(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: reset trades failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to reset trades")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// ExportLedger uploads the trade history to object storage and returns the
// object key.
// POST /api/trades/export
func (h *TradeHandler) ExportLedger(w http.ResponseWriter, r *http.Request) {
	key, err := h.trades.ExportLedger(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: export ledger failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to export ledger")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}
