package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
)

// PortfolioService defines what the portfolio handler needs from the
// service layer.
type PortfolioService interface {
	GetPortfolio(ctx context.Context) (domain.PortfolioSnapshot, error)
}

// PortfolioHandler serves the derived portfolio summary.
type PortfolioHandler struct {
	portfolio PortfolioService
	logger    *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler.
func NewPortfolioHandler(portfolio PortfolioService, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolio: portfolio, logger: logger}
}

// GetPortfolio returns the current portfolio snapshot derived from the
// trade ledger.
// GET /api/portfolio
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	snap, err := h.portfolio.GetPortfolio(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get portfolio failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load portfolio")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
