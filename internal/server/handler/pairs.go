package handler

import (
	"log/slog"
	"net/http"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
)

// PairService defines what the pair handler needs from the service layer.
type PairService interface {
	ListPairs() []domain.Pair
}

// PairHandler serves the tradeable-pair universe.
type PairHandler struct {
	pairs  PairService
	logger *slog.Logger
}

// NewPairHandler creates a PairHandler.
func NewPairHandler(pairs PairService, logger *slog.Logger) *PairHandler {
	return &PairHandler{pairs: pairs, logger: logger}
}

// ListPairs returns the registry's current pair universe.
// GET /api/pairs
func (h *PairHandler) ListPairs(w http.ResponseWriter, r *http.Request) {
	pairs := h.pairs.ListPairs()
	writeJSON(w, http.StatusOK, map[string]any{
		"pairs": pairs,
		"count": len(pairs),
	})
}
