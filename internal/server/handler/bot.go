package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/burhankhanlodhy/scalper-bot/internal/engine"
	"github.com/burhankhanlodhy/scalper-bot/internal/service"
)

// BotService defines the control-plane operations the bot handler exposes.
type BotService interface {
	Status() service.BotStatus
	ToggleTrading(on bool) bool
	CloseAllPositions(ctx context.Context) (int, error)
	GetRiskConfig() engine.RiskConfig
	SetRiskConfig(cfg engine.RiskConfig) error
}

// BotHandler serves bot control endpoints: status, trading toggle, risk
// config, and close-all.
type BotHandler struct {
	bot    BotService
	logger *slog.Logger
}

// NewBotHandler creates a BotHandler.
func NewBotHandler(bot BotService, logger *slog.Logger) *BotHandler {
	return &BotHandler{bot: bot, logger: logger}
}

// GetStatus returns the bot's live operational state.
// GET /api/bot/status
func (h *BotHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.bot.Status())
}

// toggleRequest is the body for the trading toggle endpoint.
type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

// ToggleTrading enables or disables new trade entry.
// POST /api/bot/toggle {"enabled":true}
func (h *BotHandler) ToggleTrading(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	enabled := h.bot.ToggleTrading(req.Enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"trading_enabled": enabled})
}

// CloseAll force-exits every open trade at the latest known price.
// POST /api/bot/close-all
func (h *BotHandler) CloseAll(w http.ResponseWriter, r *http.Request) {
	closed, err := h.bot.CloseAllPositions(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: close all failed",
			slog.Int("closed", closed),
			slog.String("error", err.Error()),
		)
		// Partial progress still matters to the operator.
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":  "failed to close all positions",
			"closed": closed,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"closed": closed})
}

// GetConfig returns the engine's live risk parameters.
// GET /api/bot/config
func (h *BotHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.bot.GetRiskConfig())
}

// UpdateConfig validates and applies new risk parameters. Open trades keep
// their recorded stop and target.
// PUT /api/bot/config
func (h *BotHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg engine.RiskConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.bot.SetRiskConfig(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.InfoContext(r.Context(), "handler: risk config updated",
		slog.String("strategy", cfg.Strategy),
	)
	writeJSON(w, http.StatusOK, h.bot.GetRiskConfig())
}
