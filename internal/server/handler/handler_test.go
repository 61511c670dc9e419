package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
	"github.com/burhankhanlodhy/scalper-bot/internal/engine"
	"github.com/burhankhanlodhy/scalper-bot/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTradeService struct {
	trades    []domain.Trade
	filter    domain.TradeFilter
	resets    int
	exportKey string
	err       error
}

func (f *fakeTradeService) ListTrades(_ context.Context, filter domain.TradeFilter) ([]domain.Trade, error) {
	f.filter = filter
	return f.trades, f.err
}

func (f *fakeTradeService) ListOpenTrades(context.Context) ([]domain.Trade, error) {
	return f.trades, f.err
}

func (f *fakeTradeService) GetTrade(_ context.Context, id string) (domain.Trade, error) {
	if f.err != nil {
		return domain.Trade{}, f.err
	}
	for _, tr := range f.trades {
		if tr.ID == id {
			return tr, nil
		}
	}
	return domain.Trade{}, domain.ErrNotFound
}

func (f *fakeTradeService) ResetTrades(context.Context) error {
	f.resets++
	return f.err
}

func (f *fakeTradeService) ExportLedger(context.Context) (string, error) {
	return f.exportKey, f.err
}

func TestParseTradeFilter(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/trades", nil)
		filter := parseTradeFilter(r)
		assert.Equal(t, 50, filter.Limit)
		assert.Zero(t, filter.Offset)
		assert.Empty(t, filter.Symbol)
		assert.Empty(t, filter.Statuses)
	})

	t.Run("limit is capped", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/trades?limit=9999", nil)
		assert.Equal(t, 500, parseTradeFilter(r).Limit)
	})

	t.Run("statuses are parsed case-insensitively, unknown dropped", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/trades?status=closed,STOPPED,bogus", nil)
		filter := parseTradeFilter(r)
		assert.Equal(t, []domain.TradeStatus{domain.TradeStatusClosed, domain.TradeStatusStopped}, filter.Statuses)
	})

	t.Run("time range", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/trades?since=2025-06-01T00:00:00Z&until=bad", nil)
		filter := parseTradeFilter(r)
		require.NotNil(t, filter.Since)
		assert.Equal(t, 2025, filter.Since.Year())
		assert.Nil(t, filter.Until)
	})
}

func TestTradeHandlerListTrades(t *testing.T) {
	svc := &fakeTradeService{trades: []domain.Trade{
		{ID: "a", Symbol: "XBT/USD", Status: domain.TradeStatusOpen},
	}}
	h := NewTradeHandler(svc, testLogger())

	rec := httptest.NewRecorder()
	h.ListTrades(rec, httptest.NewRequest(http.MethodGet, "/api/trades?symbol=XBT/USD&limit=10", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "XBT/USD", svc.filter.Symbol)
	assert.Equal(t, 10, svc.filter.Limit)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestTradeHandlerGetTrade(t *testing.T) {
	svc := &fakeTradeService{trades: []domain.Trade{{ID: "abc", Symbol: "XBT/USD"}}}
	h := NewTradeHandler(svc, testLogger())

	t.Run("found", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/trades/abc", nil)
		r.SetPathValue("id", "abc")
		rec := httptest.NewRecorder()
		h.GetTrade(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not found", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/trades/nope", nil)
		r.SetPathValue("id", "nope")
		rec := httptest.NewRecorder()
		h.GetTrade(rec, r)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.GetTrade(rec, httptest.NewRequest(http.MethodGet, "/api/trades/", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTradeHandlerResetTrades(t *testing.T) {
	svc := &fakeTradeService{}
	h := NewTradeHandler(svc, testLogger())

	t.Run("requires confirmation", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ResetTrades(rec, httptest.NewRequest(http.MethodPost, "/api/trades/reset", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, svc.resets)
	})

	t.Run("confirmed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ResetTrades(rec, httptest.NewRequest(http.MethodPost, "/api/trades/reset?confirm=true", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, svc.resets)
	})
}

func TestTradeHandlerExportLedger(t *testing.T) {
	t.Run("returns object key", func(t *testing.T) {
		svc := &fakeTradeService{exportKey: "exports/ledger/2025-06-01T12-00-00Z.json"}
		h := NewTradeHandler(svc, testLogger())
		rec := httptest.NewRecorder()
		h.ExportLedger(rec, httptest.NewRequest(http.MethodPost, "/api/trades/export", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "exports/ledger")
	})

	t.Run("service failure", func(t *testing.T) {
		svc := &fakeTradeService{err: errors.New("no archiver configured")}
		h := NewTradeHandler(svc, testLogger())
		rec := httptest.NewRecorder()
		h.ExportLedger(rec, httptest.NewRequest(http.MethodPost, "/api/trades/export", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

type fakeBotService struct {
	status  service.BotStatus
	enabled bool
	closed  int
	risk    engine.RiskConfig
	riskErr error
	allErr  error
}

func (f *fakeBotService) Status() service.BotStatus { return f.status }

func (f *fakeBotService) ToggleTrading(on bool) bool {
	f.enabled = on
	return on
}

func (f *fakeBotService) CloseAllPositions(context.Context) (int, error) {
	return f.closed, f.allErr
}

func (f *fakeBotService) GetRiskConfig() engine.RiskConfig { return f.risk }

func (f *fakeBotService) SetRiskConfig(cfg engine.RiskConfig) error {
	if f.riskErr != nil {
		return f.riskErr
	}
	f.risk = cfg
	return nil
}

func TestBotHandlerStatus(t *testing.T) {
	svc := &fakeBotService{status: service.BotStatus{
		Mode:           "trade",
		TradingEnabled: true,
		FeedState:      "CONNECTED",
		StartedAt:      time.Now().UTC(),
	}}
	h := NewBotHandler(svc, testLogger())

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/bot/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"feed_state":"CONNECTED"`)
	assert.Contains(t, rec.Body.String(), `"trading_enabled":true`)
}

func TestBotHandlerToggleTrading(t *testing.T) {
	svc := &fakeBotService{}
	h := NewBotHandler(svc, testLogger())

	t.Run("enables", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/bot/toggle", strings.NewReader(`{"enabled":true}`))
		h.ToggleTrading(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, svc.enabled)
	})

	t.Run("bad body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/bot/toggle", strings.NewReader(`{`))
		h.ToggleTrading(rec, r)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestBotHandlerCloseAll(t *testing.T) {
	t.Run("reports closed count", func(t *testing.T) {
		svc := &fakeBotService{closed: 3}
		h := NewBotHandler(svc, testLogger())
		rec := httptest.NewRecorder()
		h.CloseAll(rec, httptest.NewRequest(http.MethodPost, "/api/bot/close-all", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"closed":3`)
	})

	t.Run("partial failure still reports progress", func(t *testing.T) {
		svc := &fakeBotService{closed: 1, allErr: errors.New("no price for SOL/USD")}
		h := NewBotHandler(svc, testLogger())
		rec := httptest.NewRecorder()
		h.CloseAll(rec, httptest.NewRequest(http.MethodPost, "/api/bot/close-all", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), `"closed":1`)
	})
}

func TestBotHandlerUpdateConfig(t *testing.T) {
	base := engine.RiskConfig{
		TradeAmount:     10,
		MakerFeeRate:    0.0025,
		ProfitTargetPct: 0.02,
		StopLossPct:     0.015,
		Strategy:        "sma_cross",
	}

	t.Run("applies valid config", func(t *testing.T) {
		svc := &fakeBotService{risk: base}
		h := NewBotHandler(svc, testLogger())
		rec := httptest.NewRecorder()
		body := `{"trade_amount":20,"maker_fee_rate":0.0025,"profit_target_pct":0.03,"stop_loss_pct":0.01,"strategy":"band_touch"}`
		h.UpdateConfig(rec, httptest.NewRequest(http.MethodPut, "/api/bot/config", strings.NewReader(body)))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 20.0, svc.risk.TradeAmount)
		assert.Equal(t, "band_touch", svc.risk.Strategy)
	})

	t.Run("rejected config returns 400", func(t *testing.T) {
		svc := &fakeBotService{risk: base, riskErr: errors.New("engine: trade amount must be positive")}
		h := NewBotHandler(svc, testLogger())
		rec := httptest.NewRecorder()
		h.UpdateConfig(rec, httptest.NewRequest(http.MethodPut, "/api/bot/config", strings.NewReader(`{"trade_amount":0}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
