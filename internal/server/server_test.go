package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
	"github.com/burhankhanlodhy/scalper-bot/internal/engine"
	"github.com/burhankhanlodhy/scalper-bot/internal/server/handler"
	"github.com/burhankhanlodhy/scalper-bot/internal/service"
	"github.com/burhankhanlodhy/scalper-bot/internal/store/memory"
)

type stubServices struct{}

func (stubServices) GetPortfolio(context.Context) (domain.PortfolioSnapshot, error) {
	return domain.PortfolioSnapshot{StartingBalance: 100, TotalBalance: 100}, nil
}

func (stubServices) ListTrades(context.Context, domain.TradeFilter) ([]domain.Trade, error) {
	return nil, nil
}

func (stubServices) ListOpenTrades(context.Context) ([]domain.Trade, error) { return nil, nil }

func (stubServices) GetTrade(context.Context, string) (domain.Trade, error) {
	return domain.Trade{}, domain.ErrNotFound
}

func (stubServices) ResetTrades(context.Context) error { return nil }

func (stubServices) ExportLedger(context.Context) (string, error) { return "key", nil }

func (stubServices) ListPairs() []domain.Pair { return nil }

func (stubServices) GetChartData(context.Context, string, int) (service.ChartData, error) {
	return service.ChartData{}, domain.ErrNotFound
}

func (stubServices) Status() service.BotStatus { return service.BotStatus{Mode: "sim"} }

func (stubServices) ToggleTrading(on bool) bool { return on }

func (stubServices) CloseAllPositions(context.Context) (int, error) { return 0, nil }

func (stubServices) GetRiskConfig() engine.RiskConfig { return engine.RiskConfig{} }

func (stubServices) SetRiskConfig(engine.RiskConfig) error { return nil }

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var stub stubServices
	handlers := Handlers{
		Health:    handler.NewHealthHandler(logger),
		Portfolio: handler.NewPortfolioHandler(stub, logger),
		Trades:    handler.NewTradeHandler(stub, logger),
		Pairs:     handler.NewPairHandler(stub, logger),
		Chart:     handler.NewChartHandler(stub, logger),
		Bot:       handler.NewBotHandler(stub, logger),
	}

	srv := New(cfg, handlers, nil, memory.NewRateLimiter(), logger)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestServerRoutes(t *testing.T) {
	ts := newTestServer(t, Config{})

	get := func(path string) *http.Response {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	assert.Equal(t, http.StatusOK, get("/api/health").StatusCode)
	assert.Equal(t, http.StatusOK, get("/metrics").StatusCode)
	assert.Equal(t, http.StatusOK, get("/api/portfolio").StatusCode)
	assert.Equal(t, http.StatusOK, get("/api/trades").StatusCode)
	assert.Equal(t, http.StatusOK, get("/api/trades/open").StatusCode)
	assert.Equal(t, http.StatusNotFound, get("/api/trades/unknown").StatusCode)
	assert.Equal(t, http.StatusOK, get("/api/pairs").StatusCode)
	assert.Equal(t, http.StatusNotFound, get("/api/chart/NOPE").StatusCode)
	assert.Equal(t, http.StatusOK, get("/api/bot/status").StatusCode)
	assert.Equal(t, http.StatusOK, get("/api/bot/config").StatusCode)

	// Method mismatches are rejected by the router.
	resp, err := http.Get(ts.URL + "/api/bot/toggle")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServerAuthGatesAPIButNotHealth(t *testing.T) {
	ts := newTestServer(t, Config{APIKey: "secret"})

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/portfolio")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/portfolio", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerRateLimitAppliesWhenConfigured(t *testing.T) {
	ts := newTestServer(t, Config{RateLimit: 2, RateWindow: time.Minute})

	var last int
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/api/health")
		require.NoError(t, err)
		resp.Body.Close()
		last = resp.StatusCode
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestServerShutdown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var stub stubServices
	handlers := Handlers{
		Health:    handler.NewHealthHandler(logger),
		Portfolio: handler.NewPortfolioHandler(stub, logger),
		Trades:    handler.NewTradeHandler(stub, logger),
		Pairs:     handler.NewPairHandler(stub, logger),
		Chart:     handler.NewChartHandler(stub, logger),
		Bot:       handler.NewBotHandler(stub, logger),
	}
	srv := New(Config{Addr: "127.0.0.1:0"}, handlers, nil, nil, logger)

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-done)
}
