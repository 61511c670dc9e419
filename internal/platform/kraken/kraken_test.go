package kraken

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
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWSClient() *WSClient {
	return NewWSClient("wss://ws.kraken.com", 20, 30*time.Second, testLogger())
}

func TestParseMessage(t *testing.T) {
	w := newTestWSClient()

	t.Run("heartbeat is skipped", func(t *testing.T) {
		_, ok, err := w.parseMessage([]byte(`{"event":"heartbeat"}`))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("systemStatus is skipped", func(t *testing.T) {
		_, ok, err := w.parseMessage([]byte(`{"event":"systemStatus","status":"online","version":"1.9.0"}`))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("subscription error is skipped not fatal", func(t *testing.T) {
		raw := `{"event":"subscriptionStatus","status":"error","pair":"NOPE/USD","errorMessage":"Currency pair not supported"}`
		_, ok, err := w.parseMessage([]byte(raw))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ticker frame yields a tick", func(t *testing.T) {
		raw := `[340,{"a":["50250.10000",1,"1.000"],"b":["50249.90000",2,"2.000"],"c":["50250.00000","0.005"],"v":["120.5","3456.78"]},"ticker","XBT/USD"]`
		tick, ok, err := w.parseMessage([]byte(raw))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "XBT/USD", tick.Symbol)
		assert.Equal(t, 50250.0, tick.Price)
		assert.Equal(t, 50249.9, tick.Bid)
		assert.Equal(t, 50250.1, tick.Ask)
		assert.Equal(t, 3456.78, tick.Volume)
		assert.False(t, tick.Timestamp.IsZero())
		assert.False(t, tick.ReceivedAt.IsZero())
	})

	t.Run("missing bid and ask still yields a tick", func(t *testing.T) {
		raw := `[340,{"c":["100.0","0.005"],"v":["1.0"]},"ticker","ETH/USD"]`
		tick, ok, err := w.parseMessage([]byte(raw))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 100.0, tick.Price)
		assert.Zero(t, tick.Bid)
		assert.Zero(t, tick.Ask)
		assert.Equal(t, 1.0, tick.Volume)
	})

	t.Run("missing close price is a parse error", func(t *testing.T) {
		raw := `[340,{"b":["100.0",1,"1.0"]},"ticker","ETH/USD"]`
		_, _, err := w.parseMessage([]byte(raw))
		assert.ErrorIs(t, err, domain.ErrParse)
	})

	t.Run("non-ticker channel is skipped", func(t *testing.T) {
		raw := `[42,[["50250.0","0.1","1700000000.123"]],"trade","XBT/USD"]`
		_, ok, err := w.parseMessage([]byte(raw))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("short frame is a parse error", func(t *testing.T) {
		_, _, err := w.parseMessage([]byte(`[340,{}]`))
		assert.ErrorIs(t, err, domain.ErrParse)
	})

	t.Run("empty frame is a parse error", func(t *testing.T) {
		_, _, err := w.parseMessage(nil)
		assert.ErrorIs(t, err, domain.ErrParse)
	})

	t.Run("garbage is a parse error", func(t *testing.T) {
		_, _, err := w.parseMessage([]byte(`not json`))
		assert.ErrorIs(t, err, domain.ErrParse)
	})
}

func TestNormalizeAsset(t *testing.T) {
	assert.Equal(t, "XBT", normalizeAsset("XXBT"))
	assert.Equal(t, "USD", normalizeAsset("ZUSD"))
	assert.Equal(t, "SOL", normalizeAsset("SOL"))
	assert.Equal(t, "XXETH", normalizeAsset("XXETH")) // 5 chars, untouched
}

func TestUSDPairs(t *testing.T) {
	t.Run("filters to USD quotes and maps fields", func(t *testing.T) {
		body := `{
			"error": [],
			"result": {
				"XXBTZUSD": {"altname":"XBTUSD","wsname":"XBT/USD","base":"XXBT","quote":"ZUSD","status":"online"},
				"SOLUSD":   {"altname":"SOLUSD","wsname":"SOL/USD","base":"SOL","quote":"USD","status":"cancel_only"},
				"XXBTZEUR": {"altname":"XBTEUR","wsname":"XBT/EUR","base":"XXBT","quote":"ZEUR","status":"online"},
				"NOWSUSD":  {"altname":"NOWSUSD","wsname":"","base":"NOWS","quote":"USD","status":"online"}
			}
		}`
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/0/public/AssetPairs", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		}))
		defer srv.Close()

		pairs, err := NewClient(srv.URL).USDPairs(context.Background())
		require.NoError(t, err)
		require.Len(t, pairs, 2)

		// Sorted by symbol: SOLUSD before XXBTZUSD.
		assert.Equal(t, "SOLUSD", pairs[0].Symbol)
		assert.Equal(t, domain.PairStatusOffline, pairs[0].Status)

		xbt := pairs[1]
		assert.Equal(t, "XXBTZUSD", xbt.Symbol)
		assert.Equal(t, "XBT/USD", xbt.WSName)
		assert.Equal(t, "XBT", xbt.Base)
		assert.Equal(t, "USD", xbt.Quote)
		assert.Equal(t, domain.PairStatusOnline, xbt.Status)
		assert.False(t, xbt.UpdatedAt.IsZero())
	})

	t.Run("api error payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":["EService:Unavailable"],"result":{}}`))
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).USDPairs(context.Background())
		assert.ErrorContains(t, err, "EService:Unavailable")
	})

	t.Run("http error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).USDPairs(context.Background())
		assert.ErrorContains(t, err, "unexpected status")
	})
}
