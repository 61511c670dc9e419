package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
)

func tickWindow(symbol string, prices ...float64) []domain.Tick {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ticks := make([]domain.Tick, len(prices))
	for i, p := range prices {
		ticks[i] = domain.Tick{
			Symbol:    symbol,
			Price:     p,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
	}
	return ticks
}

func TestSMA(t *testing.T) {
	t.Run("insufficient history is undefined", func(t *testing.T) {
		_, ok := SMA([]float64{100, 101}, 3)
		assert.False(t, ok)
	})

	t.Run("zero period is undefined", func(t *testing.T) {
		_, ok := SMA([]float64{100, 101, 102}, 0)
		assert.False(t, ok)
	})

	t.Run("exact window", func(t *testing.T) {
		v, ok := SMA([]float64{100, 102, 104}, 3)
		require.True(t, ok)
		assert.InDelta(t, 102.0, v, 1e-9)
	})

	t.Run("uses trailing values only", func(t *testing.T) {
		v, ok := SMA([]float64{1, 1, 1, 100, 102, 104}, 3)
		require.True(t, ok)
		assert.InDelta(t, 102.0, v, 1e-9)
	})
}

func TestBands(t *testing.T) {
	t.Run("insufficient history is undefined", func(t *testing.T) {
		_, _, _, ok := Bands([]float64{100}, 2, 2)
		assert.False(t, ok)
	})

	t.Run("symmetric around middle", func(t *testing.T) {
		mid, up, low, ok := Bands([]float64{98, 100, 102}, 3, 2)
		require.True(t, ok)
		assert.InDelta(t, 100.0, mid, 1e-9)
		assert.InDelta(t, up-mid, mid-low, 1e-9)
		assert.Greater(t, up, mid)
		assert.Less(t, low, mid)
	})

	t.Run("constant prices collapse the bands", func(t *testing.T) {
		mid, up, low, ok := Bands([]float64{100, 100, 100, 100}, 4, 2)
		require.True(t, ok)
		assert.InDelta(t, 100.0, mid, 1e-9)
		assert.InDelta(t, 100.0, up, 1e-9)
		assert.InDelta(t, 100.0, low, 1e-9)
	})
}

func TestCompute(t *testing.T) {
	cfg := Config{ShortPeriod: 3, LongPeriod: 5, BandPeriod: 5, BandStdDev: 2}

	t.Run("empty window", func(t *testing.T) {
		snap := Compute(nil, cfg)
		assert.Empty(t, snap.Symbol)
		assert.Nil(t, snap.ShortMA)
		assert.Nil(t, snap.LongMA)
		assert.Nil(t, snap.LowerBand)
	})

	t.Run("below every period all indicators undefined", func(t *testing.T) {
		snap := Compute(tickWindow("XBT/USD", 100, 101), cfg)
		assert.Equal(t, "XBT/USD", snap.Symbol)
		assert.Equal(t, 101.0, snap.LastPrice)
		assert.Equal(t, 100.0, snap.PrevPrice)
		assert.Nil(t, snap.ShortMA)
		assert.Nil(t, snap.LongMA)
		assert.Nil(t, snap.MiddleBand)
	})

	t.Run("short defined before long", func(t *testing.T) {
		snap := Compute(tickWindow("XBT/USD", 100, 101, 102, 103), cfg)
		require.NotNil(t, snap.ShortMA)
		assert.InDelta(t, 102.0, *snap.ShortMA, 1e-9)
		assert.Nil(t, snap.LongMA)
		assert.Nil(t, snap.UpperBand)
	})

	t.Run("full window defines everything", func(t *testing.T) {
		snap := Compute(tickWindow("ETH/USD", 100, 101, 102, 103, 104), cfg)
		require.NotNil(t, snap.ShortMA)
		require.NotNil(t, snap.LongMA)
		require.NotNil(t, snap.MiddleBand)
		require.NotNil(t, snap.UpperBand)
		require.NotNil(t, snap.LowerBand)
		assert.InDelta(t, 103.0, *snap.ShortMA, 1e-9)
		assert.InDelta(t, 102.0, *snap.LongMA, 1e-9)
		assert.InDelta(t, 102.0, *snap.MiddleBand, 1e-9)
		assert.Equal(t, 104.0, snap.LastPrice)
		assert.Equal(t, 103.0, snap.PrevPrice)
	})

	t.Run("evaluated as of the newest tick", func(t *testing.T) {
		window := tickWindow("XBT/USD", 100, 101, 102)
		snap := Compute(window, cfg)
		assert.Equal(t, window[len(window)-1].Timestamp, snap.EvaluatedAt)
	})

	t.Run("deterministic for identical windows", func(t *testing.T) {
		window := tickWindow("XBT/USD", 100, 99, 101, 103, 102, 104)
		a := Compute(window, cfg)
		b := Compute(window, cfg)
		require.NotNil(t, a.ShortMA)
		assert.Equal(t, a, b)
	})
}
