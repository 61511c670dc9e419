// Package indicator computes rolling technical signals from bounded tick
// windows. All functions are pure: identical input windows always yield
// identical output.
package indicator

import (
	"gonum.org/v1/gonum/stat"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
)

// Config holds the indicator periods.
type Config struct {
	ShortPeriod int
	LongPeriod  int
	BandPeriod  int
	BandStdDev  float64 // band width in standard deviations, usually 2
}

// SMA returns the simple moving average of the trailing period values.
// It returns (0, false) when fewer than period values exist: insufficient
// history yields "undefined", never a value computed from partial data.
func SMA(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	window := prices[len(prices)-period:]
	return stat.Mean(window, nil), true
}

// Bands returns Bollinger-style bands over the trailing period values:
// middle is the SMA, upper/lower are middle ± k standard deviations
// (population variant, matching the bounded-window semantics). ok is false
// when the window is shorter than the period.
func Bands(prices []float64, period int, k float64) (middle, upper, lower float64, ok bool) {
	if period <= 1 || len(prices) < period {
		return 0, 0, 0, false
	}
	window := prices[len(prices)-period:]
	middle = stat.Mean(window, nil)
	sd := stat.PopStdDev(window, nil)
	upper = middle + k*sd
	lower = middle - k*sd
	return middle, upper, lower, true
}

// Compute derives an IndicatorSnapshot from the tick window. Ticks must be
// ordered oldest to newest; the snapshot is evaluated as of the newest
// tick's timestamp and never looks ahead of its window.
func Compute(ticks []domain.Tick, cfg Config) domain.IndicatorSnapshot {
	if len(ticks) == 0 {
		return domain.IndicatorSnapshot{}
	}

	snap := domain.IndicatorSnapshot{EvaluatedAt: ticks[len(ticks)-1].Timestamp}
	snap.Symbol = ticks[len(ticks)-1].Symbol
	snap.LastPrice = ticks[len(ticks)-1].Price
	if len(ticks) > 1 {
		snap.PrevPrice = ticks[len(ticks)-2].Price
	}

	prices := make([]float64, len(ticks))
	for i, t := range ticks {
		prices[i] = t.Price
	}

	if v, ok := SMA(prices, cfg.ShortPeriod); ok {
		snap.ShortMA = &v
	}
	if v, ok := SMA(prices, cfg.LongPeriod); ok {
		snap.LongMA = &v
	}
	if mid, up, low, ok := Bands(prices, cfg.BandPeriod, cfg.BandStdDev); ok {
		snap.MiddleBand = &mid
		snap.UpperBand = &up
		snap.LowerBand = &low
	}
	return snap
}
