package strategy

import "github.com/burhankhanlodhy/scalper-bot/internal/domain"

// BandTouch signals an entry when price trades at or below the lower
// volatility band, a mean-reversion rule.
type BandTouch struct{}

// NewBandTouch creates the band-touch signal.
func NewBandTouch() BandTouch { return BandTouch{} }

// Name returns the registry identifier.
func (BandTouch) Name() string { return "band_touch" }

// ShouldEnter implements Signal.
func (BandTouch) ShouldEnter(snap domain.IndicatorSnapshot, tick domain.Tick) bool {
	if snap.LowerBand == nil {
		return false
	}
	return tick.Price <= *snap.LowerBand
}
