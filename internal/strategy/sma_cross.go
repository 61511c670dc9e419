package strategy

import "github.com/burhankhanlodhy/scalper-bot/internal/domain"

// SMACross signals an entry when the short moving average sits above the
// long moving average while the last tick is still rising. This is the
// classic crossover rule the bot shipped with.
type SMACross struct{}

// NewSMACross creates the crossover signal.
func NewSMACross() SMACross { return SMACross{} }

// Name returns the registry identifier.
func (SMACross) Name() string { return "sma_cross" }

// ShouldEnter implements Signal.
func (SMACross) ShouldEnter(snap domain.IndicatorSnapshot, tick domain.Tick) bool {
	if snap.ShortMA == nil || snap.LongMA == nil {
		return false
	}
	if snap.PrevPrice <= 0 {
		return false
	}
	return *snap.ShortMA > *snap.LongMA && tick.Price > snap.PrevPrice
}
