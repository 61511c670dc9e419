// Package strategy defines the pluggable entry-signal predicates evaluated
// by the trade engine.
package strategy

import "github.com/burhankhanlodhy/scalper-bot/internal/domain"

// Signal is a pure predicate over the latest indicator snapshot and tick.
// It decides entries only; exits are fixed risk rules owned by the engine.
// Implementations must not keep mutable state between evaluations.
type Signal interface {
	Name() string
	// ShouldEnter reports whether a long entry should be opened. Undefined
	// indicators (nil fields on the snapshot) must yield no signal.
	ShouldEnter(snap domain.IndicatorSnapshot, tick domain.Tick) bool
}
