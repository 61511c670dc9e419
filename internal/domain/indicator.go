package domain

import "time"

// IndicatorSnapshot holds rolling signals derived from a bounded tick
// window. Pointer fields are nil when the window is shorter than the
// configured period ("undefined"); callers must treat nil as no signal,
// never as zero. Snapshots are recomputed on demand and never persisted
// as a source of truth.
type IndicatorSnapshot struct {
	Symbol      string
	ShortMA     *float64
	LongMA      *float64
	MiddleBand  *float64
	UpperBand   *float64
	LowerBand   *float64
	LastPrice   float64
	PrevPrice   float64
	EvaluatedAt time.Time
}
