package domain

import "time"

// Tick is a single timestamped price observation for a pair. Ticks are
// immutable once stored and ordered by Timestamp per symbol. The venue
// timestamp is preferred; ReceivedAt is the local receipt time used as a
// fallback when the feed does not carry one.
type Tick struct {
	Symbol     string
	Price      float64
	Bid        float64
	Ask        float64
	Volume     float64
	Timestamp  time.Time
	ReceivedAt time.Time
}
