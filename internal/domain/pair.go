package domain

import "time"

// PairStatus is the venue-reported lifecycle state of a trading pair.
type PairStatus string

const (
	PairStatusOnline  PairStatus = "online"
	PairStatusOffline PairStatus = "offline"
)

// Pair is a tradeable USD-quoted pair as reported by the Kraken AssetPairs
// endpoint. Symbol is the REST identifier (e.g. "XXBTZUSD"), WSName the
// slash form used on the websocket feed (e.g. "XBT/USD").
type Pair struct {
	Symbol    string
	Altname   string
	WSName    string
	Base      string
	Quote     string // fixed to "USD"
	Status    PairStatus
	UpdatedAt time.Time
}

// Online reports whether the venue currently lists the pair as tradeable.
func (p Pair) Online() bool {
	return p.Status == PairStatusOnline
}
