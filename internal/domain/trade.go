package domain

import "time"

// TradeStatus tracks the lifecycle of a paper trade.
type TradeStatus string

const (
	TradeStatusOpen    TradeStatus = "OPEN"
	TradeStatusClosed  TradeStatus = "CLOSED"  // take-profit or manual exit
	TradeStatusStopped TradeStatus = "STOPPED" // stop-loss exit
)

// Trade is one simulated long position. A trade is created OPEN by the
// engine, transitions exactly once to CLOSED or STOPPED, and is never
// mutated again. At most one OPEN trade exists per symbol; the ledger
// store enforces that invariant.
type Trade struct {
	ID              string
	Symbol          string
	Side            string // long-only: "buy"
	Quantity        float64
	EntryPrice      float64
	Amount          float64 // fixed USD notional committed at entry
	Fees            float64 // entry fee at open; entry+exit after close
	StopLossPrice   float64
	TakeProfitPrice float64
	Status          TradeStatus
	Strategy        string
	EntryTime       time.Time
	ExitPrice       *float64
	ExitTime        *time.Time
	ProfitLoss      *float64
}

// Terminal reports whether the trade has already exited.
func (t Trade) Terminal() bool {
	return t.Status == TradeStatusClosed || t.Status == TradeStatusStopped
}
