package domain

import "time"

// PortfolioSnapshot is a derived aggregate recomputed from the trade
// ledger on every read. It is never mutated independently, so it cannot
// drift from the trades that back it.
type PortfolioSnapshot struct {
	StartingBalance  float64
	TotalBalance     float64 // starting balance + realized P&L
	AvailableBalance float64 // total balance minus notional+fees locked in OPEN trades
	TotalEquity      float64 // available balance + entry value of OPEN positions
	TotalProfitLoss  float64
	TotalTrades      int
	OpenTrades       int
	WinningTrades    int
	LosingTrades     int
	WinRate          float64 // percentage over closed trades
	GeneratedAt      time.Time
}
