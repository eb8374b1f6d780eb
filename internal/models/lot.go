package models

import "time"

// Direction indicates whether a lot is a long or short position.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// OpenLot is a still-open position fragment owned by the lot matcher.
// Quantity is reduced by successive partial consumption; all other fields
// are fixed at creation.
type OpenLot struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Currency    string    `json:"currency"`
	Direction   Direction `json:"direction"`
	Quantity    float64   `json:"quantity"` // remaining, always > 0 while open
	EntryPrice  float64   `json:"entry_price"`
	EntryDate   time.Time `json:"entry_date"`
	Fees        float64   `json:"fees"`
	IsSynthetic bool      `json:"is_synthetic"`
	Source      string    `json:"source"`
	Account     string    `json:"account"`
}

// CostBasis returns the remaining cost of the lot (quantity × entry price).
func (l OpenLot) CostBasis() float64 {
	return l.Quantity * l.EntryPrice
}

// ClosedTrade pairs a consumed lot fragment with the exit that consumed it.
type ClosedTrade struct {
	Symbol        string    `json:"symbol"`
	Currency      string    `json:"currency"`
	Direction     Direction `json:"direction"`
	Quantity      float64   `json:"quantity"`
	EntryPrice    float64   `json:"entry_price"`
	EntryDate     time.Time `json:"entry_date"`
	ExitPrice     float64   `json:"exit_price"`
	ExitDate      time.Time `json:"exit_date"`
	Fees          float64   `json:"fees"`
	RealizedPL    float64   `json:"realized_pl"`
	HoldingDays   int       `json:"holding_days"`
	FromSynthetic bool      `json:"from_synthetic"` // entry side came from a synthetic lot
	Source        string    `json:"source"`
	Account       string    `json:"account"`
}

// IncompleteTrade is an exit with no matching entry lot at closure time.
// Excluded from realized P&L until backfilled.
type IncompleteTrade struct {
	Symbol             string    `json:"symbol"`
	Currency           string    `json:"currency"`
	Side               TxSide    `json:"side"`
	Quantity           float64   `json:"quantity"`
	Price              float64   `json:"price"`
	Date               time.Time `json:"date"`
	UnresolvedNotional float64   `json:"unresolved_notional"`
	FirstTransaction   bool      `json:"first_transaction"` // exit was the first-ever transaction for the symbol
	Source             string    `json:"source"`
	Account            string    `json:"account"`
}

// LotLedger is the full output of the matching stage for one analysis run.
type LotLedger struct {
	OpenLots         []OpenLot         `json:"open_lots"`
	ClosedTrades     []ClosedTrade     `json:"closed_trades"`
	IncompleteTrades []IncompleteTrade `json:"incomplete_trades"`
	SuppressedShorts []string          `json:"suppressed_shorts"` // symbols where short inference was disabled by the delta-gap policy
}

// RealizedPL sums realized P&L over all closed trades.
func (l LotLedger) RealizedPL() float64 {
	var total float64
	for _, ct := range l.ClosedTrades {
		total += ct.RealizedPL
	}
	return total
}

// OpenLotsFor returns the open lots for a symbol, preserving FIFO order.
func (l LotLedger) OpenLotsFor(symbol string) []OpenLot {
	var out []OpenLot
	for _, lot := range l.OpenLots {
		if lot.Symbol == symbol {
			out = append(out, lot)
		}
	}
	return out
}

// SyntheticLots returns only the synthesized open lots.
func (l LotLedger) SyntheticLots() []OpenLot {
	var out []OpenLot
	for _, lot := range l.OpenLots {
		if lot.IsSynthetic {
			out = append(out, lot)
		}
	}
	return out
}
