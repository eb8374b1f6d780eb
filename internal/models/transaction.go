// Package models defines the domain types shared across the reconstruction pipeline.
package models

import (
	"sort"
	"time"
)

// TxSide categorizes the economic effect of a transaction.
type TxSide string

const (
	SideBuy      TxSide = "buy"
	SideSell     TxSide = "sell"
	SideShort    TxSide = "short"
	SideCover    TxSide = "cover"
	SideDividend TxSide = "dividend"
	SideInterest TxSide = "interest"
	SideFee      TxSide = "fee"
)

// validTxSides lists all accepted transaction sides.
var validTxSides = map[TxSide]bool{
	SideBuy:      true,
	SideSell:     true,
	SideShort:    true,
	SideCover:    true,
	SideDividend: true,
	SideInterest: true,
	SideFee:      true,
}

// ValidTxSide returns true if s is a valid transaction side.
func ValidTxSide(s TxSide) bool {
	return validTxSides[s]
}

// IsEntrySide returns true if the side opens or adds to a position.
func IsEntrySide(s TxSide) bool {
	return s == SideBuy || s == SideShort
}

// IsExitSide returns true if the side closes or reduces a position.
func IsExitSide(s TxSide) bool {
	return s == SideSell || s == SideCover
}

// Transaction is a provider record normalized into the canonical shape.
// Immutable once created by the normalizer.
type Transaction struct {
	ID       string    `json:"id"`
	Symbol   string    `json:"symbol"`
	Currency string    `json:"currency"`
	Side     TxSide    `json:"side"`
	Quantity float64   `json:"quantity"` // always positive; Side carries direction
	Price    float64   `json:"price"`
	Amount   float64   `json:"amount"` // gross amount for income sides (dividend/interest/fee)
	Fees     float64   `json:"fees"`
	Date     time.Time `json:"date"`
	Source   string    `json:"source"`  // originating provider tag
	Account  string    `json:"account"` // provider account identifier

	// Reinvested marks the synthetic BUY leg generated from a
	// dividend-reinvestment record.
	Reinvested bool `json:"reinvested,omitempty"`
}

// GrossValue returns quantity × price for trade sides, or Amount for income sides.
func (t Transaction) GrossValue() float64 {
	switch t.Side {
	case SideDividend, SideInterest, SideFee:
		return t.Amount
	default:
		return t.Quantity * t.Price
	}
}

// SortTransactions orders transactions chronologically, breaking date ties by
// symbol, then income before trades, then entry before exit. A reinvested
// dividend replays as cash received, then the purchase it funds; same-day
// buy/sell pairs replay entry-first.
func SortTransactions(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		if txs[i].Symbol != txs[j].Symbol {
			return txs[i].Symbol < txs[j].Symbol
		}
		return sideRank(txs[i].Side) < sideRank(txs[j].Side)
	})
}

func sideRank(s TxSide) int {
	switch s {
	case SideBuy, SideShort:
		return 1
	case SideSell, SideCover:
		return 2
	default:
		return 0
	}
}
