package models

import (
	"sort"
	"time"
)

// CashEventKind categorizes the origin of a cash ledger entry.
type CashEventKind string

const (
	CashExternalFlow     CashEventKind = "external_flow"
	CashDividend         CashEventKind = "dividend"
	CashInterest         CashEventKind = "interest"
	CashFee              CashEventKind = "fee"
	CashTradeSettlement  CashEventKind = "trade_settlement"
	CashSyntheticOpening CashEventKind = "synthetic_opening"
)

// validCashEventKinds lists all accepted cash event kinds.
var validCashEventKinds = map[CashEventKind]bool{
	CashExternalFlow:     true,
	CashDividend:         true,
	CashInterest:         true,
	CashFee:              true,
	CashTradeSettlement:  true,
	CashSyntheticOpening: true,
}

// ValidCashEventKind returns true if k is a valid cash event kind.
func ValidCashEventKind(k CashEventKind) bool {
	return validCashEventKinds[k]
}

// IsExternalKind returns true if the kind represents money crossing the
// portfolio boundary, which breaks a time-weighted return sub-period.
func IsExternalKind(k CashEventKind) bool {
	return k == CashExternalFlow
}

// IsIncomeKind returns true for investment income events.
func IsIncomeKind(k CashEventKind) bool {
	return k == CashDividend || k == CashInterest
}

// CashEvent is a single entry in the append-only cash ledger.
// Amount is signed: positive = cash in, negative = cash out.
type CashEvent struct {
	Date        time.Time     `json:"date"`
	Amount      float64       `json:"amount"`
	Currency    string        `json:"currency"`
	Kind        CashEventKind `json:"kind"`
	Symbol      string        `json:"symbol,omitempty"` // set for trade settlements, income, and synthetic openings
	Synthetic   bool          `json:"synthetic,omitempty"`
	Description string        `json:"description,omitempty"`
	Source      string        `json:"source,omitempty"`
	Account     string        `json:"account,omitempty"`
}

// CashLedger is the reconstructed chronological cash history for a run.
type CashLedger struct {
	Events []CashEvent `json:"events"`
}

// Sort orders events chronologically, keeping insertion order within a day.
func (l *CashLedger) Sort() {
	sort.SliceStable(l.Events, func(i, j int) bool {
		return l.Events[i].Date.Before(l.Events[j].Date)
	})
}

// BalanceAt returns the running cash balance at end of day on date.
func (l CashLedger) BalanceAt(date time.Time) float64 {
	var balance float64
	cutoff := date.AddDate(0, 0, 1)
	for _, e := range l.Events {
		if !e.Date.Before(cutoff) {
			break
		}
		balance += e.Amount
	}
	return balance
}

// ExternalFlow is a dated net external contribution (+) or withdrawal (−)
// used to anchor return sub-periods.
type ExternalFlow struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// ExternalFlows aggregates external-flow events into one net flow per day,
// sorted chronologically. Days that net to zero are dropped.
func (l CashLedger) ExternalFlows() []ExternalFlow {
	byDay := make(map[time.Time]float64)
	for _, e := range l.Events {
		if !IsExternalKind(e.Kind) {
			continue
		}
		day := e.Date.Truncate(24 * time.Hour)
		byDay[day] += e.Amount
	}

	flows := make([]ExternalFlow, 0, len(byDay))
	for day, amount := range byDay {
		if amount == 0 {
			continue
		}
		flows = append(flows, ExternalFlow{Date: day, Amount: amount})
	}
	sort.Slice(flows, func(i, j int) bool { return flows[i].Date.Before(flows[j].Date) })
	return flows
}

// IncomeTotal sums dividend and interest income.
func (l CashLedger) IncomeTotal() float64 {
	var total float64
	for _, e := range l.Events {
		if IsIncomeKind(e.Kind) {
			total += e.Amount
		}
	}
	return total
}
