// Package timeline builds per-symbol time series of held quantity and cost
// basis by replaying observed and synthetic lots chronologically.
package timeline

import (
	"sort"
	"time"

	"github.com/mkeating/perfrecon/internal/models"
)

// lotEvent is one quantity/cost step in a symbol's history.
type lotEvent struct {
	date      time.Time
	qtyDelta  float64
	costDelta float64
	synthetic bool
}

// symbolTimeline is the replayed step function for one symbol.
type symbolTimeline struct {
	Symbol    string
	Currency  string
	events    []lotEvent
	inception time.Time // earliest explainable date for this symbol
	synthetic bool      // any synthetic quantity contributes
}

// Position is the held state of one symbol at an evaluation date.
type Position struct {
	Symbol    string
	Currency  string
	Quantity  float64
	CostBasis float64
	Synthetic bool
}

// Timeline maps (symbol, date) → (quantity, cost basis).
type Timeline struct {
	symbols map[string]*symbolTimeline
	order   []string
}

// Build replays a lot ledger into a timeline. When includeSynthetic is
// false, synthetic lots and the closed trades they produced are excluded,
// yielding the observed-only view.
//
// Each symbol's inception is its own earliest lot entry date; there is no
// global inception shared across symbols.
func Build(ledger models.LotLedger, includeSynthetic bool) *Timeline {
	tl := &Timeline{symbols: make(map[string]*symbolTimeline)}

	add := func(symbol, currency string, ev lotEvent) {
		st, ok := tl.symbols[symbol]
		if !ok {
			st = &symbolTimeline{Symbol: symbol, Currency: currency}
			tl.symbols[symbol] = st
			tl.order = append(tl.order, symbol)
		}
		st.events = append(st.events, ev)
		if ev.synthetic {
			st.synthetic = true
		}
		if st.inception.IsZero() || ev.date.Before(st.inception) {
			st.inception = ev.date
		}
	}

	sign := func(d models.Direction) float64 {
		if d == models.DirectionShort {
			return -1
		}
		return 1
	}

	for _, lot := range ledger.OpenLots {
		if lot.IsSynthetic && !includeSynthetic {
			continue
		}
		add(lot.Symbol, lot.Currency, lotEvent{
			date:      lot.EntryDate,
			qtyDelta:  sign(lot.Direction) * lot.Quantity,
			costDelta: sign(lot.Direction) * (lot.CostBasis() + lot.Fees),
			synthetic: lot.IsSynthetic,
		})
	}

	for _, ct := range ledger.ClosedTrades {
		if ct.FromSynthetic && !includeSynthetic {
			continue
		}
		entryCost := sign(ct.Direction) * ct.Quantity * ct.EntryPrice
		add(ct.Symbol, ct.Currency, lotEvent{
			date:      ct.EntryDate,
			qtyDelta:  sign(ct.Direction) * ct.Quantity,
			costDelta: entryCost,
			synthetic: ct.FromSynthetic,
		})
		add(ct.Symbol, ct.Currency, lotEvent{
			date:      ct.ExitDate,
			qtyDelta:  -sign(ct.Direction) * ct.Quantity,
			costDelta: -entryCost,
			synthetic: ct.FromSynthetic,
		})
	}

	for _, st := range tl.symbols {
		sort.SliceStable(st.events, func(i, j int) bool {
			return st.events[i].date.Before(st.events[j].date)
		})
	}
	sort.Strings(tl.order)

	return tl
}

// At returns the position for symbol at end of day on date.
func (tl *Timeline) At(symbol string, date time.Time) (Position, bool) {
	st, ok := tl.symbols[symbol]
	if !ok {
		return Position{}, false
	}

	cutoff := date.AddDate(0, 0, 1)
	pos := Position{Symbol: st.Symbol, Currency: st.Currency, Synthetic: st.synthetic}
	for _, ev := range st.events {
		if !ev.date.Before(cutoff) {
			break
		}
		pos.Quantity += ev.qtyDelta
		pos.CostBasis += ev.costDelta
	}
	if pos.Quantity > -1e-9 && pos.Quantity < 1e-9 {
		return Position{}, false
	}
	return pos, true
}

// Symbols returns all symbols in deterministic order.
func (tl *Timeline) Symbols() []string {
	return tl.order
}

// Inception returns the symbol's earliest explainable date.
func (tl *Timeline) Inception(symbol string) (time.Time, bool) {
	st, ok := tl.symbols[symbol]
	if !ok {
		return time.Time{}, false
	}
	return st.inception, true
}

// EarliestInception returns the earliest inception across all symbols.
func (tl *Timeline) EarliestInception() (time.Time, bool) {
	var earliest time.Time
	for _, st := range tl.symbols {
		if earliest.IsZero() || st.inception.Before(earliest) {
			earliest = st.inception
		}
	}
	return earliest, !earliest.IsZero()
}

// Positions returns all non-flat positions at a date, in symbol order.
func (tl *Timeline) Positions(date time.Time) []Position {
	var out []Position
	for _, symbol := range tl.order {
		if pos, ok := tl.At(symbol, date); ok {
			out = append(out, pos)
		}
	}
	return out
}
