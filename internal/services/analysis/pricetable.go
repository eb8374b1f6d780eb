package analysis

import (
	"sort"
	"time"

	"github.com/mkeating/perfrecon/internal/interfaces"
	"github.com/mkeating/perfrecon/internal/models"
)

// PriceTable is the in-memory, immutable price/FX surface the pipeline
// stages consume. All external fetching happens up front; lookups are pure
// so the recompute stays deterministic.
type PriceTable struct {
	valuation string
	bars      map[string][]models.EODBar // symbol → bars ascending
	fx        map[string][]models.EODBar // currency → rate bars ascending
}

var _ interfaces.PriceSource = (*PriceTable)(nil)

// NewPriceTable builds a table for the given valuation currency.
func NewPriceTable(valuation string) *PriceTable {
	return &PriceTable{
		valuation: valuation,
		bars:      make(map[string][]models.EODBar),
		fx:        make(map[string][]models.EODBar),
	}
}

// SetBars installs a symbol's bar history, sorting ascending by date.
func (p *PriceTable) SetBars(symbol string, bars []models.EODBar) {
	sorted := make([]models.EODBar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	p.bars[symbol] = sorted
}

// SetFXBars installs daily conversion rates from currency into the
// valuation currency.
func (p *PriceTable) SetFXBars(currency string, bars []models.EODBar) {
	sorted := make([]models.EODBar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	p.fx[currency] = sorted
}

// PriceAsOf returns the close on or immediately before date.
func (p *PriceTable) PriceAsOf(symbol string, date time.Time) (float64, bool) {
	return closeAsOf(p.bars[symbol], date)
}

// FXRateAsOf converts one unit of currency into the valuation currency.
func (p *PriceTable) FXRateAsOf(currency string, date time.Time) (float64, bool) {
	if currency == "" || currency == p.valuation {
		return 1, true
	}
	return closeAsOf(p.fx[currency], date)
}

// EarliestPrice returns the oldest close on record for a symbol.
func (p *PriceTable) EarliestPrice(symbol string) (float64, time.Time, bool) {
	bars := p.bars[symbol]
	for _, b := range bars {
		if b.Close > 0 {
			return b.Close, b.Date, true
		}
	}
	return 0, time.Time{}, false
}

// closeAsOf binary-searches for the last bar dated on or before target.
func closeAsOf(bars []models.EODBar, target time.Time) (float64, bool) {
	if len(bars) == 0 {
		return 0, false
	}
	// First bar strictly after target.
	i := sort.Search(len(bars), func(i int) bool { return bars[i].Date.After(target) })
	if i == 0 {
		return 0, false
	}
	close := bars[i-1].Close
	if close <= 0 {
		return 0, false
	}
	return close, true
}
