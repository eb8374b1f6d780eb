package models

import "time"

// Holding is a currently-held position as reported by a provider, with the
// provider's aggregate cost basis. Input to the seed/backfill engine.
type Holding struct {
	Symbol      string  `json:"symbol"`
	Currency    string  `json:"currency"`
	Quantity    float64 `json:"quantity"`
	CostBasis   float64 `json:"cost_basis"`   // aggregate reported cost, 0 if unavailable
	MarketValue float64 `json:"market_value"` // reported value, used as a price hint fallback
	Source      string  `json:"source"`
	Account     string  `json:"account"`
}

// HasCostBasis reports whether the provider supplied a usable cost basis.
func (h Holding) HasCostBasis() bool {
	return h.CostBasis > 0
}

// PriceHint derives a per-share price from reported market value when no
// other price is obtainable.
func (h Holding) PriceHint() float64 {
	if h.Quantity <= 0 || h.MarketValue <= 0 {
		return 0
	}
	return h.MarketValue / h.Quantity
}

// ManualBackfill is an operator-supplied correction for a synthetic lot:
// a known entry price and date for a symbol whose history is missing.
type ManualBackfill struct {
	Symbol     string    `json:"symbol"`
	EntryPrice float64   `json:"entry_price"`
	EntryDate  time.Time `json:"entry_date"`
	Note       string    `json:"note,omitempty"`
}

// EODBar represents a single day's price data.
type EODBar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adjusted_close"`
	Volume   int64     `json:"volume"`
}
