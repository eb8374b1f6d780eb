package models

import "time"

// PositionSnapshot is a priced position at an evaluation date.
// Derived per date from the timeline, never stored.
type PositionSnapshot struct {
	Symbol      string    `json:"symbol"`
	Currency    string    `json:"currency"`
	Date        time.Time `json:"date"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	MarketValue float64   `json:"market_value"`
	CostBasis   float64   `json:"cost_basis"`
	Synthetic   bool      `json:"synthetic"`   // any part of the quantity is synthetic
	Unpriceable bool      `json:"unpriceable"` // no price obtainable at this date
}

// NAVPoint is the portfolio value at one evaluation date.
type NAVPoint struct {
	Date          time.Time `json:"date"`
	PositionValue float64   `json:"position_value"`
	CashValue     float64   `json:"cash_value"`
	Total         float64   `json:"total"`
	HoldingCount  int       `json:"holding_count"`
	Unpriceable   []string  `json:"unpriceable,omitempty"` // symbols held but not priceable on this date
}

// NAVSeries is a chronological sequence of NAV points.
type NAVSeries struct {
	Points []NAVPoint `json:"points"`
}

// At returns the NAV point on or immediately before date.
func (s NAVSeries) At(date time.Time) (NAVPoint, bool) {
	var best NAVPoint
	found := false
	for _, p := range s.Points {
		if p.Date.After(date) {
			break
		}
		best = p
		found = true
	}
	return best, found
}

// First returns the earliest point, if any.
func (s NAVSeries) First() (NAVPoint, bool) {
	if len(s.Points) == 0 {
		return NAVPoint{}, false
	}
	return s.Points[0], true
}

// Last returns the latest point, if any.
func (s NAVSeries) Last() (NAVPoint, bool) {
	if len(s.Points) == 0 {
		return NAVPoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Monthly keeps the last point per calendar month.
func (s NAVSeries) Monthly() []NAVPoint {
	if len(s.Points) == 0 {
		return nil
	}

	monthly := make([]NAVPoint, 0)
	for i, p := range s.Points {
		if i == len(s.Points)-1 || s.Points[i+1].Date.Month() != p.Date.Month() || s.Points[i+1].Date.Year() != p.Date.Year() {
			monthly = append(monthly, p)
		}
	}
	return monthly
}
