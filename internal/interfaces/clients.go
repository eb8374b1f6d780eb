// Package interfaces defines service contracts for perfrecon
package interfaces

import (
	"context"
	"time"

	"github.com/mkeating/perfrecon/internal/models"
)

// MarketDataClient fetches historical prices and FX rates from the external
// market data provider. Calls have bounded timeouts; exhausted retries
// surface as errors, never as fabricated values.
type MarketDataClient interface {
	// GetEOD retrieves end-of-day bars for a symbol within [from, to].
	GetEOD(ctx context.Context, symbol string, from, to time.Time) ([]models.EODBar, error)

	// GetFX retrieves daily FX rates for a currency pair such as "AUDUSD"
	// within [from, to]. Rates are expressed as units of quote currency per
	// unit of base currency.
	GetFX(ctx context.Context, pair string, from, to time.Time) ([]models.EODBar, error)
}

// PriceSource is the pure in-memory lookup the core stages consume. The ok
// return is false when data is unavailable; callers flag unpriceable symbols
// instead of receiving a fabricated zero.
type PriceSource interface {
	// PriceAsOf returns the close on or immediately before date.
	PriceAsOf(symbol string, date time.Time) (float64, bool)

	// FXRateAsOf converts one unit of currency into the valuation currency
	// as of date. Returns (1, true) when currency is the valuation currency.
	FXRateAsOf(currency string, date time.Time) (float64, bool)

	// EarliestPrice returns the oldest obtainable close for a symbol, used
	// as the seed-price fallback when no cost basis is reported.
	EarliestPrice(symbol string) (float64, time.Time, bool)
}
