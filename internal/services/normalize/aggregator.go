package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mkeating/perfrecon/internal/interfaces"
	"github.com/mkeating/perfrecon/internal/models"
)

// AggregatorRecord is the shape of a read-only aggregator feed entry.
// Aggregators also surface cash movements (deposits/withdrawals) which the
// broker feeds omit, so this adapter additionally emits external-flow cash
// events.
type AggregatorRecord struct {
	Type     string  `json:"type"` // buy, sell, short, cover, dividend, drip, interest, fee, deposit, withdrawal
	Ticker   string  `json:"ticker"`
	Currency string  `json:"currency"`
	Shares   float64 `json:"shares"`
	UnitCost float64 `json:"unit_cost"`
	Total    float64 `json:"total"`
	Fee      float64 `json:"fee"`
	PostedAt string  `json:"posted_at"`
	Account  string  `json:"account"`
}

// AggregatorAdapter normalizes read-only aggregator records.
type AggregatorAdapter struct{}

// NewAggregatorAdapter creates the aggregator adapter.
func NewAggregatorAdapter() *AggregatorAdapter {
	return &AggregatorAdapter{}
}

// Provider returns the provider tag this adapter handles.
func (a *AggregatorAdapter) Provider() string { return "aggregator" }

// Normalize converts aggregator records into canonical transactions and
// external-flow cash events.
func (a *AggregatorAdapter) Normalize(records json.RawMessage) (interfaces.NormalizeResult, error) {
	var raw []AggregatorRecord
	if err := json.Unmarshal(records, &raw); err != nil {
		return interfaces.NormalizeResult{}, fmt.Errorf("malformed aggregator payload: %w", err)
	}

	var out interfaces.NormalizeResult
	for _, r := range raw {
		date := parseDate(r.PostedAt)
		if date.IsZero() {
			out.Dropped++
			continue
		}

		currency := strings.ToUpper(r.Currency)
		if currency == "" {
			currency = "USD"
		}

		kind := strings.ToLower(strings.TrimSpace(r.Type))

		// Cash movements carry no symbol and go straight to the ledger.
		switch kind {
		case "deposit":
			out.CashEvents = append(out.CashEvents, models.CashEvent{
				Date:        date,
				Amount:      r.Total,
				Currency:    currency,
				Kind:        models.CashExternalFlow,
				Description: "deposit",
				Source:      a.Provider(),
				Account:     r.Account,
			})
			continue
		case "withdrawal":
			out.CashEvents = append(out.CashEvents, models.CashEvent{
				Date:        date,
				Amount:      -r.Total,
				Currency:    currency,
				Kind:        models.CashExternalFlow,
				Description: "withdrawal",
				Source:      a.Provider(),
				Account:     r.Account,
			})
			continue
		}

		symbol := normalizeSymbol(r.Ticker)
		if symbol == "" {
			out.Dropped++
			continue
		}

		base := models.Transaction{
			Symbol:   symbol,
			Currency: currency,
			Quantity: r.Shares,
			Price:    r.UnitCost,
			Amount:   r.Total,
			Fees:     r.Fee,
			Date:     date,
			Source:   a.Provider(),
			Account:  r.Account,
		}

		switch kind {
		case "buy":
			base.Side = models.SideBuy
		case "sell":
			base.Side = models.SideSell
		case "short":
			base.Side = models.SideShort
		case "cover":
			base.Side = models.SideCover
		case "dividend":
			base.Side = models.SideDividend
		case "interest":
			base.Side = models.SideInterest
		case "fee":
			base.Side = models.SideFee
		case "drip":
			div := base
			div.Side = models.SideDividend
			div.Quantity = 0
			div.Price = 0
			out.Transactions = append(out.Transactions, div)

			buy := base
			buy.Side = models.SideBuy
			buy.Reinvested = true
			buy.Amount = 0
			if buy.Price == 0 && buy.Quantity > 0 {
				buy.Price = r.Total / buy.Quantity
			}
			out.Transactions = append(out.Transactions, buy)
			continue
		default:
			out.Dropped++
			continue
		}

		if (models.IsEntrySide(base.Side) || models.IsExitSide(base.Side)) && base.Quantity <= 0 {
			out.Dropped++
			continue
		}

		out.Transactions = append(out.Transactions, base)
	}

	return out, nil
}
