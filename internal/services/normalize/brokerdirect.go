package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mkeating/perfrecon/internal/interfaces"
	"github.com/mkeating/perfrecon/internal/models"
)

// BrokerDirectRecord is the shape of a brokerage-direct feed entry. Numeric
// fields arrive as numbers; the feed is the cleanest of the three sources.
type BrokerDirectRecord struct {
	Action   string  `json:"action"` // BUY, SELL, SELL_SHORT, BUY_TO_COVER, DIVIDEND, REINVEST_DIVIDEND, INTEREST, FEE
	Symbol   string  `json:"symbol"`
	Currency string  `json:"currency"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Amount   float64 `json:"amount"`
	Fees     float64 `json:"fees"`
	Date     string  `json:"trade_date"`
	Account  string  `json:"account_id"`
}

// BrokerDirectAdapter normalizes brokerage-direct feed records.
type BrokerDirectAdapter struct{}

// NewBrokerDirectAdapter creates the broker-direct adapter.
func NewBrokerDirectAdapter() *BrokerDirectAdapter {
	return &BrokerDirectAdapter{}
}

// Provider returns the provider tag this adapter handles.
func (a *BrokerDirectAdapter) Provider() string { return "broker_direct" }

// Normalize converts broker-direct records into canonical transactions.
// Dividend reinvestments emit both the income event and the share purchase;
// omitting the purchase leg would orphan the reinvested shares downstream.
func (a *BrokerDirectAdapter) Normalize(records json.RawMessage) (interfaces.NormalizeResult, error) {
	var raw []BrokerDirectRecord
	if err := json.Unmarshal(records, &raw); err != nil {
		return interfaces.NormalizeResult{}, fmt.Errorf("malformed broker_direct payload: %w", err)
	}

	var out interfaces.NormalizeResult
	for _, r := range raw {
		symbol := normalizeSymbol(r.Symbol)
		date := parseDate(r.Date)
		if symbol == "" || date.IsZero() {
			out.Dropped++
			continue
		}

		currency := strings.ToUpper(r.Currency)
		if currency == "" {
			currency = "USD"
		}

		base := models.Transaction{
			Symbol:   symbol,
			Currency: currency,
			Quantity: r.Quantity,
			Price:    r.Price,
			Amount:   r.Amount,
			Fees:     r.Fees,
			Date:     date,
			Source:   a.Provider(),
			Account:  r.Account,
		}

		switch strings.ToUpper(strings.TrimSpace(r.Action)) {
		case "BUY":
			base.Side = models.SideBuy
		case "SELL":
			base.Side = models.SideSell
		case "SELL_SHORT":
			base.Side = models.SideShort
		case "BUY_TO_COVER":
			base.Side = models.SideCover
		case "DIVIDEND":
			base.Side = models.SideDividend
		case "INTEREST":
			base.Side = models.SideInterest
		case "FEE":
			base.Side = models.SideFee
		case "REINVEST_DIVIDEND":
			// Income leg plus a reinvested BUY so the shares enter the lot ledger.
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
				buy.Price = r.Amount / buy.Quantity
			}
			out.Transactions = append(out.Transactions, buy)
			continue
		default:
			out.Dropped++
			continue
		}

		if models.IsEntrySide(base.Side) || models.IsExitSide(base.Side) {
			if base.Quantity <= 0 {
				out.Dropped++
				continue
			}
		}

		out.Transactions = append(out.Transactions, base)
	}

	return out, nil
}
