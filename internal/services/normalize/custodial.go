package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mkeating/perfrecon/internal/interfaces"
	"github.com/mkeating/perfrecon/internal/models"
)

// CustodialRecord is the shape of a custodial export row. Everything arrives
// as strings, with thousands separators and accounting-style negatives.
type CustodialRecord struct {
	TxnType   string `json:"txn_type"` // Purchase, Sale, Dividend, Interest, Fee
	Security  string `json:"security"`
	Currency  string `json:"currency"`
	Units     string `json:"units"`
	UnitPrice string `json:"unit_price"`
	NetAmount string `json:"net_amount"`
	Charges   string `json:"charges"`
	TradeDate string `json:"trade_date"`
	AccountNo string `json:"account_no"`
}

// CustodialAdapter normalizes custodial export records.
type CustodialAdapter struct{}

// NewCustodialAdapter creates the custodial adapter.
func NewCustodialAdapter() *CustodialAdapter {
	return &CustodialAdapter{}
}

// Provider returns the provider tag this adapter handles.
func (a *CustodialAdapter) Provider() string { return "custodial" }

// Normalize converts custodial rows into canonical transactions. Rows whose
// numeric fields fail exact parsing are dropped and counted, never guessed.
func (a *CustodialAdapter) Normalize(records json.RawMessage) (interfaces.NormalizeResult, error) {
	var raw []CustodialRecord
	if err := json.Unmarshal(records, &raw); err != nil {
		return interfaces.NormalizeResult{}, fmt.Errorf("malformed custodial payload: %w", err)
	}

	var out interfaces.NormalizeResult
	for _, r := range raw {
		symbol := normalizeSymbol(r.Security)
		date := parseDate(r.TradeDate)
		if symbol == "" || date.IsZero() {
			out.Dropped++
			continue
		}

		currency := strings.ToUpper(r.Currency)
		if currency == "" {
			currency = "USD"
		}

		units, unitsOK := parseMoney(r.Units)
		price, priceOK := parseMoney(r.UnitPrice)
		amount, _ := parseMoney(r.NetAmount)
		charges, _ := parseMoney(r.Charges)

		base := models.Transaction{
			Symbol:   symbol,
			Currency: currency,
			Quantity: units,
			Price:    price,
			Amount:   amount,
			Fees:     charges,
			Date:     date,
			Source:   a.Provider(),
			Account:  r.AccountNo,
		}

		switch strings.ToLower(strings.TrimSpace(r.TxnType)) {
		case "purchase":
			base.Side = models.SideBuy
		case "sale":
			base.Side = models.SideSell
		case "dividend":
			base.Side = models.SideDividend
		case "interest":
			base.Side = models.SideInterest
		case "fee":
			base.Side = models.SideFee
		default:
			out.Dropped++
			continue
		}

		if models.IsEntrySide(base.Side) || models.IsExitSide(base.Side) {
			if !unitsOK || !priceOK || units <= 0 {
				out.Dropped++
				continue
			}
		}

		out.Transactions = append(out.Transactions, base)
	}

	return out, nil
}
