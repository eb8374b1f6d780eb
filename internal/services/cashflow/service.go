// Package cashflow reconstructs the chronological cash ledger from
// normalized transactions, provider cash events, and synthetic lot openings.
package cashflow

import (
	"fmt"

	"github.com/mkeating/perfrecon/internal/common"
	"github.com/mkeating/perfrecon/internal/interfaces"
	"github.com/mkeating/perfrecon/internal/models"
)

// Service implements the cash-flow reconstructor.
type Service struct {
	logger *common.Logger
}

// NewService creates a new cash-flow service.
func NewService(logger *common.Logger) *Service {
	return &Service{logger: logger}
}

// Options configures one reconstruction pass.
type Options struct {
	ValuationCurrency string
	// NegligibleNotional suppresses synthetic openings below this value so
	// dust positions do not clutter diagnostics.
	NegligibleNotional float64
	// IncludeSynthetic controls whether synthetic openings are injected;
	// false yields the observed-only ledger.
	IncludeSynthetic bool
}

// Reconstruct replays all cash-relevant activity into one chronological
// ledger denominated in the valuation currency. No flow is silently
// dropped: every skipped synthetic opening is logged with its notional.
func (s *Service) Reconstruct(
	txs []models.Transaction,
	providerEvents []models.CashEvent,
	syntheticLots []models.OpenLot,
	holdings []models.Holding,
	prices interfaces.PriceSource,
	opts Options,
) models.CashLedger {
	var ledger models.CashLedger

	for _, ev := range providerEvents {
		converted := ev
		converted.Amount = s.toValuation(prices, ev.Amount, ev.Currency, opts.ValuationCurrency, ev)
		converted.Currency = opts.ValuationCurrency
		ledger.Events = append(ledger.Events, converted)
	}

	for _, tx := range txs {
		ev, ok := settlementEvent(tx)
		if !ok {
			continue
		}
		ev.Amount = s.toValuation(prices, ev.Amount, tx.Currency, opts.ValuationCurrency, ev)
		ev.Currency = opts.ValuationCurrency
		ledger.Events = append(ledger.Events, ev)
	}

	if opts.IncludeSynthetic {
		hints := priceHints(holdings)
		for _, lot := range syntheticLots {
			if !lot.IsSynthetic {
				continue
			}

			price := lot.EntryPrice
			if price <= 0 {
				// No back-solved price: derive a hint from reported market
				// value rather than skipping the event outright.
				price = hints[lot.Symbol]
			}
			notional := lot.Quantity * price

			if notional <= 0 {
				s.logger.Warn().
					Str("symbol", lot.Symbol).
					Float64("quantity", lot.Quantity).
					Msg("Synthetic opening has no derivable price; cash event omitted")
				continue
			}
			if notional < opts.NegligibleNotional {
				s.logger.Debug().
					Str("symbol", lot.Symbol).
					Float64("notional", notional).
					Msg("Synthetic opening below negligible notional; suppressed")
				continue
			}

			amount := s.toValuation(prices, notional, lot.Currency, opts.ValuationCurrency, models.CashEvent{Date: lot.EntryDate})

			// Capital deployment pair: the inferred position must be funded
			// by capital that entered before the window, otherwise the seed
			// would create portfolio value out of nothing.
			ledger.Events = append(ledger.Events,
				models.CashEvent{
					Date:        lot.EntryDate,
					Amount:      amount,
					Currency:    opts.ValuationCurrency,
					Kind:        models.CashExternalFlow,
					Symbol:      lot.Symbol,
					Synthetic:   true,
					Description: fmt.Sprintf("synthetic capital for %s seed lot", lot.Symbol),
					Source:      lot.Source,
					Account:     lot.Account,
				},
				models.CashEvent{
					Date:        lot.EntryDate,
					Amount:      -amount,
					Currency:    opts.ValuationCurrency,
					Kind:        models.CashSyntheticOpening,
					Symbol:      lot.Symbol,
					Synthetic:   true,
					Description: fmt.Sprintf("synthetic opening of %s", lot.Symbol),
					Source:      lot.Source,
					Account:     lot.Account,
				},
			)
		}
	}

	ledger.Sort()
	return ledger
}

// settlementEvent maps one transaction to its cash impact.
func settlementEvent(tx models.Transaction) (models.CashEvent, bool) {
	ev := models.CashEvent{
		Date:     tx.Date,
		Currency: tx.Currency,
		Symbol:   tx.Symbol,
		Source:   tx.Source,
		Account:  tx.Account,
	}

	switch tx.Side {
	case models.SideBuy, models.SideCover:
		ev.Kind = models.CashTradeSettlement
		ev.Amount = -(tx.Quantity*tx.Price + tx.Fees)
	case models.SideSell, models.SideShort:
		ev.Kind = models.CashTradeSettlement
		ev.Amount = tx.Quantity*tx.Price - tx.Fees
	case models.SideDividend:
		ev.Kind = models.CashDividend
		ev.Amount = tx.Amount
	case models.SideInterest:
		ev.Kind = models.CashInterest
		ev.Amount = tx.Amount
	case models.SideFee:
		ev.Kind = models.CashFee
		ev.Amount = -absFloat(tx.Amount)
	default:
		return models.CashEvent{}, false
	}

	return ev, true
}

// toValuation converts an amount into the valuation currency using the FX
// rate as of the event date. A missing rate leaves the amount unconverted
// with a warning; substituting zero would silently destroy the flow.
func (s *Service) toValuation(prices interfaces.PriceSource, amount float64, currency, valuation string, ev models.CashEvent) float64 {
	if currency == "" || currency == valuation || prices == nil {
		return amount
	}
	rate, ok := prices.FXRateAsOf(currency, ev.Date)
	if !ok {
		s.logger.Warn().
			Str("currency", currency).
			Str("kind", string(ev.Kind)).
			Time("date", ev.Date).
			Msg("No FX rate available; cash amount left unconverted")
		return amount
	}
	return amount * rate
}

func priceHints(holdings []models.Holding) map[string]float64 {
	hints := make(map[string]float64, len(holdings))
	for _, h := range holdings {
		if hint := h.PriceHint(); hint > 0 {
			hints[h.Symbol] = hint
		}
	}
	return hints
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
