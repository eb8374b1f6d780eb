package lots

import (
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mkeating/perfrecon/internal/interfaces"
	"github.com/mkeating/perfrecon/internal/models"
)

// priceEpsilon marks a back-solved seed price as degenerate. A near-zero
// price means the uncovered-quantity gap was over-counted (typically a
// position fully closed and rebought inside the window), not that the
// shares were free.
const priceEpsilon = 1e-4

// SeedResult is the output of the backfill pass.
type SeedResult struct {
	Lots        []models.OpenLot
	Unpriceable []string // symbols seeded without any defensible price
}

// Seed synthesizes opening lots for holdings whose quantity exceeds what the
// observed open lots explain. Seed lots are dated one day before the
// reconstruction window so every in-window evaluation sees them.
//
// Price resolution order: operator-supplied manual backfill, back-solved
// reported cost basis, earliest obtainable historical price, then an
// unpriceable flag. A fabricated price is never assigned.
func (s *Service) Seed(
	ledger models.LotLedger,
	holdings []models.Holding,
	backfills []models.ManualBackfill,
	prices interfaces.PriceSource,
	windowStart time.Time,
) SeedResult {
	manual := make(map[string]models.ManualBackfill, len(backfills))
	for _, b := range backfills {
		manual[b.Symbol] = b
	}

	// Aggregate holdings per symbol-currency; providers may split one
	// position across accounts.
	type holdingAgg struct {
		models.Holding
		hasBasis bool
	}
	bySymbol := make(map[symbolKey]*holdingAgg)
	keys := make([]symbolKey, 0)
	for _, h := range holdings {
		key := symbolKey{Symbol: h.Symbol, Currency: h.Currency}
		agg, ok := bySymbol[key]
		if !ok {
			agg = &holdingAgg{Holding: models.Holding{
				Symbol: h.Symbol, Currency: h.Currency, Source: h.Source, Account: h.Account,
			}}
			bySymbol[key] = agg
			keys = append(keys, key)
		}
		agg.Quantity += h.Quantity
		agg.MarketValue += h.MarketValue
		if h.HasCostBasis() {
			agg.CostBasis += h.CostBasis
			agg.hasBasis = true
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Symbol != keys[j].Symbol {
			return keys[i].Symbol < keys[j].Symbol
		}
		return keys[i].Currency < keys[j].Currency
	})

	seedDate := windowStart.AddDate(0, 0, -1)
	var result SeedResult

	for _, key := range keys {
		h := bySymbol[key]

		var coveredQty, coveredCost float64
		for _, lot := range ledger.OpenLots {
			if lot.Symbol != key.Symbol || lot.Currency != key.Currency || lot.Direction != models.DirectionLong {
				continue
			}
			coveredQty += lot.Quantity
			coveredCost += lot.CostBasis()
		}

		// Never negative, never double-counting shares observed buys
		// already explain.
		uncovered := h.Quantity - coveredQty
		if uncovered <= qtyEpsilon {
			continue
		}

		lot := models.OpenLot{
			ID:          seedLotID(key.Symbol, key.Currency, uncovered),
			Symbol:      key.Symbol,
			Currency:    key.Currency,
			Direction:   models.DirectionLong,
			Quantity:    uncovered,
			EntryDate:   seedDate,
			IsSynthetic: true,
			Source:      h.Source,
			Account:     h.Account,
		}

		switch {
		case manual[key.Symbol].EntryPrice > 0:
			mb := manual[key.Symbol]
			lot.EntryPrice = mb.EntryPrice
			if !mb.EntryDate.IsZero() {
				lot.EntryDate = mb.EntryDate
			}

		case h.hasBasis:
			seedCost := h.CostBasis - coveredCost
			price := seedCost / uncovered
			if price > priceEpsilon {
				lot.EntryPrice = price
			} else {
				// Degenerate back-solve: the cost basis is already
				// consumed by observed lots, so the gap itself is
				// suspect. Fall through to a historical price.
				lot.EntryPrice = s.earliestPriceOrFlag(prices, key.Symbol, &result)
			}

		default:
			lot.EntryPrice = s.earliestPriceOrFlag(prices, key.Symbol, &result)
		}

		if lot.EntryPrice <= priceEpsilon {
			s.logger.Warn().
				Str("symbol", key.Symbol).
				Float64("quantity", uncovered).
				Msg("Seed lot created without a defensible price; flagged unpriceable")
		} else {
			s.logger.Info().
				Str("symbol", key.Symbol).
				Float64("quantity", uncovered).
				Float64("price", lot.EntryPrice).
				Msg("Synthesized seed lot")
		}

		result.Lots = append(result.Lots, lot)
	}

	return result
}

// earliestPriceOrFlag resolves a seed price from the earliest obtainable
// historical close. When no history exists the symbol is flagged
// unpriceable and the price stays zero; the cash-flow stage falls back to
// the holding's market-value hint where one is defensible.
func (s *Service) earliestPriceOrFlag(prices interfaces.PriceSource, symbol string, result *SeedResult) float64 {
	if prices != nil {
		if p, _, ok := prices.EarliestPrice(symbol); ok && p > priceEpsilon {
			return p
		}
	}
	result.Unpriceable = append(result.Unpriceable, symbol)
	return 0
}

// Merge returns a ledger combining observed lots with the seed lots,
// keeping per-symbol FIFO order (seed lots predate the window so they sort
// first).
func Merge(ledger models.LotLedger, seeds []models.OpenLot) models.LotLedger {
	merged := models.LotLedger{
		ClosedTrades:     ledger.ClosedTrades,
		IncompleteTrades: ledger.IncompleteTrades,
		SuppressedShorts: ledger.SuppressedShorts,
	}
	merged.OpenLots = append(merged.OpenLots, ledger.OpenLots...)
	merged.OpenLots = append(merged.OpenLots, seeds...)
	sort.SliceStable(merged.OpenLots, func(i, j int) bool {
		a, b := merged.OpenLots[i], merged.OpenLots[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.EntryDate.Before(b.EntryDate)
	})
	return merged
}

func seedLotID(symbol, currency string, qty float64) string {
	key := "seed|" + symbol + "|" + currency + "|" + strconv.FormatFloat(qty, 'f', -1, 64)
	return "seed_" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()[:8]
}
