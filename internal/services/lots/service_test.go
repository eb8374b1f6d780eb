package lots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkeating/perfrecon/internal/common"
	"github.com/mkeating/perfrecon/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tx(side models.TxSide, symbol string, qty, price float64, date time.Time) models.Transaction {
	return models.Transaction{
		ID:       symbol + "-" + string(side) + "-" + date.Format("20060102"),
		Symbol:   symbol,
		Currency: "USD",
		Side:     side,
		Quantity: qty,
		Price:    price,
		Date:     date,
	}
}

func TestMatchSimpleRoundTrip(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	txs := []models.Transaction{
		tx(models.SideBuy, "AAPL", 10, 100, day(2024, 1, 10)),
		tx(models.SideSell, "AAPL", 10, 120, day(2024, 3, 10)),
	}

	ledger := svc.Match(txs, nil)
	require.Len(t, ledger.ClosedTrades, 1)
	assert.Empty(t, ledger.OpenLots)
	assert.Empty(t, ledger.IncompleteTrades)

	ct := ledger.ClosedTrades[0]
	assert.Equal(t, models.DirectionLong, ct.Direction)
	assert.InDelta(t, 200.0, ct.RealizedPL, 1e-9)
	assert.Equal(t, 60, ct.HoldingDays)
}

func TestMatchFIFOConsumesOldestFirst(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	txs := []models.Transaction{
		tx(models.SideBuy, "AAPL", 10, 100, day(2024, 1, 10)),
		tx(models.SideBuy, "AAPL", 10, 150, day(2024, 2, 10)),
		tx(models.SideSell, "AAPL", 15, 160, day(2024, 3, 10)),
	}

	ledger := svc.Match(txs, nil)
	require.Len(t, ledger.ClosedTrades, 2)

	// First fragment consumes the January lot entirely.
	assert.InDelta(t, 10.0, ledger.ClosedTrades[0].Quantity, 1e-9)
	assert.InDelta(t, 100.0, ledger.ClosedTrades[0].EntryPrice, 1e-9)
	assert.InDelta(t, 600.0, ledger.ClosedTrades[0].RealizedPL, 1e-9)

	// Second fragment takes 5 from the February lot.
	assert.InDelta(t, 5.0, ledger.ClosedTrades[1].Quantity, 1e-9)
	assert.InDelta(t, 150.0, ledger.ClosedTrades[1].EntryPrice, 1e-9)
	assert.InDelta(t, 50.0, ledger.ClosedTrades[1].RealizedPL, 1e-9)

	// 5 shares remain open from the February lot.
	remaining := ledger.OpenLotsFor("AAPL")
	require.Len(t, remaining, 1)
	assert.InDelta(t, 5.0, remaining[0].Quantity, 1e-9)
	assert.InDelta(t, 150.0, remaining[0].EntryPrice, 1e-9)
	assert.Empty(t, ledger.OpenLotsFor("MSFT"))
}

func TestMatchFeeProration(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	buy := tx(models.SideBuy, "MSFT", 10, 100, day(2024, 1, 10))
	buy.Fees = 10
	sell := tx(models.SideSell, "MSFT", 5, 110, day(2024, 2, 10))
	sell.Fees = 4

	ledger := svc.Match([]models.Transaction{buy, sell}, nil)
	require.Len(t, ledger.ClosedTrades, 1)

	// Half the entry fee (5) plus the full exit fee (4) against a 50 gross.
	ct := ledger.ClosedTrades[0]
	assert.InDelta(t, 9.0, ct.Fees, 1e-9)
	assert.InDelta(t, 41.0, ct.RealizedPL, 1e-9)

	// Remaining open lot keeps the unconsumed half of the entry fee.
	require.Len(t, ledger.OpenLots, 1)
	assert.InDelta(t, 5.0, ledger.OpenLots[0].Fees, 1e-9)
}

func TestMatchShortRoundTrip(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	txs := []models.Transaction{
		tx(models.SideShort, "TSLA", 10, 200, day(2024, 1, 10)),
		tx(models.SideCover, "TSLA", 10, 150, day(2024, 2, 10)),
	}

	ledger := svc.Match(txs, nil)
	require.Len(t, ledger.ClosedTrades, 1)

	ct := ledger.ClosedTrades[0]
	assert.Equal(t, models.DirectionShort, ct.Direction)
	assert.InDelta(t, 500.0, ct.RealizedPL, 1e-9) // profit when price falls
}

func TestMatchInfersShortFromUnmatchedSell(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	txs := []models.Transaction{
		tx(models.SideBuy, "NVDA", 5, 500, day(2024, 1, 10)),
		tx(models.SideSell, "NVDA", 8, 600, day(2024, 2, 10)),
	}

	ledger := svc.Match(txs, nil)
	require.Len(t, ledger.ClosedTrades, 1)
	assert.Empty(t, ledger.IncompleteTrades)

	// The 3-share surplus becomes an inferred short lot.
	require.Len(t, ledger.OpenLots, 1)
	lot := ledger.OpenLots[0]
	assert.Equal(t, models.DirectionShort, lot.Direction)
	assert.InDelta(t, 3.0, lot.Quantity, 1e-9)
	assert.InDelta(t, 600.0, lot.EntryPrice, 1e-9)
}

func TestMatchSuppressedSymbolFlagsInsteadOfInferring(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	txs := []models.Transaction{
		tx(models.SideBuy, "NVDA", 5, 500, day(2024, 1, 10)),
		tx(models.SideSell, "NVDA", 8, 600, day(2024, 2, 10)),
	}

	ledger := svc.Match(txs, map[string]bool{"NVDA": true})
	require.Len(t, ledger.IncompleteTrades, 1)
	assert.Empty(t, ledger.OpenLots)

	inc := ledger.IncompleteTrades[0]
	assert.InDelta(t, 3.0, inc.Quantity, 1e-9)
	assert.InDelta(t, 1800.0, inc.UnresolvedNotional, 1e-9)
	assert.False(t, inc.FirstTransaction)
	assert.Equal(t, []string{"NVDA"}, ledger.SuppressedShorts)
}

func TestMatchFirstTransactionExitNeverInferred(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	// A sell as the very first event for a symbol has no basis for short
	// inference regardless of the suppression policy.
	txs := []models.Transaction{
		tx(models.SideSell, "IBM", 10, 180, day(2024, 1, 10)),
	}

	ledger := svc.Match(txs, nil)
	require.Len(t, ledger.IncompleteTrades, 1)
	assert.True(t, ledger.IncompleteTrades[0].FirstTransaction)
	assert.Empty(t, ledger.OpenLots)
}

func TestMatchDeterministicLotIDs(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	txs := []models.Transaction{
		tx(models.SideBuy, "AAPL", 10, 100, day(2024, 1, 10)),
	}

	first := svc.Match(txs, nil)
	second := svc.Match(txs, nil)

	require.Len(t, first.OpenLots, 1)
	require.Len(t, second.OpenLots, 1)
	assert.Equal(t, first.OpenLots[0].ID, second.OpenLots[0].ID)
}

func TestComputeDeltaGaps(t *testing.T) {
	txs := []models.Transaction{
		tx(models.SideBuy, "AAPL", 10, 100, day(2024, 1, 10)),
		tx(models.SideSell, "AAPL", 4, 120, day(2024, 2, 10)),
		tx(models.SideShort, "TSLA", 5, 200, day(2024, 1, 15)),
		tx(models.SideCover, "TSLA", 5, 180, day(2024, 2, 15)),
	}
	holdings := []models.Holding{
		{Symbol: "AAPL", Currency: "USD", Quantity: 20},
		{Symbol: "GOOG", Currency: "USD", Quantity: 3},
	}

	gaps := ComputeDeltaGaps(txs, holdings)

	assert.InDelta(t, 6.0, gaps["AAPL"].ObservedNet, 1e-9)
	assert.InDelta(t, 14.0, gaps["AAPL"].Gap, 1e-9)
	assert.InDelta(t, 0.0, gaps["TSLA"].Gap, 1e-9)
	assert.InDelta(t, 3.0, gaps["GOOG"].Gap, 1e-9) // held with no history at all

	suppressed := SuppressedShortSymbols(gaps)
	assert.True(t, suppressed["AAPL"])
	assert.True(t, suppressed["GOOG"])
	assert.False(t, suppressed["TSLA"])
}
