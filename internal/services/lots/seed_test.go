package lots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkeating/perfrecon/internal/common"
	"github.com/mkeating/perfrecon/internal/models"
)

// stubPrices is a canned price source for seed tests.
type stubPrices struct {
	earliest map[string]float64
}

func (s *stubPrices) PriceAsOf(symbol string, _ time.Time) (float64, bool) {
	p, ok := s.earliest[symbol]
	return p, ok
}

func (s *stubPrices) FXRateAsOf(string, time.Time) (float64, bool) { return 1, true }

func (s *stubPrices) EarliestPrice(symbol string) (float64, time.Time, bool) {
	p, ok := s.earliest[symbol]
	return p, day(2023, 1, 3), ok
}

func TestSeedFromReportedCostBasis(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	// 100 held shares, no observed history, $1000 aggregate cost basis:
	// the seed lot back-solves to 100 @ $10.
	holdings := []models.Holding{
		{Symbol: "VTI", Currency: "USD", Quantity: 100, CostBasis: 1000},
	}

	res := svc.Seed(models.LotLedger{}, holdings, nil, &stubPrices{}, day(2024, 1, 1))
	require.Len(t, res.Lots, 1)
	assert.Empty(t, res.Unpriceable)

	lot := res.Lots[0]
	assert.True(t, lot.IsSynthetic)
	assert.InDelta(t, 100.0, lot.Quantity, 1e-9)
	assert.InDelta(t, 10.0, lot.EntryPrice, 1e-9)
	assert.Equal(t, day(2023, 12, 31), lot.EntryDate) // one day pre-window
}

func TestSeedOnlyUncoveredQuantity(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	observed := models.LotLedger{
		OpenLots: []models.OpenLot{
			{Symbol: "VTI", Currency: "USD", Direction: models.DirectionLong, Quantity: 60, EntryPrice: 12, EntryDate: day(2024, 2, 1)},
		},
	}
	holdings := []models.Holding{
		{Symbol: "VTI", Currency: "USD", Quantity: 100, CostBasis: 1220},
	}

	res := svc.Seed(observed, holdings, nil, &stubPrices{}, day(2024, 1, 1))
	require.Len(t, res.Lots, 1)

	// 40 uncovered shares; cost basis net of the observed lot's 720 is 500.
	lot := res.Lots[0]
	assert.InDelta(t, 40.0, lot.Quantity, 1e-9)
	assert.InDelta(t, 12.5, lot.EntryPrice, 1e-9)
}

func TestSeedFullyCoveredYieldsNothing(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	observed := models.LotLedger{
		OpenLots: []models.OpenLot{
			{Symbol: "VTI", Currency: "USD", Direction: models.DirectionLong, Quantity: 100, EntryPrice: 10, EntryDate: day(2024, 2, 1)},
		},
	}
	holdings := []models.Holding{
		{Symbol: "VTI", Currency: "USD", Quantity: 100, CostBasis: 1000},
	}

	res := svc.Seed(observed, holdings, nil, &stubPrices{}, day(2024, 1, 1))
	assert.Empty(t, res.Lots)
}

func TestSeedManualBackfillWins(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	holdings := []models.Holding{
		{Symbol: "BRK.B", Currency: "USD", Quantity: 10, CostBasis: 3000},
	}
	backfills := []models.ManualBackfill{
		{Symbol: "BRK.B", EntryPrice: 280, EntryDate: day(2022, 6, 15)},
	}

	res := svc.Seed(models.LotLedger{}, holdings, backfills, &stubPrices{}, day(2024, 1, 1))
	require.Len(t, res.Lots, 1)

	lot := res.Lots[0]
	assert.InDelta(t, 280.0, lot.EntryPrice, 1e-9)
	assert.Equal(t, day(2022, 6, 15), lot.EntryDate)
}

func TestSeedFallsBackToEarliestPrice(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	holdings := []models.Holding{
		{Symbol: "SHOP", Currency: "USD", Quantity: 20}, // no cost basis
	}
	prices := &stubPrices{earliest: map[string]float64{"SHOP": 35.5}}

	res := svc.Seed(models.LotLedger{}, holdings, nil, prices, day(2024, 1, 1))
	require.Len(t, res.Lots, 1)
	assert.InDelta(t, 35.5, res.Lots[0].EntryPrice, 1e-9)
	assert.Empty(t, res.Unpriceable)
}

func TestSeedUnpriceableFlagged(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	holdings := []models.Holding{
		{Symbol: "PRIVATECO", Currency: "USD", Quantity: 500},
	}

	res := svc.Seed(models.LotLedger{}, holdings, nil, &stubPrices{}, day(2024, 1, 1))
	require.Len(t, res.Lots, 1)
	assert.Equal(t, 0.0, res.Lots[0].EntryPrice)
	assert.Equal(t, []string{"PRIVATECO"}, res.Unpriceable)
}

func TestSeedHoldingsAggregatedAcrossAccounts(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	holdings := []models.Holding{
		{Symbol: "VTI", Currency: "USD", Quantity: 40, CostBasis: 400, Account: "A1"},
		{Symbol: "VTI", Currency: "USD", Quantity: 60, CostBasis: 600, Account: "A2"},
	}

	res := svc.Seed(models.LotLedger{}, holdings, nil, &stubPrices{}, day(2024, 1, 1))
	require.Len(t, res.Lots, 1)
	assert.InDelta(t, 100.0, res.Lots[0].Quantity, 1e-9)
	assert.InDelta(t, 10.0, res.Lots[0].EntryPrice, 1e-9)
}

func TestMergeKeepsFIFOOrder(t *testing.T) {
	observed := models.LotLedger{
		OpenLots: []models.OpenLot{
			{Symbol: "VTI", Quantity: 60, EntryDate: day(2024, 2, 1)},
		},
	}
	seeds := []models.OpenLot{
		{Symbol: "VTI", Quantity: 40, EntryDate: day(2023, 12, 31), IsSynthetic: true},
	}

	merged := Merge(observed, seeds)
	require.Len(t, merged.OpenLots, 2)
	assert.True(t, merged.OpenLots[0].IsSynthetic) // seed predates, sorts first
	assert.False(t, merged.OpenLots[1].IsSynthetic)

	synthetic := merged.SyntheticLots()
	require.Len(t, synthetic, 1)
	assert.InDelta(t, 40.0, synthetic[0].Quantity, 1e-9)
}
