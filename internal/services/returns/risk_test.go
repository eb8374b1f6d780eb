package returns

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkeating/perfrecon/internal/common"
	"github.com/mkeating/perfrecon/internal/models"
)

func monthReturns(returns ...float64) []models.PeriodReturn {
	periods := make([]models.PeriodReturn, len(returns))
	start := day(2024, 1, 31)
	for i, r := range returns {
		periods[i] = models.PeriodReturn{
			Period: start.AddDate(0, i, 0).Format("2006-01"),
			End:    start.AddDate(0, i, 0),
			Return: r,
		}
	}
	return periods
}

func TestMetricsEmptySeries(t *testing.T) {
	svc := NewService(common.NewSilentLogger())
	m := svc.Metrics(nil, nil, 0)
	assert.Equal(t, 0, m.MonthsObserved)
	assert.Equal(t, 0.0, m.CumulativeReturn)
}

func TestMetricsBasics(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	periods := monthReturns(0.10, -0.05, 0.02)
	m := svc.Metrics(periods, nil, 0)

	assert.Equal(t, 3, m.MonthsObserved)
	assert.InDelta(t, 1.10*0.95*1.02-1, m.CumulativeReturn, 1e-9)
	// Under a year: reported cumulative, not annualized.
	assert.InDelta(t, m.CumulativeReturn, m.AnnualizedReturn, 1e-12)
	assert.InDelta(t, 0.10, m.BestMonth, 1e-12)
	assert.InDelta(t, -0.05, m.WorstMonth, 1e-12)
	assert.Greater(t, m.Volatility, 0.0)
}

func TestMetricsAnnualizesFullYear(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	// Twelve months of +1% each.
	returns := make([]float64, 12)
	for i := range returns {
		returns[i] = 0.01
	}
	m := svc.Metrics(monthReturns(returns...), nil, 0)

	want := math.Pow(1.01, 12) - 1
	assert.InDelta(t, want, m.CumulativeReturn, 1e-9)
	assert.InDelta(t, want, m.AnnualizedReturn, 1e-9)
	assert.InDelta(t, 0.0, m.Volatility, 1e-12) // constant series
}

func TestMaxDrawdown(t *testing.T) {
	// Up 20%, down 30%, partial recovery: trough is 0.84 of the 1.2 peak.
	periods := monthReturns(0.20, -0.30, 0.10)
	dd := maxDrawdown(periods)
	assert.InDelta(t, -0.30, dd, 1e-9)
}

func TestXIRRSimpleYearDoubling(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	flows := []models.ExternalFlow{
		{Date: day(2023, 1, 1), Amount: 1000},
	}
	// One deposit, portfolio worth 2000 one year later: IRR ≈ 100%.
	rate := svc.XIRR(flows, 2000, day(2024, 1, 1))
	assert.InDelta(t, 1.0, rate, 0.01)
}

func TestXIRRWithInterimWithdrawal(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	flows := []models.ExternalFlow{
		{Date: day(2023, 1, 1), Amount: 1000},
		{Date: day(2023, 7, 1), Amount: -500},
	}
	rate := svc.XIRR(flows, 600, day(2024, 1, 1))
	require.False(t, math.IsNaN(rate))
	assert.Greater(t, rate, 0.0)
}

func TestXIRRNoSolutionReturnsZero(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	// Only outflows from the investor, no terminal value: no sign change.
	flows := []models.ExternalFlow{
		{Date: day(2023, 1, 1), Amount: 1000},
		{Date: day(2023, 6, 1), Amount: 500},
	}
	assert.Equal(t, 0.0, svc.XIRR(flows, 0, day(2024, 1, 1)))
	assert.Equal(t, 0.0, svc.XIRR(nil, 0, day(2024, 1, 1)))
}
