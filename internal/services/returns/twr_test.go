package returns

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

func navSeries(points ...models.NAVPoint) models.NAVSeries {
	return models.NAVSeries{Points: points}
}

func nav(date time.Time, total float64) models.NAVPoint {
	return models.NAVPoint{Date: date, Total: total}
}

func TestMonthlyTWRNoFlows(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	series := navSeries(
		nav(day(2024, 1, 2), 1000),
		nav(day(2024, 1, 15), 1050),
		nav(day(2024, 1, 31), 1100),
		nav(day(2024, 2, 15), 1080),
		nav(day(2024, 2, 29), 1210),
	)

	periods := svc.MonthlyTWR(series, nil)
	require.Len(t, periods, 2)

	assert.Equal(t, "2024-01", periods[0].Period)
	assert.InDelta(t, 0.10, periods[0].Return, 1e-9)
	assert.Equal(t, 1, periods[0].SubPeriods)

	assert.Equal(t, "2024-02", periods[1].Period)
	assert.InDelta(t, 0.10, periods[1].Return, 1e-9)
}

func TestMonthlyTWRFlowBreaksSubPeriod(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	// NAV doubles organically to 2000, then a 3000 deposit lands mid-month.
	// The deposit must not count as growth.
	series := navSeries(
		nav(day(2024, 1, 2), 1000),
		nav(day(2024, 1, 15), 5000), // post-flow NAV
		nav(day(2024, 1, 31), 5000),
	)
	flows := []models.ExternalFlow{{Date: day(2024, 1, 15), Amount: 3000}}

	periods := svc.MonthlyTWR(series, flows)
	require.Len(t, periods, 1)

	// Sub-period 1: 1000 → 2000 (pre-flow) = 2.0x. Sub-period 2: 5000 → 5000 = 1.0x.
	assert.InDelta(t, 1.0, periods[0].Return, 1e-9)
	assert.Equal(t, 2, periods[0].SubPeriods)
	assert.InDelta(t, 3000.0, periods[0].NetFlows, 1e-9)
}

func TestMonthlyTWRWeekendFlowRollsToNextPoint(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	// A deposit posted on a Saturday never lands on a weekday NAV point.
	// It must roll forward to Monday's point and close the sub-period
	// there, not get absorbed as a 100% "return".
	series := navSeries(
		nav(day(2024, 1, 5), 100), // Friday
		nav(day(2024, 1, 8), 200), // Monday, post-deposit
		nav(day(2024, 1, 31), 200),
	)
	flows := []models.ExternalFlow{{Date: day(2024, 1, 6), Amount: 100}} // Saturday

	periods := svc.MonthlyTWR(series, flows)
	require.Len(t, periods, 1)

	assert.InDelta(t, 0.0, periods[0].Return, 1e-9)
	assert.Equal(t, 2, periods[0].SubPeriods)
	assert.InDelta(t, 100.0, periods[0].NetFlows, 1e-9)
}

func TestMonthlyTWRSameDayFlowsAccumulate(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	series := navSeries(
		nav(day(2024, 1, 2), 1000),
		nav(day(2024, 1, 15), 1500), // two deposits of 250 land here
		nav(day(2024, 1, 31), 1500),
	)
	flows := []models.ExternalFlow{
		{Date: day(2024, 1, 13), Amount: 250}, // Saturday
		{Date: day(2024, 1, 14), Amount: 250}, // Sunday
	}

	periods := svc.MonthlyTWR(series, flows)
	require.Len(t, periods, 1)

	// Pre-flow NAV 1000, flat month otherwise.
	assert.InDelta(t, 0.0, periods[0].Return, 1e-9)
	assert.InDelta(t, 500.0, periods[0].NetFlows, 1e-9)
}

func TestMonthlyTWRFlowAfterFinalPointExcluded(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	series := navSeries(
		nav(day(2024, 1, 2), 1000),
		nav(day(2024, 1, 31), 1100),
	)
	flows := []models.ExternalFlow{{Date: day(2024, 2, 5), Amount: 9999}}

	periods := svc.MonthlyTWR(series, flows)
	require.Len(t, periods, 1)

	assert.InDelta(t, 0.10, periods[0].Return, 1e-9)
	assert.InDelta(t, 0.0, periods[0].NetFlows, 1e-9)
}

func TestMonthlyTWRLargeDepositIntoTinyAccount(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	// A $65k deposit into a $139 account on the last day of the month. The
	// month's return must reflect only the $139 balance's own movement, not a
	// 46,000% phantom gain.
	series := navSeries(
		nav(day(2024, 3, 1), 139),
		nav(day(2024, 3, 15), 140),
		nav(day(2024, 3, 29), 65141), // 141 pre-flow + 65000 deposit
	)
	flows := []models.ExternalFlow{{Date: day(2024, 3, 29), Amount: 65000}}

	periods := svc.MonthlyTWR(series, flows)
	require.Len(t, periods, 1)

	// 139 → 141 pre-flow, then flat: +1.44%, nowhere near the naive blowup.
	assert.InDelta(t, 141.0/139.0-1, periods[0].Return, 1e-9)
	assert.Less(t, periods[0].Return, 0.02)
}

func TestMonthlyTWRWithdrawal(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	series := navSeries(
		nav(day(2024, 1, 2), 2000),
		nav(day(2024, 1, 15), 1100), // 2100 pre-withdrawal − 1000
		nav(day(2024, 1, 31), 1155),
	)
	flows := []models.ExternalFlow{{Date: day(2024, 1, 15), Amount: -1000}}

	periods := svc.MonthlyTWR(series, flows)
	require.Len(t, periods, 1)

	// 2000 → 2100 (+5%), then 1100 → 1155 (+5%): chained +10.25%.
	assert.InDelta(t, 1.05*1.05-1, periods[0].Return, 1e-9)
}

func TestMonthlyTWRDegenerateStartNAV(t *testing.T) {
	svc := NewService(common.NewSilentLogger())

	// Zero start NAV would divide by zero; a flat factor is substituted.
	series := navSeries(
		nav(day(2024, 1, 2), 0),
		nav(day(2024, 1, 31), 500),
	)

	periods := svc.MonthlyTWR(series, nil)
	require.Len(t, periods, 1)
	assert.InDelta(t, 0.0, periods[0].Return, 1e-9)
}

func TestMonthlyTWRTooFewPoints(t *testing.T) {
	svc := NewService(common.NewSilentLogger())
	assert.Nil(t, svc.MonthlyTWR(navSeries(nav(day(2024, 1, 2), 1000)), nil))
}

func TestChainReturns(t *testing.T) {
	periods := []models.PeriodReturn{
		{Return: 0.10},
		{Return: -0.05},
		{Return: 0.02},
	}
	assert.InDelta(t, 1.10*0.95*1.02-1, ChainReturns(periods), 1e-12)
	assert.InDelta(t, 0.0, ChainReturns(nil), 1e-12)
}
