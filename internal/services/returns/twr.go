// Package returns computes time-weighted returns via true sub-period
// chaining anchored at external-flow dates, plus derived risk metrics.
package returns

import (
	"fmt"
	"time"

	"github.com/mkeating/perfrecon/internal/common"
	"github.com/mkeating/perfrecon/internal/models"
)

// Service implements the return calculator.
type Service struct {
	logger *common.Logger
}

// NewService creates a new return calculation service.
func NewService(logger *common.Logger) *Service {
	return &Service{logger: logger}
}

// MonthlyTWR chains sub-period returns into calendar-month returns. On each
// day a net external flow lands, the active sub-period closes at the NAV
// immediately before the flow and a new one opens at post-flow NAV. This is
// what keeps a large deposit near a month boundary from manufacturing a
// huge phantom return on a small pre-flow balance — a flow-proportional
// approximation would not.
func (s *Service) MonthlyTWR(series models.NAVSeries, flows []models.ExternalFlow) []models.PeriodReturn {
	points := series.Points
	if len(points) < 2 {
		return nil
	}

	// Flows are keyed to the evaluation grid, not their posting date.
	// Aggregator deposits routinely carry weekend dates the NAV series
	// never lands on; each flow rolls forward to the next NAV point so
	// its sub-period still closes.
	flowByDay := make(map[time.Time]float64, len(flows))
	for _, f := range flows {
		evalDay, ok := evaluationDay(points, midnight(f.Date))
		if !ok {
			s.logger.Warn().
				Time("date", f.Date).
				Float64("amount", f.Amount).
				Msg("External flow after final NAV point; excluded from chaining")
			continue
		}
		flowByDay[evalDay] += f.Amount
	}

	var results []models.PeriodReturn

	subStart := points[0].Total
	monthProduct := 1.0
	monthStartNAV := points[0].Total
	monthStart := points[0].Date
	monthFlows := 0.0
	subPeriods := 0

	// A flow on the very first evaluation day has no prior sub-period; it
	// simply re-anchors the starting NAV.
	if f, ok := flowByDay[midnight(points[0].Date)]; ok {
		monthFlows += f
	}

	for i := 1; i < len(points); i++ {
		p := points[i]
		day := midnight(p.Date)

		if flow, ok := flowByDay[day]; ok {
			preFlow := p.Total - flow
			monthProduct *= s.subPeriodFactor(preFlow, subStart, day)
			subPeriods++
			subStart = p.Total
			monthFlows += flow
		}

		lastOfMonth := i == len(points)-1 ||
			points[i+1].Date.Month() != p.Date.Month() ||
			points[i+1].Date.Year() != p.Date.Year()

		if !lastOfMonth {
			continue
		}

		monthProduct *= s.subPeriodFactor(p.Total, subStart, day)
		subPeriods++

		results = append(results, models.PeriodReturn{
			Period:     PeriodLabel(p.Date),
			Start:      monthStart,
			End:        p.Date,
			Return:     monthProduct - 1,
			SubPeriods: subPeriods,
			NetFlows:   monthFlows,
			StartNAV:   monthStartNAV,
			EndNAV:     p.Total,
		})

		subStart = p.Total
		monthProduct = 1.0
		monthFlows = 0
		subPeriods = 0
		if i < len(points)-1 {
			monthStart = points[i+1].Date
			monthStartNAV = p.Total
		}
	}

	return results
}

// subPeriodFactor returns end/start, falling back to a flat factor when the
// denominator is degenerate. Propagating Inf/NaN into chained products
// would poison every downstream aggregate.
func (s *Service) subPeriodFactor(end, start float64, day time.Time) float64 {
	if start <= 0 {
		if end != start {
			s.logger.Warn().
				Time("date", day).
				Float64("start_nav", start).
				Msg("Non-positive sub-period start NAV; zero return substituted")
		}
		return 1.0
	}
	if end < 0 {
		s.logger.Warn().
			Time("date", day).
			Float64("end_nav", end).
			Msg("Negative pre-flow NAV; zero return substituted")
		return 1.0
	}
	return end / start
}

// ChainReturns compounds a slice of period returns into a cumulative return.
func ChainReturns(periods []models.PeriodReturn) float64 {
	product := 1.0
	for _, p := range periods {
		product *= 1 + p.Return
	}
	return product - 1
}

// PeriodLabel formats the month key used on period returns.
func PeriodLabel(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// evaluationDay maps a flow date onto the first NAV point on or after it.
func evaluationDay(points []models.NAVPoint, day time.Time) (time.Time, bool) {
	for _, p := range points {
		pd := midnight(p.Date)
		if !pd.Before(day) {
			return pd, true
		}
	}
	return time.Time{}, false
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
