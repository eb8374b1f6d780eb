package returns

import (
	"math"

	"github.com/mkeating/perfrecon/internal/models"
)

// Metrics derives risk statistics from a monthly return series plus the
// external-flow history for the money-weighted rate.
func (s *Service) Metrics(periods []models.PeriodReturn, flows []models.ExternalFlow, terminalNAV float64) models.RiskMetrics {
	m := models.RiskMetrics{MonthsObserved: len(periods)}
	if len(periods) == 0 {
		return m
	}

	m.CumulativeReturn = ChainReturns(periods)
	m.AnnualizedReturn = annualize(m.CumulativeReturn, len(periods))
	m.Volatility = annualizedVolatility(periods)
	m.MaxDrawdown = maxDrawdown(periods)

	m.BestMonth = periods[0].Return
	m.WorstMonth = periods[0].Return
	for _, p := range periods[1:] {
		if p.Return > m.BestMonth {
			m.BestMonth = p.Return
		}
		if p.Return < m.WorstMonth {
			m.WorstMonth = p.Return
		}
	}

	m.MoneyWeightedIRR = s.XIRR(flows, terminalNAV, periods[len(periods)-1].End)

	return m
}

// annualize converts a cumulative return to annualized when at least a
// year is observed; shorter spans are reported cumulative.
func annualize(cumulative float64, months int) float64 {
	if months < 12 {
		return cumulative
	}
	base := 1 + cumulative
	if base <= 0 {
		return cumulative
	}
	return math.Pow(base, 12/float64(months)) - 1
}

func annualizedVolatility(periods []models.PeriodReturn) float64 {
	if len(periods) < 2 {
		return 0
	}
	var sum float64
	for _, p := range periods {
		sum += p.Return
	}
	mean := sum / float64(len(periods))

	var sq float64
	for _, p := range periods {
		d := p.Return - mean
		sq += d * d
	}
	variance := sq / float64(len(periods)-1)
	return math.Sqrt(variance) * math.Sqrt(12)
}

// maxDrawdown computes the deepest peak-to-trough loss on the compounded
// return index. Returned as a negative fraction (−0.25 = −25%).
func maxDrawdown(periods []models.PeriodReturn) float64 {
	index := 1.0
	peak := 1.0
	worst := 0.0
	for _, p := range periods {
		index *= 1 + p.Return
		if index > peak {
			peak = index
		}
		if peak > 0 {
			dd := index/peak - 1
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst
}
