package returns

import (
	"math"
	"sort"
	"time"

	"github.com/mkeating/perfrecon/internal/models"
)

// xirrFlow is one dated cash flow from the investor's perspective:
// contributions are money out (negative), withdrawals and the terminal
// portfolio value are money in (positive).
type xirrFlow struct {
	date   time.Time
	amount float64
}

// XIRR computes the annualized money-weighted rate of return on the
// external-flow series via Newton-Raphson, with the terminal NAV as the
// closing inflow. Returns 0 when no solution is computable — an auxiliary
// metric must never poison the result with NaN.
func (s *Service) XIRR(flows []models.ExternalFlow, terminalNAV float64, asOf time.Time) float64 {
	var xf []xirrFlow
	for _, f := range flows {
		// A deposit into the portfolio is an outflow from the investor.
		xf = append(xf, xirrFlow{date: f.Date, amount: -f.Amount})
	}
	if terminalNAV > 0 {
		xf = append(xf, xirrFlow{date: asOf, amount: terminalNAV})
	}
	if len(xf) < 2 {
		return 0
	}

	sort.Slice(xf, func(i, j int) bool { return xf[i].date.Before(xf[j].date) })

	hasNeg, hasPos := false, false
	for _, f := range xf {
		if f.amount < 0 {
			hasNeg = true
		}
		if f.amount > 0 {
			hasPos = true
		}
	}
	if !hasNeg || !hasPos {
		return 0
	}

	rate := solveXIRR(xf)
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0
	}
	return rate
}

// solveXIRR finds r with NPV(r) = 0 where each flow is discounted by
// (1+r)^years from the first flow date.
func solveXIRR(flows []xirrFlow) float64 {
	t0 := flows[0].date
	years := make([]float64, len(flows))
	for i, f := range flows {
		years[i] = f.date.Sub(t0).Hours() / 24 / 365.25
	}

	npv := func(r float64) (float64, float64) {
		var value, derivative float64
		for i, f := range flows {
			denom := math.Pow(1+r, years[i])
			if denom == 0 {
				continue
			}
			value += f.amount / denom
			derivative -= years[i] * f.amount / (denom * (1 + r))
		}
		return value, derivative
	}

	rate := 0.1
	for iter := 0; iter < 100; iter++ {
		value, derivative := npv(rate)
		if math.Abs(value) < 1e-7 {
			return rate
		}
		if derivative == 0 || math.IsNaN(derivative) {
			return math.NaN()
		}
		next := rate - value/derivative
		if next <= -1 {
			next = (rate - 1) / 2 // keep 1+r positive
		}
		if math.Abs(next-rate) < 1e-9 {
			return next
		}
		rate = next
	}
	return math.NaN()
}
