// Package nav evaluates total portfolio value (priced positions plus cash)
// at business-day granularity.
package nav

import (
	"time"

	"github.com/mkeating/perfrecon/internal/common"
	"github.com/mkeating/perfrecon/internal/interfaces"
	"github.com/mkeating/perfrecon/internal/models"
	"github.com/mkeating/perfrecon/internal/services/timeline"
)

// Calculator is a pure function of (timeline, price lookup, cash ledger).
type Calculator struct {
	logger *common.Logger
}

// NewCalculator creates a NAV calculator.
func NewCalculator(logger *common.Logger) *Calculator {
	return &Calculator{logger: logger}
}

// Evaluate prices every held position and adds the cash balance at each
// requested date. Unpriceable symbols are carried on the NAV point rather
// than silently valued at zero — the position's last value is simply absent
// and the reconciliation stage decides how severe that is.
func (c *Calculator) Evaluate(
	tl *timeline.Timeline,
	prices interfaces.PriceSource,
	ledger models.CashLedger,
	dates []time.Time,
	valuationCurrency string,
) models.NAVSeries {
	series := models.NAVSeries{Points: make([]models.NAVPoint, 0, len(dates))}

	for _, date := range dates {
		point := models.NAVPoint{Date: date}

		for _, pos := range tl.Positions(date) {
			price, ok := prices.PriceAsOf(pos.Symbol, date)
			if !ok {
				point.Unpriceable = append(point.Unpriceable, pos.Symbol)
				continue
			}

			value := pos.Quantity * price
			if pos.Currency != valuationCurrency {
				if rate, rateOK := prices.FXRateAsOf(pos.Currency, date); rateOK {
					value *= rate
				} else {
					point.Unpriceable = append(point.Unpriceable, pos.Symbol)
					continue
				}
			}

			point.PositionValue += value
			point.HoldingCount++
		}

		point.CashValue = ledger.BalanceAt(date)
		point.Total = point.PositionValue + point.CashValue
		series.Points = append(series.Points, point)
	}

	return series
}

// BusinessDays generates one date per weekday from start to end inclusive,
// truncated to midnight UTC. Daily granularity is what makes return
// chaining around flow dates accurate; monthly views are downsampled from
// this, never computed independently.
func BusinessDays(start, end time.Time) []time.Time {
	start = midnight(start)
	end = midnight(end)
	if end.Before(start) {
		return nil
	}

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		}
		dates = append(dates, d)
	}
	return dates
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
