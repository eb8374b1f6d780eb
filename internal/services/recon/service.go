// Package recon compares NAV-basis P&L against lot-basis P&L, scores data
// quality against explicit thresholds, and emits the reliability verdict.
package recon

import (
	"fmt"
	"math"

	"github.com/mkeating/perfrecon/internal/common"
	"github.com/mkeating/perfrecon/internal/models"
)

// Service implements the reconciliation and confidence engine.
type Service struct {
	thresholds common.ThresholdConfig
	logger     *common.Logger
}

// NewService creates the reconciliation engine with explicit thresholds.
// Thresholds arrive as configuration, never module-level constants, so
// every run is testable with overridden values.
func NewService(thresholds common.ThresholdConfig, logger *common.Logger) *Service {
	return &Service{thresholds: thresholds, logger: logger}
}

// Input gathers everything the reconciliation stage reads. It consumes the
// outputs of every earlier stage but feeds nothing back.
type Input struct {
	EnhancedNAV models.NAVSeries
	ObservedNAV models.NAVSeries
	Flows       []models.ExternalFlow

	PnL             models.PnLBreakdown
	MonthlyReturns  []models.PeriodReturn
	ObservedCost    float64 // cost basis explained by observed lots
	SyntheticCost   float64 // cost basis carried by synthetic lots
	IncompleteCount int
	Unpriceable     []string
	DroppedRecords  int
	TxCount         int
}

// Output is the reconciliation result plus the verdict.
type Output struct {
	Reconciliation models.Reconciliation
	Verdict        models.Verdict
}

// Evaluate computes the reconciliation gap and the reliability verdict.
// It always returns a complete output; low confidence degrades trust
// signaling, never data availability.
func (s *Service) Evaluate(in Input) Output {
	var out Output

	navPL := navBasisPL(in.EnhancedNAV, in.Flows)
	observedPL := navBasisPL(in.ObservedNAV, in.Flows)

	out.Reconciliation = models.Reconciliation{
		NAVBasisPL:      navPL,
		LotBasisPL:      in.PnL.Total,
		Gap:             navPL - in.PnL.Total,
		SyntheticImpact: navPL - observedPL,
	}
	if math.Abs(navPL) > 1e-9 {
		out.Reconciliation.GapPct = math.Abs(out.Reconciliation.Gap) / math.Abs(navPL) * 100
	}

	out.Verdict = s.verdict(in, out.Reconciliation)

	s.logger.Info().
		Float64("nav_pl", navPL).
		Float64("lot_pl", in.PnL.Total).
		Float64("gap", out.Reconciliation.Gap).
		Bool("reliable", out.Verdict.Reliable).
		Msg("Reconciliation complete")

	return out
}

// verdict applies the documented thresholds. Severe conditions fail the
// verdict; advisory conditions flag without failing it.
func (s *Service) verdict(in Input, rec models.Reconciliation) models.Verdict {
	t := s.thresholds
	v := models.Verdict{Reliable: true}

	totalCost := in.ObservedCost + in.SyntheticCost
	if totalCost > 0 {
		v.CoveragePct = in.ObservedCost / totalCost * 100
	} else {
		v.CoveragePct = 100
	}

	fail := func(f models.ConfidenceFlag) {
		v.Flags = append(v.Flags, f)
		v.Reliable = false
	}
	warn := func(f models.ConfidenceFlag) {
		v.Flags = append(v.Flags, f)
	}

	if in.TxCount == 0 {
		fail(models.ConfidenceFlag{
			Code:    models.ReasonNoTransactions,
			Message: "no transaction history; every position is reconstructed",
		})
	}

	if totalCost > 0 && v.CoveragePct < t.MinCoveragePct {
		fail(models.ConfidenceFlag{
			Code:      models.ReasonLowCoverage,
			Message:   fmt.Sprintf("observed lots explain %.1f%% of cost basis", v.CoveragePct),
			Value:     v.CoveragePct,
			Threshold: t.MinCoveragePct,
		})
	}

	if math.Abs(rec.SyntheticImpact) > t.SyntheticImpactAmount {
		fail(models.ConfidenceFlag{
			Code:      models.ReasonHighSyntheticShare,
			Message:   fmt.Sprintf("synthetic lots move NAV P&L by %.2f", rec.SyntheticImpact),
			Value:     math.Abs(rec.SyntheticImpact),
			Threshold: t.SyntheticImpactAmount,
		})
	}

	if rec.GapPct > t.ReconGapPct {
		fail(models.ConfidenceFlag{
			Code:      models.ReasonLargeReconGap,
			Message:   fmt.Sprintf("NAV-basis and lot-basis P&L diverge by %.1f%%", rec.GapPct),
			Value:     rec.GapPct,
			Threshold: t.ReconGapPct,
		})
	}

	if in.IncompleteCount > t.MaxIncompleteTrades {
		fail(models.ConfidenceFlag{
			Code:      models.ReasonIncompleteTrades,
			Message:   fmt.Sprintf("%d exits have no matching entry", in.IncompleteCount),
			Value:     float64(in.IncompleteCount),
			Threshold: float64(t.MaxIncompleteTrades),
		})
	}

	if len(in.Unpriceable) >= t.UnpriceableSevereCnt && t.UnpriceableSevereCnt > 0 {
		fail(models.ConfidenceFlag{
			Code:      models.ReasonUnpriceableSymbols,
			Message:   fmt.Sprintf("%d symbols cannot be priced", len(in.Unpriceable)),
			Value:     float64(len(in.Unpriceable)),
			Threshold: float64(t.UnpriceableSevereCnt),
		})
	} else if len(in.Unpriceable) > 0 {
		warn(models.ConfidenceFlag{
			Code:      models.ReasonUnpriceableSymbols,
			Message:   fmt.Sprintf("%d symbols cannot be priced", len(in.Unpriceable)),
			Value:     float64(len(in.Unpriceable)),
			Threshold: float64(t.UnpriceableSevereCnt),
		})
	}

	for _, p := range in.MonthlyReturns {
		if math.Abs(p.Return) > t.ExtremeMonthlyReturn {
			warn(models.ConfidenceFlag{
				Code:      models.ReasonExtremeReturn,
				Message:   fmt.Sprintf("period %s returned %.1f%%", p.Period, p.Return*100),
				Value:     math.Abs(p.Return),
				Threshold: t.ExtremeMonthlyReturn,
			})
		}
	}

	if in.DroppedRecords > 0 {
		warn(models.ConfidenceFlag{
			Code:    models.ReasonDroppedRecords,
			Message: fmt.Sprintf("%d provider records could not be mapped", in.DroppedRecords),
			Value:   float64(in.DroppedRecords),
		})
	}

	return v
}

// navBasisPL is ΔNAV minus the net external flows that landed inside the
// evaluated window (flows on the first evaluation day are already baked
// into the opening NAV).
func navBasisPL(series models.NAVSeries, flows []models.ExternalFlow) float64 {
	first, okFirst := series.First()
	last, okLast := series.Last()
	if !okFirst || !okLast {
		return 0
	}

	var netFlows float64
	for _, f := range flows {
		if f.Date.After(first.Date) && !f.Date.After(last.Date) {
			netFlows += f.Amount
		}
	}
	return last.Total - first.Total - netFlows
}
