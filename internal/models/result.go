package models

import "time"

// Track names the two parallel reconstruction tracks.
type Track string

const (
	TrackObservedOnly      Track = "observed_only"
	TrackSyntheticEnhanced Track = "synthetic_enhanced"
)

// PeriodReturn is one reporting period's chained time-weighted return.
type PeriodReturn struct {
	Period     string    `json:"period"` // "2024-07"
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Return     float64   `json:"return"` // fraction, 0.05 = +5%
	SubPeriods int       `json:"sub_periods"`
	NetFlows   float64   `json:"net_flows"`
	StartNAV   float64   `json:"start_nav"`
	EndNAV     float64   `json:"end_nav"`
}

// RiskMetrics are derived from a monthly return series.
type RiskMetrics struct {
	CumulativeReturn  float64 `json:"cumulative_return"`
	AnnualizedReturn  float64 `json:"annualized_return"`
	Volatility        float64 `json:"volatility"` // annualized stddev of monthly returns
	MaxDrawdown       float64 `json:"max_drawdown"`
	BestMonth         float64 `json:"best_month"`
	WorstMonth        float64 `json:"worst_month"`
	MoneyWeightedIRR  float64 `json:"money_weighted_irr"` // auxiliary XIRR on the external-flow series
	MonthsObserved    int     `json:"months_observed"`
}

// TrackResult holds one track's return series and derived metrics.
type TrackResult struct {
	Track   Track          `json:"track"`
	Returns []PeriodReturn `json:"returns"`
	Metrics RiskMetrics    `json:"metrics"`
	NAV     []NAVPoint     `json:"nav"` // monthly NAV points for display
}

// PnLBreakdown decomposes profit into realized, unrealized, and income.
type PnLBreakdown struct {
	Realized   float64 `json:"realized"`
	Unrealized float64 `json:"unrealized"`
	Dividends  float64 `json:"dividends"`
	Interest   float64 `json:"interest"`
	Fees       float64 `json:"fees"`
	Total      float64 `json:"total"`
}

// ReasonCode is a machine-readable confidence flag.
type ReasonCode string

const (
	ReasonLowCoverage        ReasonCode = "low_coverage"
	ReasonHighSyntheticShare ReasonCode = "high_synthetic_sensitivity"
	ReasonUnpriceableSymbols ReasonCode = "unpriceable_symbols"
	ReasonIncompleteTrades   ReasonCode = "incomplete_trades"
	ReasonExtremeReturn      ReasonCode = "extreme_period_return"
	ReasonLargeReconGap      ReasonCode = "large_reconciliation_gap"
	ReasonNoTransactions     ReasonCode = "no_transaction_history"
	ReasonDroppedRecords     ReasonCode = "dropped_provider_records"
)

// ConfidenceFlag pairs a reason code with a human-readable explanation and
// the measured value that tripped the threshold.
type ConfidenceFlag struct {
	Code      ReasonCode `json:"code"`
	Message   string     `json:"message"`
	Value     float64    `json:"value"`
	Threshold float64    `json:"threshold"`
}

// Verdict is the reliability verdict for an analysis run. It is always
// present on a PerformanceResult; callers that ignore it get plausible but
// potentially wrong numbers, so the zero value is deliberately "unreliable".
type Verdict struct {
	Reliable    bool             `json:"reliable"`
	CoveragePct float64          `json:"coverage_pct"` // share of total cost basis explained by observed lots
	Flags       []ConfidenceFlag `json:"flags"`
}

// ReasonCodes extracts the flag codes for compact serialization.
func (v Verdict) ReasonCodes() []ReasonCode {
	codes := make([]ReasonCode, 0, len(v.Flags))
	for _, f := range v.Flags {
		codes = append(codes, f.Code)
	}
	return codes
}

// Reconciliation compares NAV-basis P&L against lot-basis P&L.
type Reconciliation struct {
	NAVBasisPL      float64 `json:"nav_basis_pl"` // ΔNAV − net external flows
	LotBasisPL      float64 `json:"lot_basis_pl"` // realized + unrealized + income
	Gap             float64 `json:"gap"`
	GapPct          float64 `json:"gap_pct"`          // gap as % of |NAV-basis P&L|
	SyntheticImpact float64 `json:"synthetic_impact"` // NAV P&L delta between tracks
}

// PerformanceResult is the sole artifact returned to callers.
type PerformanceResult struct {
	GeneratedAt       time.Time `json:"generated_at"`
	WindowStart       time.Time `json:"window_start"`
	WindowEnd         time.Time `json:"window_end"`
	ValuationCurrency string    `json:"valuation_currency"`

	Tracks map[Track]TrackResult `json:"tracks"`
	PnL    PnLBreakdown          `json:"pnl"`

	Reconciliation Reconciliation `json:"reconciliation"`
	Verdict        Verdict        `json:"verdict"`

	// Operator-inspection detail: every inferred value, tagged.
	SyntheticPositions []OpenLot         `json:"synthetic_positions"`
	IncompleteTrades   []IncompleteTrade `json:"incomplete_trades"`
	UnpriceableSymbols []string          `json:"unpriceable_symbols"`
	SuppressedShorts   []string          `json:"suppressed_shorts"`
	DroppedRecords     int               `json:"dropped_records"`
}
