// Package analysis orchestrates the reconstruction pipeline: normalization,
// lot matching, seeding, timelines, cash flows, NAV, returns, and the
// reconciliation verdict, assembled into one PerformanceResult.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkeating/perfrecon/internal/common"
	"github.com/mkeating/perfrecon/internal/interfaces"
	"github.com/mkeating/perfrecon/internal/models"
	"github.com/mkeating/perfrecon/internal/services/cashflow"
	"github.com/mkeating/perfrecon/internal/services/lots"
	"github.com/mkeating/perfrecon/internal/services/nav"
	"github.com/mkeating/perfrecon/internal/services/normalize"
	"github.com/mkeating/perfrecon/internal/services/recon"
	"github.com/mkeating/perfrecon/internal/services/returns"
	"github.com/mkeating/perfrecon/internal/services/timeline"
)

// prefetchWorkers bounds concurrent market data lookups.
const prefetchWorkers = 4

// Compile-time interface check
var _ interfaces.AnalysisService = (*Service)(nil)

// Service implements AnalysisService.
type Service struct {
	marketData interfaces.MarketDataClient
	config     *common.Config
	logger     *common.Logger

	normalizer *normalize.Service
	matcher    *lots.Service
	cash       *cashflow.Service
	navCalc    *nav.Calculator
	returnsSvc *returns.Service
	reconSvc   *recon.Service
}

// NewService creates the analysis orchestrator.
func NewService(marketData interfaces.MarketDataClient, config *common.Config, logger *common.Logger) *Service {
	return &Service{
		marketData: marketData,
		config:     config,
		logger:     logger,
		normalizer: normalize.NewService(logger),
		matcher:    lots.NewService(logger),
		cash:       cashflow.NewService(logger),
		navCalc:    nav.NewCalculator(logger),
		returnsSvc: returns.NewService(logger),
		reconSvc:   recon.NewService(config.Thresholds, logger),
	}
}

// Analyze runs the full pipeline. Stages execute strictly in sequence; only
// the market-data prefetch fans out across symbols. Data-quality problems
// degrade into verdict flags; an error return means the request itself was
// malformed.
func (s *Service) Analyze(ctx context.Context, req interfaces.AnalysisRequest) (*models.PerformanceResult, error) {
	started := time.Now()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	// Stage 1: normalization.
	norm, err := s.normalizer.Normalize(req.RecordSets, normalize.Scope{
		WindowStart: req.WindowStart,
		WindowEnd:   req.WindowEnd,
		Providers:   req.Providers,
		Accounts:    req.Accounts,
	})
	if err != nil {
		return nil, fmt.Errorf("normalization failed: %w", err)
	}

	holdings := filterHoldings(req.Holdings, req.Providers, req.Accounts)

	windowStart, windowEnd := s.resolveWindow(req, norm.Transactions)
	s.logger.Info().
		Time("start", windowStart).
		Time("end", windowEnd).
		Int("transactions", len(norm.Transactions)).
		Int("holdings", len(holdings)).
		Msg("Analysis window resolved")

	// Market data prefetch; everything after this point is pure computation.
	prices, err := s.prefetch(ctx, norm.Transactions, holdings, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	// Stages 2–3: matching and seeding.
	gaps := lots.ComputeDeltaGaps(norm.Transactions, holdings)
	suppressed := lots.SuppressedShortSymbols(gaps)
	observedLedger := s.matcher.Match(norm.Transactions, suppressed)
	seedResult := s.matcher.Seed(observedLedger, holdings, req.ManualBackfills, prices, windowStart)
	enhancedLedger := lots.Merge(observedLedger, seedResult.Lots)

	// Stage 4: timelines per track.
	enhancedTL := timeline.Build(enhancedLedger, true)
	observedTL := timeline.Build(enhancedLedger, false)

	// Stage 5: cash ledgers per track.
	cashOpts := cashflow.Options{
		ValuationCurrency:  s.config.ValuationCurrency,
		NegligibleNotional: s.config.Thresholds.NegligibleNotional,
	}
	obsOpts := cashOpts
	enhOpts := cashOpts
	enhOpts.IncludeSynthetic = true

	observedCash := s.cash.Reconstruct(norm.Transactions, norm.CashEvents, nil, holdings, prices, obsOpts)
	enhancedCash := s.cash.Reconstruct(norm.Transactions, norm.CashEvents, seedResult.Lots, holdings, prices, enhOpts)

	// Stage 6: NAV at business-day granularity.
	dates := nav.BusinessDays(windowStart, windowEnd)
	enhancedNAV := s.navCalc.Evaluate(enhancedTL, prices, enhancedCash, dates, s.config.ValuationCurrency)
	observedNAV := s.navCalc.Evaluate(observedTL, prices, observedCash, dates, s.config.ValuationCurrency)

	// Stage 7: returns per track.
	enhancedFlows := enhancedCash.ExternalFlows()
	observedFlows := observedCash.ExternalFlows()
	enhancedReturns := s.returnsSvc.MonthlyTWR(enhancedNAV, enhancedFlows)
	observedReturns := s.returnsSvc.MonthlyTWR(observedNAV, observedFlows)

	enhancedTrack := s.buildTrack(models.TrackSyntheticEnhanced, enhancedReturns, enhancedFlows, enhancedNAV)
	observedTrack := s.buildTrack(models.TrackObservedOnly, observedReturns, observedFlows, observedNAV)

	// P&L decomposition from the synthetic-enhanced view; the observed-only
	// sensitivity is visible through the parallel track and the synthetic
	// impact metric.
	pnl := s.decomposePnL(enhancedLedger, enhancedTL, enhancedCash, prices, windowEnd)

	unpriceable := collectUnpriceable(seedResult.Unpriceable, enhancedNAV)

	// Stage 8: reconciliation and verdict.
	observedCost, syntheticCost := costSplit(enhancedLedger)
	reconOut := s.reconSvc.Evaluate(recon.Input{
		EnhancedNAV:     enhancedNAV,
		ObservedNAV:     observedNAV,
		Flows:           enhancedFlows,
		PnL:             pnl,
		MonthlyReturns:  enhancedReturns,
		ObservedCost:    observedCost,
		SyntheticCost:   syntheticCost,
		IncompleteCount: len(enhancedLedger.IncompleteTrades),
		Unpriceable:     unpriceable,
		DroppedRecords:  norm.Dropped,
		TxCount:         len(norm.Transactions),
	})

	result := &models.PerformanceResult{
		GeneratedAt:       time.Now().UTC(),
		WindowStart:       windowStart,
		WindowEnd:         windowEnd,
		ValuationCurrency: s.config.ValuationCurrency,
		Tracks: map[models.Track]models.TrackResult{
			models.TrackSyntheticEnhanced: enhancedTrack,
			models.TrackObservedOnly:      observedTrack,
		},
		PnL:                pnl,
		Reconciliation:     reconOut.Reconciliation,
		Verdict:            reconOut.Verdict,
		SyntheticPositions: seedResult.Lots,
		IncompleteTrades:   enhancedLedger.IncompleteTrades,
		UnpriceableSymbols: unpriceable,
		SuppressedShorts:   enhancedLedger.SuppressedShorts,
		DroppedRecords:     norm.Dropped,
	}

	s.logger.Info().
		Dur("elapsed", time.Since(started)).
		Bool("reliable", result.Verdict.Reliable).
		Int("synthetic_positions", len(result.SyntheticPositions)).
		Msg("Analysis complete")

	return result, nil
}

// validateRequest rejects contract violations. These indicate an upstream
// collaborator bug, not a data-quality problem, so they fail fast.
func validateRequest(req interfaces.AnalysisRequest) error {
	if len(req.RecordSets) == 0 && len(req.Holdings) == 0 {
		return fmt.Errorf("analysis request carries no record sets and no holdings")
	}
	if !req.WindowStart.IsZero() && !req.WindowEnd.IsZero() && req.WindowEnd.Before(req.WindowStart) {
		return fmt.Errorf("analysis window end %s precedes start %s",
			req.WindowEnd.Format("2006-01-02"), req.WindowStart.Format("2006-01-02"))
	}
	for _, h := range req.Holdings {
		if h.Symbol == "" {
			return fmt.Errorf("holding with empty symbol")
		}
		if h.Quantity < 0 {
			return fmt.Errorf("holding %s has negative quantity %f", h.Symbol, h.Quantity)
		}
	}
	return nil
}

// resolveWindow defaults the analysis window to [earliest transaction,
// yesterday].
func (s *Service) resolveWindow(req interfaces.AnalysisRequest, txs []models.Transaction) (time.Time, time.Time) {
	end := req.WindowEnd
	if end.IsZero() {
		end = time.Now().UTC().AddDate(0, 0, -1)
	}
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	start := req.WindowStart
	if start.IsZero() {
		if len(txs) > 0 {
			start = txs[0].Date
			for _, tx := range txs {
				if tx.Date.Before(start) {
					start = tx.Date
				}
			}
		} else {
			start = end.AddDate(-1, 0, 0)
		}
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	return start, end
}

// prefetch bulk-loads bars and FX rates for every symbol and currency in
// play through a bounded worker pool. A symbol whose fetch fails is simply
// absent from the table; downstream stages flag it unpriceable instead of
// aborting the run.
func (s *Service) prefetch(ctx context.Context, txs []models.Transaction, holdings []models.Holding, windowStart, windowEnd time.Time) (*PriceTable, error) {
	symbols := make(map[string]bool)
	currencies := make(map[string]bool)
	for _, tx := range txs {
		symbols[tx.Symbol] = true
		currencies[tx.Currency] = true
	}
	for _, h := range holdings {
		symbols[h.Symbol] = true
		currencies[h.Currency] = true
	}

	table := NewPriceTable(s.config.ValuationCurrency)
	if s.marketData == nil {
		return table, nil
	}

	// Reach back before the window so seed-price fallbacks have history.
	fetchFrom := windowStart.AddDate(-2, 0, 0)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchWorkers)

	for symbol := range symbols {
		g.Go(func() error {
			bars, err := s.marketData.GetEOD(gctx, symbol, fetchFrom, windowEnd)
			if err != nil {
				s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Price history unavailable")
				return nil
			}
			mu.Lock()
			table.SetBars(symbol, bars)
			mu.Unlock()
			return nil
		})
	}

	for currency := range currencies {
		if currency == s.config.ValuationCurrency || currency == "" {
			continue
		}
		g.Go(func() error {
			pair := currency + s.config.ValuationCurrency
			bars, err := s.marketData.GetFX(gctx, pair, fetchFrom, windowEnd)
			if err != nil {
				s.logger.Warn().Err(err).Str("pair", pair).Msg("FX history unavailable")
				return nil
			}
			mu.Lock()
			table.SetFXBars(currency, bars)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("market data prefetch: %w", err)
	}
	return table, nil
}

func (s *Service) buildTrack(track models.Track, periodReturns []models.PeriodReturn, flows []models.ExternalFlow, series models.NAVSeries) models.TrackResult {
	terminal := 0.0
	if last, ok := series.Last(); ok {
		terminal = last.Total
	}
	return models.TrackResult{
		Track:   track,
		Returns: periodReturns,
		Metrics: s.returnsSvc.Metrics(periodReturns, flows, terminal),
		NAV:     series.Monthly(),
	}
}

// decomposePnL splits profit into realized, unrealized, and income parts.
func (s *Service) decomposePnL(ledger models.LotLedger, tl *timeline.Timeline, cash models.CashLedger, prices interfaces.PriceSource, asOf time.Time) models.PnLBreakdown {
	var pnl models.PnLBreakdown
	pnl.Realized = ledger.RealizedPL()

	for _, pos := range tl.Positions(asOf) {
		price, ok := prices.PriceAsOf(pos.Symbol, asOf)
		if !ok {
			continue
		}
		value := pos.Quantity * price
		if pos.Currency != s.config.ValuationCurrency {
			if rate, rateOK := prices.FXRateAsOf(pos.Currency, asOf); rateOK {
				value *= rate
			} else {
				continue
			}
		}
		pnl.Unrealized += value - pos.CostBasis
	}

	for _, ev := range cash.Events {
		switch ev.Kind {
		case models.CashDividend:
			pnl.Dividends += ev.Amount
		case models.CashInterest:
			pnl.Interest += ev.Amount
		case models.CashFee:
			pnl.Fees += -ev.Amount
		}
	}

	pnl.Total = pnl.Realized + pnl.Unrealized + pnl.Dividends + pnl.Interest - pnl.Fees
	return pnl
}

// costSplit separates cost basis explained by observed lots from cost
// carried by synthetic lots.
func costSplit(ledger models.LotLedger) (observed, synthetic float64) {
	for _, lot := range ledger.OpenLots {
		if lot.IsSynthetic {
			synthetic += lot.CostBasis()
		} else {
			observed += lot.CostBasis()
		}
	}
	return observed, synthetic
}

func filterHoldings(holdings []models.Holding, providers, accounts []string) []models.Holding {
	if len(providers) == 0 && len(accounts) == 0 {
		return holdings
	}
	match := func(val string, allowed []string) bool {
		if len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == val {
				return true
			}
		}
		return false
	}
	var out []models.Holding
	for _, h := range holdings {
		if match(h.Source, providers) && match(h.Account, accounts) {
			out = append(out, h)
		}
	}
	return out
}

// collectUnpriceable merges seed-stage unpriceable symbols with symbols the
// NAV evaluation could not price, deduplicated and sorted.
func collectUnpriceable(seedUnpriceable []string, series models.NAVSeries) []string {
	seen := make(map[string]bool)
	for _, sym := range seedUnpriceable {
		seen[sym] = true
	}
	for _, p := range series.Points {
		for _, sym := range p.Unpriceable {
			seen[sym] = true
		}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
