package lots

import (
	"github.com/mkeating/perfrecon/internal/models"
)

// DeltaGap measures, per symbol, the disagreement between share change
// implied by observed transactions and the actual currently-held quantity.
// A positive gap means the provider holds more than observed activity can
// produce, which indicates missing buy history.
type DeltaGap struct {
	Symbol      string  `json:"symbol"`
	ObservedNet float64 `json:"observed_net"` // buys − sells + covers − shorts
	Held        float64 `json:"held"`
	Gap         float64 `json:"gap"` // held − observed net
}

// ComputeDeltaGaps derives the per-symbol gap between transaction-implied
// and reported share counts.
func ComputeDeltaGaps(txs []models.Transaction, holdings []models.Holding) map[string]DeltaGap {
	net := make(map[string]float64)
	for _, tx := range txs {
		switch tx.Side {
		case models.SideBuy:
			net[tx.Symbol] += tx.Quantity
		case models.SideSell:
			net[tx.Symbol] -= tx.Quantity
		case models.SideShort:
			net[tx.Symbol] -= tx.Quantity
		case models.SideCover:
			net[tx.Symbol] += tx.Quantity
		}
	}

	held := make(map[string]float64)
	for _, h := range holdings {
		held[h.Symbol] += h.Quantity
	}

	gaps := make(map[string]DeltaGap)
	seen := make(map[string]bool)
	for sym, n := range net {
		gaps[sym] = DeltaGap{Symbol: sym, ObservedNet: n, Held: held[sym], Gap: held[sym] - n}
		seen[sym] = true
	}
	for sym, h := range held {
		if !seen[sym] {
			gaps[sym] = DeltaGap{Symbol: sym, Held: h, Gap: h}
		}
	}
	return gaps
}

// SuppressedShortSymbols applies the data-driven short-inference policy:
// inference is disabled for any symbol whose delta gap shows current
// holdings exceeding what observed activity could produce. Treating such a
// symbol's unmatched sells as shorts would misread missing buy history as a
// short position and corrupt unrealized P&L.
func SuppressedShortSymbols(gaps map[string]DeltaGap) map[string]bool {
	suppressed := make(map[string]bool)
	for sym, g := range gaps {
		if g.Gap > qtyEpsilon {
			suppressed[sym] = true
		}
	}
	return suppressed
}
