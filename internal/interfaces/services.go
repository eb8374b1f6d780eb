// Package interfaces defines service contracts for perfrecon
package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mkeating/perfrecon/internal/models"
)

// AnalysisService runs the full reconstruction pipeline and returns the
// single result artifact. The computation is a pure recompute: identical
// requests produce identical results.
type AnalysisService interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*models.PerformanceResult, error)
}

// ProviderRecordSet is one provider's raw transaction payload, dispatched to
// the adapter registered for Provider.
type ProviderRecordSet struct {
	Provider string          `json:"provider"`
	Records  json.RawMessage `json:"records"`
}

// AnalysisRequest carries everything an analysis run consumes.
type AnalysisRequest struct {
	RecordSets      []ProviderRecordSet     `json:"record_sets"`
	Holdings        []models.Holding        `json:"holdings"`
	ManualBackfills []models.ManualBackfill `json:"manual_backfills,omitempty"`

	// Scope filters; zero values mean unrestricted.
	WindowStart time.Time `json:"window_start,omitempty"`
	WindowEnd   time.Time `json:"window_end,omitempty"`
	Providers   []string  `json:"providers,omitempty"`
	Accounts    []string  `json:"accounts,omitempty"`
}

// NormalizeResult is the output of the normalization stage.
type NormalizeResult struct {
	Transactions []models.Transaction
	CashEvents   []models.CashEvent // income events emitted during normalization
	Dropped      int                // unmappable records, counted never merged
}

// ProviderAdapter converts one provider's raw records into canonical
// transactions. Adapters are registered by provider tag; dispatch is by
// tagged variant, never by sniffing record shapes.
type ProviderAdapter interface {
	Provider() string
	Normalize(records json.RawMessage) (NormalizeResult, error)
}
