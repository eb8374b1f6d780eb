// Package interfaces defines service contracts for perfrecon
package interfaces

import (
	"context"
	"time"

	"github.com/mkeating/perfrecon/internal/models"
)

// BarCache stores fetched EOD bars so repeated runs do not refetch history.
// The cache sits under the market data client; the core pipeline never
// touches it.
type BarCache interface {
	GetBars(ctx context.Context, key string) ([]models.EODBar, time.Time, error)
	PutBars(ctx context.Context, key string, bars []models.EODBar) error
}

// ResultStore persists analysis results for later inspection.
type ResultStore interface {
	SaveResult(ctx context.Context, name string, result *models.PerformanceResult) error
	GetResult(ctx context.Context, name string) (*models.PerformanceResult, error)
	ListResults(ctx context.Context) ([]string, error)
}
