package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/mkeating/perfrecon/internal/common"
	"github.com/mkeating/perfrecon/internal/interfaces"
	"github.com/mkeating/perfrecon/internal/models"
)

// BarCacheEntry stores one symbol's fetched bar history.
type BarCacheEntry struct {
	Key       string `badgerhold:"key"`
	Bars      []models.EODBar
	FetchedAt time.Time
}

// Compile-time interface check
var _ interfaces.BarCache = (*barCache)(nil)

type barCache struct {
	store  *Store
	logger *common.Logger
}

// NewBarCache creates a BarCache backed by BadgerHold.
func NewBarCache(store *Store, logger *common.Logger) interfaces.BarCache {
	return &barCache{store: store, logger: logger}
}

func (c *barCache) GetBars(_ context.Context, key string) ([]models.EODBar, time.Time, error) {
	var entry BarCacheEntry
	err := c.store.db.Get(key, &entry)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, time.Time{}, fmt.Errorf("bars for %q not cached", key)
		}
		return nil, time.Time{}, fmt.Errorf("failed to read bar cache %q: %w", key, err)
	}
	return entry.Bars, entry.FetchedAt, nil
}

func (c *barCache) PutBars(_ context.Context, key string, bars []models.EODBar) error {
	entry := BarCacheEntry{Key: key, Bars: bars, FetchedAt: time.Now().UTC()}
	if err := c.store.db.Upsert(key, &entry); err != nil {
		return fmt.Errorf("failed to cache bars for %q: %w", key, err)
	}
	return nil
}
