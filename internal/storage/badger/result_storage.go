package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/mkeating/perfrecon/internal/common"
	"github.com/mkeating/perfrecon/internal/interfaces"
	"github.com/mkeating/perfrecon/internal/models"
)

// ResultEntry stores one persisted analysis result.
type ResultEntry struct {
	Name    string `badgerhold:"key"`
	Result  models.PerformanceResult
	SavedAt time.Time
}

// Compile-time interface check
var _ interfaces.ResultStore = (*resultStorage)(nil)

type resultStorage struct {
	store  *Store
	logger *common.Logger
}

// NewResultStore creates a ResultStore backed by BadgerHold.
func NewResultStore(store *Store, logger *common.Logger) interfaces.ResultStore {
	return &resultStorage{store: store, logger: logger}
}

func (s *resultStorage) SaveResult(_ context.Context, name string, result *models.PerformanceResult) error {
	if result == nil {
		return fmt.Errorf("nil result for %q", name)
	}
	entry := ResultEntry{Name: name, Result: *result, SavedAt: time.Now().UTC()}
	if err := s.store.db.Upsert(name, &entry); err != nil {
		return fmt.Errorf("failed to save result %q: %w", name, err)
	}
	s.logger.Debug().Str("name", name).Msg("Analysis result saved")
	return nil
}

func (s *resultStorage) GetResult(_ context.Context, name string) (*models.PerformanceResult, error) {
	var entry ResultEntry
	err := s.store.db.Get(name, &entry)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("result %q not found", name)
		}
		return nil, fmt.Errorf("failed to load result %q: %w", name, err)
	}
	return &entry.Result, nil
}

func (s *resultStorage) ListResults(_ context.Context) ([]string, error) {
	var entries []ResultEntry
	if err := s.store.db.Find(&entries, nil); err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names, nil
}
