// Package normalize converts provider-specific transaction records into the
// canonical Transaction shape consumed by the rest of the pipeline.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkeating/perfrecon/internal/common"
	"github.com/mkeating/perfrecon/internal/interfaces"
	"github.com/mkeating/perfrecon/internal/models"
)

// Service dispatches raw provider payloads to registered adapters and merges
// their output into one chronologically sorted transaction stream.
type Service struct {
	adapters map[string]interfaces.ProviderAdapter
	logger   *common.Logger
}

// NewService creates a normalizer with the built-in provider adapters
// registered.
func NewService(logger *common.Logger) *Service {
	s := &Service{
		adapters: make(map[string]interfaces.ProviderAdapter),
		logger:   logger,
	}
	s.Register(NewBrokerDirectAdapter())
	s.Register(NewAggregatorAdapter())
	s.Register(NewCustodialAdapter())
	return s
}

// Register adds or replaces the adapter for its provider tag.
func (s *Service) Register(a interfaces.ProviderAdapter) {
	s.adapters[strings.ToLower(a.Provider())] = a
}

// Scope restricts which transactions survive normalization.
type Scope struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Providers   []string
	Accounts    []string
}

func (sc Scope) allowsProvider(p string) bool {
	if len(sc.Providers) == 0 {
		return true
	}
	for _, allowed := range sc.Providers {
		if strings.EqualFold(allowed, p) {
			return true
		}
	}
	return false
}

func (sc Scope) allowsAccount(a string) bool {
	if len(sc.Accounts) == 0 {
		return true
	}
	for _, allowed := range sc.Accounts {
		if strings.EqualFold(allowed, a) {
			return true
		}
	}
	return false
}

func (sc Scope) allowsDate(d time.Time) bool {
	if !sc.WindowStart.IsZero() && d.Before(sc.WindowStart) {
		return false
	}
	if !sc.WindowEnd.IsZero() && d.After(sc.WindowEnd) {
		return false
	}
	return true
}

// Normalize runs every record set through its adapter, applies the scope
// filters, assigns deterministic IDs, and returns the merged result.
// An unregistered provider is a contract violation and returns an error;
// individual unmappable records inside a payload are dropped and counted.
func (s *Service) Normalize(sets []interfaces.ProviderRecordSet, scope Scope) (interfaces.NormalizeResult, error) {
	var merged interfaces.NormalizeResult

	for _, set := range sets {
		if !scope.allowsProvider(set.Provider) {
			continue
		}

		adapter, ok := s.adapters[strings.ToLower(set.Provider)]
		if !ok {
			return interfaces.NormalizeResult{}, fmt.Errorf("no adapter registered for provider %q", set.Provider)
		}

		res, err := adapter.Normalize(set.Records)
		if err != nil {
			return interfaces.NormalizeResult{}, fmt.Errorf("provider %s: %w", set.Provider, err)
		}

		kept := 0
		for _, tx := range res.Transactions {
			if !scope.allowsAccount(tx.Account) || !scope.allowsDate(tx.Date) {
				continue
			}
			merged.Transactions = append(merged.Transactions, tx)
			kept++
		}
		for _, ev := range res.CashEvents {
			if !scope.allowsAccount(ev.Account) || !scope.allowsDate(ev.Date) {
				continue
			}
			merged.CashEvents = append(merged.CashEvents, ev)
		}
		merged.Dropped += res.Dropped

		s.logger.Debug().
			Str("provider", set.Provider).
			Int("kept", kept).
			Int("dropped", res.Dropped).
			Msg("Provider records normalized")
	}

	models.SortTransactions(merged.Transactions)
	assignIDs(merged.Transactions)

	if merged.Dropped > 0 {
		s.logger.Warn().Int("dropped", merged.Dropped).Msg("Unmappable provider records dropped")
	}

	return merged, nil
}

// assignIDs gives each transaction a deterministic ID so identical inputs
// reproduce identical outputs across runs.
func assignIDs(txs []models.Transaction) {
	for i := range txs {
		key := fmt.Sprintf("%s|%s|%s|%s|%.8f|%.8f|%d",
			txs[i].Source, txs[i].Account, txs[i].Symbol, txs[i].Side,
			txs[i].Quantity, txs[i].Price, i)
		txs[i].ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
	}
}
