package app

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mkeating/perfrecon/internal/common"
	"github.com/mkeating/perfrecon/internal/interfaces"
)

// LoadRequest reads an analysis request bundle from a JSON file. The bundle
// carries raw provider record sets, the current holdings statement, and any
// manual backfills; scope fields left empty in the bundle fall back to the
// config defaults.
func LoadRequest(path string, config *common.Config) (interfaces.AnalysisRequest, error) {
	var req interfaces.AnalysisRequest

	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("failed to read request bundle %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("failed to parse request bundle %s: %w", path, err)
	}

	applyScopeDefaults(&req, config)

	return req, nil
}

// applyScopeDefaults fills unset scope fields from the analysis config.
func applyScopeDefaults(req *interfaces.AnalysisRequest, config *common.Config) {
	if req.WindowStart.IsZero() && config.Analysis.WindowStart != "" {
		if t, err := time.Parse("2006-01-02", config.Analysis.WindowStart); err == nil {
			req.WindowStart = t.UTC()
		}
	}
	if req.WindowEnd.IsZero() && config.Analysis.WindowEnd != "" {
		if t, err := time.Parse("2006-01-02", config.Analysis.WindowEnd); err == nil {
			req.WindowEnd = t.UTC()
		}
	}
	if len(req.Providers) == 0 {
		req.Providers = config.Analysis.Providers
	}
	if len(req.Accounts) == 0 {
		req.Accounts = config.Analysis.Accounts
	}
}
