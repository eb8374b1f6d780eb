package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "USD", cfg.ValuationCurrency)
	assert.Equal(t, 70.0, cfg.Thresholds.MinCoveragePct)
	assert.Equal(t, 3, cfg.Thresholds.MaxIncompleteTrades)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perfrecon.toml")
	content := `
valuation_currency = "AUD"

[thresholds]
min_coverage_pct = 55.0
max_incomplete_trades = 10

[logging]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "AUD", cfg.ValuationCurrency)
	assert.Equal(t, 55.0, cfg.Thresholds.MinCoveragePct)
	assert.Equal(t, 10, cfg.Thresholds.MaxIncompleteTrades)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched values keep defaults
	assert.Equal(t, 5000.0, cfg.Thresholds.SyntheticImpactAmount)
}

func TestLoadConfig_MissingFileSkipped(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/perfrecon.toml")
	require.NoError(t, err)
	assert.Equal(t, "USD", cfg.ValuationCurrency)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PERFRECON_VALUATION_CURRENCY", "gbp")
	t.Setenv("PERFRECON_LOG_LEVEL", "warn")
	t.Setenv("PERFRECON_MARKETDATA_RATE_LIMIT", "4")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "GBP", cfg.ValuationCurrency)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 4, cfg.MarketData.RateLimit)
}

func TestValidateValuationCurrency_BadValueFallsBack(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.ValuationCurrency = "DOLLARS"
	validateValuationCurrency(cfg)
	assert.Equal(t, "USD", cfg.ValuationCurrency)
}
