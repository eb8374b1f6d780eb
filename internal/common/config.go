package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for perfrecon
type Config struct {
	Environment       string           `toml:"environment"`
	ValuationCurrency string           `toml:"valuation_currency"` // Currency all NAV/return figures are reported in (default "USD")
	Analysis          AnalysisConfig   `toml:"analysis"`
	Thresholds        ThresholdConfig  `toml:"thresholds"`
	Storage           StorageConfig    `toml:"storage"`
	MarketData        MarketDataConfig `toml:"market_data"`
	Logging           LoggingConfig    `toml:"logging"`
}

// AnalysisConfig holds default scope settings for an analysis run.
type AnalysisConfig struct {
	WindowStart string   `toml:"window_start"` // "2006-01-02", empty = earliest transaction
	WindowEnd   string   `toml:"window_end"`   // "2006-01-02", empty = yesterday
	Providers   []string `toml:"providers"`    // restrict to these source providers, empty = all
	Accounts    []string `toml:"accounts"`     // restrict to these accounts, empty = all
}

// ThresholdConfig holds the reconciliation and confidence thresholds.
// Passed explicitly into the reconciliation stage so runs are testable
// with overridden values.
type ThresholdConfig struct {
	MinCoveragePct        float64 `toml:"min_coverage_pct"`         // observed share of cost basis below which coverage is flagged
	SyntheticImpactAmount float64 `toml:"synthetic_impact_amount"`  // absolute P&L divergence between tracks that triggers a flag
	ReconGapPct           float64 `toml:"recon_gap_pct"`            // reconciliation gap as % of NAV P&L that triggers a flag
	MaxIncompleteTrades   int     `toml:"max_incomplete_trades"`    // incomplete-trade count above which reliability degrades
	ExtremeMonthlyReturn  float64 `toml:"extreme_monthly_return"`   // absolute monthly return (fraction) treated as an outlier
	NegligibleNotional    float64 `toml:"negligible_notional"`      // positions below this value are suppressed from diagnostics
	UnpriceableSevereCnt  int     `toml:"unpriceable_severe_count"` // unpriceable symbol count above which the verdict fails
}

// StorageConfig holds storage paths for the cache and result areas.
type StorageConfig struct {
	Cache   AreaConfig `toml:"cache"`   // price bars and FX rates (BadgerHold)
	Results AreaConfig `toml:"results"` // persisted analysis results (BadgerHold)
}

// AreaConfig holds path configuration for a storage area.
type AreaConfig struct {
	Path string `toml:"path"`
}

// MarketDataConfig holds the market data provider configuration.
type MarketDataConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
	Retries   int    `toml:"retries"`
}

// GetTimeout parses and returns the timeout duration
func (c *MarketDataConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment:       "development",
		ValuationCurrency: "USD",
		Thresholds: ThresholdConfig{
			MinCoveragePct:        70.0,
			SyntheticImpactAmount: 5000.0,
			ReconGapPct:           5.0,
			MaxIncompleteTrades:   3,
			ExtremeMonthlyReturn:  0.60,
			NegligibleNotional:    25.0,
			UnpriceableSevereCnt:  2,
		},
		Storage: StorageConfig{
			Cache:   AreaConfig{Path: "data/cache"},
			Results: AreaConfig{Path: "data/results"},
		},
		MarketData: MarketDataConfig{
			BaseURL:   "https://eodhd.com/api",
			RateLimit: 10,
			Timeout:   "30s",
			Retries:   3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Later files override earlier ones; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	validateValuationCurrency(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PERFRECON_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("PERFRECON_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if key := os.Getenv("PERFRECON_MARKETDATA_API_KEY"); key != "" {
		config.MarketData.APIKey = key
	}

	if url := os.Getenv("PERFRECON_MARKETDATA_BASE_URL"); url != "" {
		config.MarketData.BaseURL = url
	}

	if rl := os.Getenv("PERFRECON_MARKETDATA_RATE_LIMIT"); rl != "" {
		if n, err := strconv.Atoi(rl); err == nil && n > 0 {
			config.MarketData.RateLimit = n
		}
	}

	if path := os.Getenv("PERFRECON_DATA_PATH"); path != "" {
		config.Storage.Cache.Path = path + "/cache"
		config.Storage.Results.Path = path + "/results"
	}

	if vc := os.Getenv("PERFRECON_VALUATION_CURRENCY"); vc != "" {
		config.ValuationCurrency = strings.ToUpper(vc)
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// validateValuationCurrency ensures the valuation currency is a plausible
// ISO-4217 code, defaulting to USD.
func validateValuationCurrency(config *Config) {
	vc := strings.ToUpper(strings.TrimSpace(config.ValuationCurrency))
	if len(vc) != 3 {
		vc = "USD"
	}
	config.ValuationCurrency = vc
}
