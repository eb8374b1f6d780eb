// Package app wires config, storage, clients, and services into a runnable
// application core shared by the CLI entrypoints.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mkeating/perfrecon/internal/clients/marketdata"
	"github.com/mkeating/perfrecon/internal/common"
	"github.com/mkeating/perfrecon/internal/interfaces"
	"github.com/mkeating/perfrecon/internal/services/analysis"
	"github.com/mkeating/perfrecon/internal/storage/badger"
)

// barCacheTTL is how long cached EOD bars are considered fresh. Closed
// trading days never change, so a long TTL only delays picking up the
// newest bar.
const barCacheTTL = 12 * time.Hour

// App holds all initialized services, clients, and storage.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Analysis    interfaces.AnalysisService
	ResultStore interfaces.ResultStore
	StartupTime time.Time

	cacheStore  *badger.Store
	resultStore *badger.Store
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, the market data client, and the
// analysis service. configPath may be empty, in which case the default
// resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	binDir := getBinaryDir()

	// Resolve config - provided path, PERFRECON_CONFIG, binary dir, then dev fallback
	if configPath == "" {
		configPath = os.Getenv("PERFRECON_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "perfrecon.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/perfrecon.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage paths to binary directory
	if config.Storage.Cache.Path != "" && !filepath.IsAbs(config.Storage.Cache.Path) {
		config.Storage.Cache.Path = filepath.Join(binDir, config.Storage.Cache.Path)
	}
	if config.Storage.Results.Path != "" && !filepath.IsAbs(config.Storage.Results.Path) {
		config.Storage.Results.Path = filepath.Join(binDir, config.Storage.Results.Path)
	}

	logger := common.NewLogger(config.Logging.Level)

	cacheStore, err := badger.NewStore(logger, config.Storage.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bar cache: %w", err)
	}

	resultStore, err := badger.NewStore(logger, config.Storage.Results.Path)
	if err != nil {
		cacheStore.Close()
		return nil, fmt.Errorf("failed to open result store: %w", err)
	}

	barCache := badger.NewBarCache(cacheStore, logger)

	if config.MarketData.APIKey == "" {
		logger.Warn().Msg("Market data API key not configured - unpriced positions will be flagged")
	}

	mdClient := marketdata.NewClient(config.MarketData.APIKey,
		marketdata.WithBaseURL(config.MarketData.BaseURL),
		marketdata.WithLogger(logger),
		marketdata.WithRateLimit(config.MarketData.RateLimit),
		marketdata.WithTimeout(config.MarketData.GetTimeout()),
		marketdata.WithRetries(config.MarketData.Retries),
		marketdata.WithCache(barCache, barCacheTTL),
	)

	analysisService := analysis.NewService(mdClient, config, logger)

	a := &App{
		Config:      config,
		Logger:      logger,
		Analysis:    analysisService,
		ResultStore: badger.NewResultStore(resultStore, logger),
		StartupTime: startupStart,

		cacheStore:  cacheStore,
		resultStore: resultStore,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// Close releases all resources held by the App.
func (a *App) Close() {
	if a.cacheStore != nil {
		a.cacheStore.Close()
		a.cacheStore = nil
	}
	if a.resultStore != nil {
		a.resultStore.Close()
		a.resultStore = nil
	}
}
