package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkeating/perfrecon/internal/app"
	"github.com/mkeating/perfrecon/internal/common"
	"github.com/mkeating/perfrecon/internal/models"
	"github.com/mkeating/perfrecon/internal/report"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to TOML config file")
		inputPath  = flag.String("input", "", "path to JSON request bundle (record sets, holdings, backfills)")
		outputPath = flag.String("output", "", "write result JSON to this file (default stdout)")
		chartPath  = flag.String("chart", "", "write a NAV chart PNG to this file")
		saveName   = flag.String("save", "", "persist the result in the result store under this name")
		listRuns   = flag.Bool("list", false, "list persisted results and exit")
		showRun    = flag.String("show", "", "print a persisted result by name and exit")
		version    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("perfrecon %s (built %s)\n", common.Version, common.BuildTime)
		return
	}

	a, err := app.NewApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel the run on interrupt so a half-finished prefetch doesn't hang
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		a.Logger.Warn().Msg("Interrupt received, cancelling analysis")
		cancel()
	}()

	if *listRuns {
		if err := runList(ctx, a); err != nil {
			a.Logger.Error().Err(err).Msg("Failed to list results")
			os.Exit(1)
		}
		return
	}

	if *showRun != "" {
		if err := runShow(ctx, a, *showRun, *outputPath); err != nil {
			a.Logger.Error().Err(err).Str("name", *showRun).Msg("Failed to load result")
			os.Exit(1)
		}
		return
	}

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: perfrecon -input bundle.json [-output result.json] [-chart nav.png] [-save name]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	result, err := runAnalysis(ctx, a, *inputPath)
	if err != nil {
		a.Logger.Error().Err(err).Msg("Analysis failed")
		os.Exit(1)
	}

	if err := writeResult(result, *outputPath); err != nil {
		a.Logger.Error().Err(err).Msg("Failed to write result")
		os.Exit(1)
	}

	if *chartPath != "" {
		if err := writeChart(result, *chartPath); err != nil {
			a.Logger.Error().Err(err).Msg("Failed to render chart")
			os.Exit(1)
		}
	}

	if *saveName != "" {
		if err := a.ResultStore.SaveResult(ctx, *saveName, result); err != nil {
			a.Logger.Error().Err(err).Str("name", *saveName).Msg("Failed to persist result")
			os.Exit(1)
		}
		a.Logger.Info().Str("name", *saveName).Msg("Result persisted")
	}

	if !result.Verdict.Reliable {
		// Result is still written; the exit code signals the verdict for scripting.
		os.Exit(3)
	}
}

func runAnalysis(ctx context.Context, a *app.App, inputPath string) (*models.PerformanceResult, error) {
	req, err := app.LoadRequest(inputPath, a.Config)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := a.Analysis.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}

	a.Logger.Info().
		Dur("elapsed", time.Since(start)).
		Bool("reliable", result.Verdict.Reliable).
		Float64("coverage_pct", result.Verdict.CoveragePct).
		Int("flags", len(result.Verdict.Flags)).
		Msg("Analysis complete")

	return result, nil
}

func runList(ctx context.Context, a *app.App) error {
	names, err := a.ResultStore.ListResults(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func runShow(ctx context.Context, a *app.App, name, outputPath string) error {
	result, err := a.ResultStore.GetResult(ctx, name)
	if err != nil {
		return err
	}
	return writeResult(result, outputPath)
}

func writeResult(result *models.PerformanceResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeChart(result *models.PerformanceResult, path string) error {
	png, err := report.RenderNAVChart(result)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, png, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
