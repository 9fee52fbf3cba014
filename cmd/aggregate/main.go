package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cdrflow/internal/config"
	"cdrflow/internal/exporter"
	"cdrflow/internal/indicators"
	"cdrflow/internal/ingest"
)

func main() {
	configFile := flag.String("config", "", "path to config file (defaults to config.yaml if present)")
	dataDir := flag.String("data", "", "raw CDR directory (overrides config)")
	resultsDir := flag.String("out", "", "results directory (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Paths.DataDir = *dataDir
	}
	if *resultsDir != "" {
		cfg.Paths.ResultsDir = *resultsDir
	}

	logger := cfg.Logging.NewLogger(os.Stdout)
	slog.SetDefault(logger)
	ctx := context.Background()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Aggregation run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	start := time.Now()

	// Load inputs
	loader := ingest.NewLoader(ingest.Options{
		Separator: rune(cfg.Load.Separator[0]),
		Header:    cfg.Load.Header,
		Datemask:  cfg.Load.Datemask,
	}, logger)

	events, err := loader.LoadEvents(cfg.Paths.DataDir)
	if err != nil {
		return err
	}

	if cfg.Load.Sample > 0 {
		periodStart, _, err := cfg.Period()
		if err != nil {
			return err
		}
		events, err = ingest.SampleSubscribers(events, cfg.Load.Sample, cfg.Load.Seed, periodStart.AddDate(0, 0, 1))
		if err != nil {
			return err
		}
		logger.Info("sampled subscribers", "events", len(events))
	}

	cells, err := ingest.LoadCells(cfg.Paths.CellsFile)
	if err != nil {
		return err
	}

	var distances indicators.DistanceMatrix
	if cfg.Paths.DistancesFile != "" {
		distances, err = ingest.LoadDistances(cfg.Paths.DistancesFile)
		if err != nil {
			return err
		}
	}

	var incidence indicators.IncidenceTable
	if cfg.Runner.IncludeIncidence {
		incidence, err = ingest.LoadIncidence(cfg.Paths.IncidenceFile)
		if err != nil {
			return err
		}
	}

	// Build the aggregator over the enriched event sequence
	enriched := indicators.Enrich(events, cells)
	agg := indicators.NewAggregator(enriched, distances, incidence, logger)

	periodStart, periodEnd, err := cfg.Period()
	if err != nil {
		return err
	}
	period := indicators.Period{Start: periodStart, End: periodEnd}

	weeksStart, weeksEnd, err := cfg.WeeksPeriod()
	if err != nil {
		return err
	}
	weeksPeriod := indicators.Period{Start: weeksStart, End: weeksEnd}

	// Home regions: reuse the cached assignment when configured and present
	homesPath := filepath.Join(cfg.Paths.ResultsDir, cfg.Paths.HomesFile)
	if cfg.Runner.ReuseHomeLocations {
		if homes, err := ingest.LoadHomeLocations(homesPath); err == nil {
			agg.SetHomeRegions(homes)
			logger.Info("reusing cached home locations", "subscribers", len(homes))
		} else {
			logger.Warn("home location cache unusable, recomputing", "error", err)
		}
	}
	if len(agg.HomeRegions()) == 0 {
		homes := agg.ResolvePeriodHomes(period)
		agg.SetHomeRegions(homes)
		if err := ingest.SaveHomeLocations(homes, homesPath); err != nil {
			return err
		}
		logger.Info("home locations resolved", "subscribers", len(homes))
	}

	// Run and persist indicators
	store := exporter.NewCSVStore(cfg.Paths.ResultsDir, logger)
	runner := indicators.NewRunner(agg, store, cfg.Runner.MaxConcurrency, logger)

	statuses := runner.RunAllFrequencies(ctx, period, weeksPeriod)

	if cfg.Runner.IncludeIncidence {
		windowStart, windowEnd, err := cfg.IncidenceWindow()
		if err != nil {
			return err
		}
		window := indicators.Period{Start: windowStart, End: windowEnd}
		statuses = append(statuses, runner.RunIncidence(ctx, window)...)
	}

	var failed, skipped int
	for _, status := range statuses {
		if status.Err != nil {
			failed++
		}
		if status.Skipped {
			skipped++
		}
	}
	logger.Info("aggregation run complete",
		"indicators", len(statuses),
		"skipped", skipped,
		"failed", failed,
		"elapsed", time.Since(start))
	if failed > 0 {
		logger.Warn("some indicators failed; re-run to retry only the missing ones")
	}
	return nil
}
