package main

import (
	"context"
	"flag"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/pthm-cable/tumorsnap/config"
	"github.com/pthm-cable/tumorsnap/dataset"
	"github.com/pthm-cable/tumorsnap/ingest"
	"github.com/pthm-cable/tumorsnap/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	input := flag.String("input", "", "Seed file, directory, .tar/.tar.gz archive, or s3://bucket/prefix")
	output := flag.String("output", "", "Dataset path (empty = use config)")
	csvDir := flag.String("csv-dir", "", "Output directory for CSV summaries (empty = use config)")
	exclude := flag.String("exclude", "", "Comma-separated seed ids to skip, added to config")
	workers := flag.Int("workers", 0, "Concurrent seed decoders (0 = use config)")
	metricsFile := flag.String("metrics-file", "", "Prometheus textfile path (empty = use config)")
	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		fatal("failed to load config", err)
	}
	cfg := config.Cfg()

	if *input == "" {
		slog.Error("--input is required")
		os.Exit(2)
	}

	excludeSet := maps.Clone(cfg.Derived.ExcludeSet)
	for _, s := range strings.Split(*exclude, ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		seed, err := strconv.Atoi(s)
		if err != nil {
			fatal("invalid --exclude", err)
		}
		excludeSet[seed] = true
	}

	// CLI overrides config
	if *output == "" {
		*output = cfg.Output.Dataset
	}
	if *csvDir == "" {
		*csvDir = cfg.Output.CSVDir
	}
	if *metricsFile == "" {
		*metricsFile = cfg.Output.MetricsFile
	}
	if *workers == 0 {
		*workers = cfg.Derived.Workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	src, err := ingest.OpenSource(ctx, *input, ingest.S3Config{
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		PathStyle:       cfg.S3.PathStyle,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	})
	if err != nil {
		fatal("failed to open input", err)
	}

	metrics := ingest.NewMetrics()
	perf := telemetry.NewPerfCollector(256)

	slog.Info("starting ingestion",
		"input", src.String(),
		"workers", *workers,
		"excluded", len(excludeSet),
		"species", cfg.Ingest.Species,
	)

	res, err := ingest.Run(ctx, src, ingest.Options{
		Species: cfg.Ingest.Species,
		Types:   cfg.Ingest.TypeCodes,
		Exclude: excludeSet,
		Workers: *workers,
		Metrics: metrics,
		Perf:    perf,
	})
	if err != nil {
		fatal("ingestion failed", err)
	}
	perf.Stats().LogStats()

	summary := res.Summary(src.String())
	if *output != "" {
		mode, err := dataset.Persist(ctx, *output, res.Dataset, dataset.PersistOptions{
			MaxBlobBytes:       cfg.Output.MaxBlobBytes,
			StatesOnlyFallback: cfg.Output.StatesOnlyFallback,
		})
		if err != nil {
			fatal("failed to persist dataset", err)
		}
		summary.Mode = string(mode)
	}
	slog.Info("ingestion complete", "summary", summary)

	om, err := telemetry.NewOutputManager(*csvDir)
	if err != nil {
		fatal("failed to create output manager", err)
	}
	defer om.Close()

	if err := om.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config", "error", err)
	}
	if err := om.WriteIngest(summary); err != nil {
		slog.Error("failed to write ingest summary", "error", err)
	}
	volume := cfg.Derived.VoxelVolume[res.Dataset.Setup.Geometry]
	collector := telemetry.NewCollector(cfg.DeadTypeCodes(), volume)
	if err := collector.Export(res.Dataset, om); err != nil {
		slog.Error("failed to export summaries", "error", err)
	}

	if *metricsFile != "" {
		if err := metrics.WriteTextfile(*metricsFile); err != nil {
			slog.Error("failed to write metrics", "error", err)
		}
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
