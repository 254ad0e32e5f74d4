// Package ingest assembles a multi-seed dataset from raw snapshot files.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"runtime"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/tumorsnap/codec"
	"github.com/pthm-cable/tumorsnap/dataset"
	"github.com/pthm-cable/tumorsnap/lattice"
	"github.com/pthm-cable/tumorsnap/telemetry"
)

var (
	// ErrGeometryMismatch is returned when a seed's coordinates do not match
	// the geometry detected from the first seed.
	ErrGeometryMismatch = codec.ErrGeometryMismatch
	ErrSetupMismatch    = errors.New("setup mismatch across seeds")
	ErrNoSeeds          = errors.New("no seed files found")
	ErrDuplicateSeed    = errors.New("duplicate seed id")
	ErrNoGeometry       = errors.New("no occupied coordinate to detect geometry from")
)

// Options controls one ingestion run.
type Options struct {
	Species []string     // Molecule grids required in every timepoint
	Types   []int        // Cell type codes recorded in the setup
	Exclude map[int]bool // Seed ids to skip
	Workers int          // Concurrent seed decoders (0 = GOMAXPROCS)

	Metrics *Metrics                 // optional
	Perf    *telemetry.PerfCollector // optional
}

// Result is an assembled dataset plus run bookkeeping.
type Result struct {
	Dataset  *dataset.Dataset
	Excluded []int
	Cells    int
	Elapsed  time.Duration
}

// Summary converts the result for CSV export.
func (r *Result) Summary(source string) telemetry.IngestSummary {
	s := r.Dataset.Setup
	return telemetry.IngestSummary{
		Source:     source,
		Geometry:   s.Geometry.String(),
		Radius:     s.Radius,
		Height:     s.Height,
		Seeds:      len(s.Seeds),
		Excluded:   len(r.Excluded),
		Timepoints: len(s.Times),
		Cells:      r.Cells,
		ElapsedMS:  r.Elapsed.Milliseconds(),
	}
}

type seedFile struct {
	seed int
	name string
	file *codec.File
}

// Run reads every seed from src, decodes all timepoints, and stacks them in
// seed-ascending order. Any malformed timepoint aborts the whole run.
func Run(ctx context.Context, src Source, opts Options) (*Result, error) {
	start := time.Now()

	files, excluded, err := collect(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", src, ErrNoSeeds)
	}

	setup, err := deriveSetup(files, opts)
	if err != nil {
		return nil, err
	}
	for _, sf := range files[1:] {
		if err := checkSetup(setup, sf); err != nil {
			return nil, err
		}
	}

	d, err := dataset.New(setup)
	if err != nil {
		return nil, err
	}
	slog.Info("ingest setup", "setup", setup)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	cells := make([]int, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for si, sf := range files {
		g.Go(func() error {
			n, err := decodeSeed(gctx, d, si, sf, opts)
			if err != nil {
				opts.Metrics.seed("failed")
				return err
			}
			cells[si] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, n := range cells {
		total += n
	}
	return &Result{Dataset: d, Excluded: excluded, Cells: total, Elapsed: time.Since(start)}, nil
}

// collect parses every member's outer structure, dropping excluded seeds.
func collect(ctx context.Context, src Source, opts Options) ([]seedFile, []int, error) {
	var files []seedFile
	var excluded []int
	seen := make(map[int]string)
	err := src.Walk(ctx, func(m Member) error {
		f, err := codec.ParseFile(m.Data)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
		seed, err := seedID(m.Name, f)
		if err != nil {
			return err
		}
		if prev, ok := seen[seed]; ok {
			return fmt.Errorf("%w: %d in %s and %s", ErrDuplicateSeed, seed, prev, m.Name)
		}
		seen[seed] = m.Name
		if opts.Exclude[seed] {
			excluded = append(excluded, seed)
			opts.Metrics.seed("excluded")
			slog.Info("seed excluded", "seed", seed, "member", m.Name)
			return nil
		}
		files = append(files, seedFile{seed: seed, name: m.Name, file: f})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].seed < files[j].seed })
	sort.Ints(excluded)
	return files, excluded, nil
}

var seedSuffix = regexp.MustCompile(`_(\d+)$`)

// seedID takes the seed from the file's seed field, falling back to the
// trailing _NNNN of the member name.
func seedID(name string, f *codec.File) (int, error) {
	if f.Seed != nil {
		return *f.Seed, nil
	}
	base := strings.TrimSuffix(path.Base(strings.ReplaceAll(name, "\\", "/")), ".json")
	m := seedSuffix.FindStringSubmatch(base)
	if m == nil {
		return 0, fmt.Errorf("%s: no seed field and no _NNNN suffix in name", name)
	}
	return strconv.Atoi(m[1])
}

// deriveSetup captures the run setup from the first seed. Geometry comes
// from the first non-empty cell entry, scanning timepoints in order.
func deriveSetup(files []seedFile, opts Options) (dataset.Setup, error) {
	first := files[0]
	geom, err := detectGeometry(first)
	if err != nil {
		return dataset.Setup{}, err
	}
	times, err := first.file.Times()
	if err != nil {
		return dataset.Setup{}, codec.Locate(err, first.seed, -1)
	}
	seeds := make([]int, len(files))
	for i, sf := range files {
		seeds[i] = sf.seed
	}
	cfg := first.file.Config
	return dataset.Setup{
		Geometry:    geom,
		Radius:      cfg.Radius,
		Height:      cfg.Height,
		Times:       times,
		Populations: slices.Clone(cfg.Populations),
		Types:       slices.Clone(opts.Types),
		Seeds:       seeds,
		Species:     slices.Clone(opts.Species),
		Coords:      lattice.Enumerate(geom, cfg.Radius),
	}, nil
}

func detectGeometry(sf seedFile) (lattice.Geometry, error) {
	for ti := range sf.file.Timepoints {
		tp, err := sf.file.Timepoint(ti)
		if err != nil {
			return 0, codec.Locate(err, sf.seed, ti)
		}
		for _, e := range tp.Cells {
			if len(e.Cells) == 0 {
				continue
			}
			g, err := lattice.FromRawArity(len(e.Coord))
			if err != nil {
				return 0, codec.Locate(fmt.Errorf("%w: %v", ErrGeometryMismatch, err), sf.seed, ti)
			}
			return g, nil
		}
	}
	return 0, fmt.Errorf("seed %d: %w", sf.seed, ErrNoGeometry)
}

// checkSetup asserts a later seed agrees with the captured setup.
func checkSetup(s dataset.Setup, sf seedFile) error {
	cfg := sf.file.Config
	if cfg.Radius != s.Radius || cfg.Height != s.Height {
		return fmt.Errorf("%w: seed %d has radius %d height %d, want %d and %d",
			ErrSetupMismatch, sf.seed, cfg.Radius, cfg.Height, s.Radius, s.Height)
	}
	if !slices.Equal(cfg.Populations, s.Populations) {
		return fmt.Errorf("%w: seed %d populations %v, want %v", ErrSetupMismatch, sf.seed, cfg.Populations, s.Populations)
	}
	times, err := sf.file.Times()
	if err != nil {
		return codec.Locate(err, sf.seed, -1)
	}
	if !slices.Equal(times, s.Times) {
		return fmt.Errorf("%w: seed %d times %v, want %v", ErrSetupMismatch, sf.seed, times, s.Times)
	}
	return nil
}

// decodeSeed fills seed index si of d. Each seed writes only its own
// snapshot and environment slices.
func decodeSeed(ctx context.Context, d *dataset.Dataset, si int, sf seedFile, opts Options) (int, error) {
	timer := opts.Perf.StartSeed()
	start := time.Now()
	shape := d.Setup.EnvironmentShape()
	cells := 0

	for ti := range sf.file.Timepoints {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		timer.StartPhase(telemetry.PhaseParse)
		tp, err := sf.file.Timepoint(ti)
		if err != nil {
			return 0, codec.Locate(err, sf.seed, ti)
		}

		timer.StartPhase(telemetry.PhaseDecode)
		if err := codec.DecodeInto(d.Snapshot(si, ti), tp, d.Layout(), d.Setup.Height); err != nil {
			return 0, codec.Locate(err, sf.seed, ti)
		}
		for _, e := range tp.Cells {
			cells += len(e.Cells)
		}

		timer.StartPhase(telemetry.PhaseEnvironment)
		if err := codec.LoadEnvironment(tp, d.Setup.Species, shape, d.SeedEnvironment(si, ti)); err != nil {
			return 0, codec.Locate(err, sf.seed, ti)
		}
	}
	opts.Perf.EndSeed(timer)
	opts.Metrics.decoded(len(sf.file.Timepoints), cells, time.Since(start).Seconds())

	slog.Info("seed decoded", "seed", sf.seed, "member", sf.name, "timepoints", len(sf.file.Timepoints), "cells", cells)
	return cells, nil
}
