// Package main prints diagnostics for one snapshot of a persisted dataset:
// setup, summary stats, per-population census and the traced outline.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"slices"

	"github.com/pthm-cable/tumorsnap/analysis"
	"github.com/pthm-cable/tumorsnap/census"
	"github.com/pthm-cable/tumorsnap/codec"
	"github.com/pthm-cable/tumorsnap/config"
	"github.com/pthm-cable/tumorsnap/dataset"
	"github.com/pthm-cable/tumorsnap/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Config YAML file (empty = use defaults)")
	path := flag.String("dataset", "", "Persisted dataset path")
	seed := flag.Int("seed", -1, "Seed id (-1 = first seed)")
	timeIdx := flag.Int("time", -1, "Timepoint index (-1 = last)")
	layerOffset := flag.Int("layer", 0, "Signed layer offset (0 = centre)")
	outlinePath := flag.String("outline", "", "Write the traced outline as JSON to this path")
	flag.Parse()

	if *path == "" {
		log.Fatal("--dataset is required")
	}
	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Cfg()

	d, err := dataset.LoadFile(context.Background(), *path)
	if err != nil {
		log.Fatalf("failed to load dataset: %v", err)
	}
	s := d.Setup

	si := 0
	if *seed >= 0 {
		var ok bool
		if si, ok = d.SeedIndex(*seed); !ok {
			log.Fatalf("seed %d not in dataset (seeds %v)", *seed, s.Seeds)
		}
	}
	ti := *timeIdx
	if ti < 0 {
		ti = len(s.Times) - 1
	}
	if ti >= len(s.Times) {
		log.Fatalf("time index %d out of range [0,%d)", ti, len(s.Times))
	}
	layer := codec.LayerIndex(*layerOffset, s.Height)
	if layer < 0 || layer >= s.Layers() {
		log.Fatalf("layer offset %d outside height %d", *layerOffset, s.Height)
	}

	fmt.Printf("Dataset %s\n", *path)
	fmt.Printf("  geometry %s, radius %d, height %d, %d coords, %d slots\n",
		s.Geometry, s.Radius, s.Height, len(s.Coords), s.Slots())
	fmt.Printf("  seeds %v, %d timepoints, species %v, states only %v\n",
		s.Seeds, len(s.Times), s.Species, d.StatesOnly)

	collector := telemetry.NewCollector(cfg.DeadTypeCodes(), cfg.Derived.VoxelVolume[s.Geometry])
	stats := collector.Snapshot(d, si, ti)
	fmt.Printf("\nSnapshot seed %d, t=%g\n", stats.Seed, stats.Time)
	fmt.Printf("  cells %d, live fraction %.3f, growth radius %d\n", stats.Cells, stats.LiveFraction, stats.GrowthRadius)
	fmt.Printf("  symmetry %.3f, perimeter %d\n", stats.Symmetry, stats.Perimeter)
	fmt.Printf("  volume mean %.0f (p10 %.0f, p50 %.0f, p90 %.0f), cycle mean %.0f\n",
		stats.VolumeMean, stats.VolumeP10, stats.VolumeP50, stats.VolumeP90, stats.CycleMean)

	snap := d.Snapshot(si, ti)
	cs := census.New(snap, d.Layout())
	byPop := cs.ByPopulation(census.Query{Layer: &layer})
	pops := make([]int8, 0, len(byPop))
	for p := range byPop {
		pops = append(pops, p)
	}
	slices.Sort(pops)
	fmt.Printf("\nLayer %d census\n", *layerOffset)
	for _, p := range pops {
		fmt.Printf("  population %d: %d cells\n", p, byPop[p])
	}

	env, err := collector.Environment(d, si, ti)
	if err != nil {
		log.Fatalf("environment totals: %v", err)
	}
	fmt.Printf("\nEnvironment\n")
	for _, row := range env {
		fmt.Printf("  %-10s concentration %.4g, amount %.4g\n", row.Species, row.Concentration, row.Amount)
	}

	outline, err := analysis.TraceOutline(s.Geometry, s.Radius, analysis.Occupants(snap, d.Layout(), layer))
	if err != nil {
		log.Fatalf("outline: %v", err)
	}
	fmt.Printf("\nOutline %dx%d, %d segments\n", outline.Width, outline.Height, len(outline.Segments))

	if *outlinePath != "" {
		data, err := json.MarshalIndent(outline, "", "  ")
		if err != nil {
			log.Fatalf("marshaling outline: %v", err)
		}
		if err := os.WriteFile(*outlinePath, data, 0644); err != nil {
			log.Fatalf("writing outline: %v", err)
		}
	}
}
