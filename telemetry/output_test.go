package telemetry

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/tumorsnap/codec"
	"github.com/pthm-cable/tumorsnap/config"
	"github.com/pthm-cable/tumorsnap/dataset"
	"github.com/pthm-cable/tumorsnap/lattice"
)

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	d, err := dataset.New(dataset.Setup{
		Geometry:    lattice.Hex,
		Radius:      2,
		Height:      1,
		Times:       []float64{0, 1},
		Populations: []int{0, 1},
		Seeds:       []int{11},
		Species:     []string{"glucose"},
		Coords:      lattice.Enumerate(lattice.Hex, 2),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ci, _ := d.Layout().IndexOf(lattice.HexCoord(0, 0, 0))
	v := d.Snapshot(0, 1).Voxel(0, ci)
	v[0] = codec.Cell{Population: 0, Type: 4, Volume: 2000, Cycle: 900}
	v[1] = codec.Cell{Population: 1, Type: 6, Volume: 1000, Cycle: codec.Sentinel}

	grid, _ := d.Environment("glucose", 0, 1)
	grid[0], grid[1] = 7, 7
	return d
}

func TestCollectorSnapshot(t *testing.T) {
	d := testDataset(t)
	c := NewCollector([]int8{1, 6}, 1)

	s := c.Snapshot(d, 0, 1)
	if s.Seed != 11 || s.Time != 1 || s.Cells != 2 {
		t.Errorf("snapshot = %+v, want seed 11 time 1 with 2 cells", s)
	}
	if s.LiveFraction != 0.5 || s.GrowthRadius != 0 || s.Symmetry != 1 {
		t.Errorf("live %v radius %d symmetry %v, want 0.5, 0, 1", s.LiveFraction, s.GrowthRadius, s.Symmetry)
	}
	if s.VolumeMean != 1500 || s.CycleMean != 900 {
		t.Errorf("volume mean %v cycle mean %v, want 1500 and 900", s.VolumeMean, s.CycleMean)
	}

	empty := c.Snapshot(d, 0, 0)
	if !math.IsNaN(empty.LiveFraction) || !math.IsNaN(empty.Symmetry) || empty.GrowthRadius != -1 {
		t.Errorf("empty snapshot = %+v, want NaN ratios and radius -1", empty)
	}

	d.StatesOnly = true
	if s := c.Snapshot(d, 0, 1); !math.IsNaN(s.VolumeMean) || s.Cells != 2 {
		t.Errorf("states-only snapshot = %+v, want NaN volume and 2 cells", s)
	}
}

func TestOutputManagerExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager failed: %v", err)
	}

	d := testDataset(t)
	if err := NewCollector([]int8{1, 6}, 2).Export(d, om); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if err := om.WriteIngest(IngestSummary{Source: "runs/", Geometry: "hex", Seeds: 1, Mode: "full"}); err != nil {
		t.Fatalf("WriteIngest failed: %v", err)
	}
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	if err := om.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var snaps []SnapshotStats
	readCSV(t, filepath.Join(dir, "snapshots.csv"), &snaps)
	if len(snaps) != 2 {
		t.Fatalf("snapshot rows = %d, want 2", len(snaps))
	}

	// 2 populations x 2 radius bins x 2 timepoints.
	var profiles []ProfileRow
	readCSV(t, filepath.Join(dir, "profiles.csv"), &profiles)
	if len(profiles) != 8 {
		t.Errorf("profile rows = %d, want 8", len(profiles))
	}

	var env []EnvironmentRow
	readCSV(t, filepath.Join(dir, "environment.csv"), &env)
	if len(env) != 2 || env[1].Concentration != 7 || env[1].Amount != 2*7*7 {
		t.Errorf("environment rows = %+v, want concentration 7 amount 98 at t=1", env)
	}

	data, err := os.ReadFile(filepath.Join(dir, "ingest.csv"))
	if err != nil {
		t.Fatalf("read ingest.csv: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 2 {
		t.Errorf("ingest.csv has %d lines, want header + 1", lines)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config.yaml not written: %v", err)
	}
}

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("NewOutputManager(\"\") = %v, %v, want nil, nil", om, err)
	}
	if err := om.WriteSnapshot(SnapshotStats{}); err != nil {
		t.Errorf("nil WriteSnapshot = %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("nil Close = %v", err)
	}
}

func readCSV(t *testing.T, path string, out any) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	if err := gocsv.UnmarshalFile(f, out); err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
}
