package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/tumorsnap/lattice"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Ingest.Species) != 3 || cfg.Ingest.Species[0] != "glucose" {
		t.Errorf("species = %v, want [glucose oxygen tgfa]", cfg.Ingest.Species)
	}
	if cfg.Derived.Workers < 1 {
		t.Errorf("derived workers = %d, want >= 1", cfg.Derived.Workers)
	}
	if !cfg.Output.StatesOnlyFallback {
		t.Error("states-only fallback should default on")
	}

	wantHex := 3 * math.Sqrt(3) / 2 * 30 * 30 * 8.7
	if got := cfg.Derived.VoxelVolume[lattice.Hex]; math.Abs(got-wantHex) > 1e-9 {
		t.Errorf("hex voxel volume = %v, want %v", got, wantHex)
	}
	if got := cfg.Derived.VoxelVolume[lattice.Rect]; math.Abs(got-30*30*8.7) > 1e-9 {
		t.Errorf("rect voxel volume = %v, want %v", got, 30*30*8.7)
	}
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	overlay := "ingest:\n  exclude_seeds: [1, 4]\n  workers: 2\n"
	if err := os.WriteFile(path, []byte(overlay), 0644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Derived.Workers != 2 {
		t.Errorf("workers = %d, want 2", cfg.Derived.Workers)
	}
	if !cfg.Derived.ExcludeSet[1] || !cfg.Derived.ExcludeSet[4] || cfg.Derived.ExcludeSet[2] {
		t.Errorf("exclude set = %v, want {1,4}", cfg.Derived.ExcludeSet)
	}
	// Fields absent from the overlay keep their defaults.
	if len(cfg.Ingest.Species) != 3 {
		t.Errorf("species = %v, want defaults", cfg.Ingest.Species)
	}

	out := filepath.Join(dir, "written.yaml")
	if err := cfg.WriteYAML(out); err != nil {
		t.Fatalf("WriteYAML failed: %v", err)
	}
	again, err := Load(out)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if again.Ingest.Workers != 2 {
		t.Errorf("reloaded workers = %d, want 2", again.Ingest.Workers)
	}
}

func TestLoadRejectsDuplicateSpecies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("ingest:\n  species: [oxygen, oxygen]\n"), 0644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected duplicate species error")
	}
}
