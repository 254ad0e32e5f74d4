// Package config provides configuration loading and access for the snapshot tools.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/tumorsnap/lattice"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all tool configuration parameters.
type Config struct {
	Ingest  IngestConfig  `yaml:"ingest"`
	Lattice LatticeConfig `yaml:"lattice"`
	Output  OutputConfig  `yaml:"output"`
	S3      S3Config      `yaml:"s3"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// IngestConfig holds snapshot ingestion parameters.
type IngestConfig struct {
	Species      []string `yaml:"species"`       // Molecule grids required in every timepoint
	TypeCodes    []int    `yaml:"type_codes"`    // Cell type/state codes recorded in setup
	DeadTypes    []int    `yaml:"dead_types"`    // Type codes excluded from live-cell fraction
	ExcludeSeeds []int    `yaml:"exclude_seeds"` // Seeds skipped during ingestion
	Workers      int      `yaml:"workers"`       // Parallel seed decoders (0 = GOMAXPROCS)
}

// LatticeConfig holds physical voxel dimensions per geometry.
type LatticeConfig struct {
	Hex  VoxelConfig `yaml:"hex"`
	Rect VoxelConfig `yaml:"rect"`
}

// VoxelConfig describes one voxel's size in micrometers.
type VoxelConfig struct {
	Side  float64 `yaml:"side"`  // Edge length
	Depth float64 `yaml:"depth"` // Layer thickness
}

// OutputConfig holds persistence and export parameters.
type OutputConfig struct {
	Dataset            string `yaml:"dataset"`              // sqlite dataset path
	CSVDir             string `yaml:"csv_dir"`              // Directory for profile CSVs (empty = disabled)
	MetricsFile        string `yaml:"metrics_file"`         // Prometheus textfile path (empty = disabled)
	MaxBlobBytes       int    `yaml:"max_blob_bytes"`       // Per-snapshot payload cap
	StatesOnlyFallback bool   `yaml:"states_only_fallback"` // Persist states only when full persist fails
}

// S3Config holds parameters for s3:// sources.
type S3Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // Optional custom endpoint (e.g. MinIO)
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`     // Optional; default credential chain otherwise
	SecretAccessKey string `yaml:"secret_access_key"` // Optional
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Workers     int                          // Ingest.Workers resolved against GOMAXPROCS
	ExcludeSet  map[int]bool                 // Ingest.ExcludeSeeds as a set
	VoxelVolume map[lattice.Geometry]float64 // Cubic micrometers per voxel
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Ingest.Species) == 0 {
		return fmt.Errorf("config: ingest.species must not be empty")
	}
	seen := make(map[string]bool, len(c.Ingest.Species))
	for _, s := range c.Ingest.Species {
		if seen[s] {
			return fmt.Errorf("config: duplicate species %q", s)
		}
		seen[s] = true
	}
	for _, v := range []VoxelConfig{c.Lattice.Hex, c.Lattice.Rect} {
		if v.Side <= 0 || v.Depth <= 0 {
			return fmt.Errorf("config: voxel side and depth must be positive")
		}
	}
	if c.Ingest.Workers < 0 {
		return fmt.Errorf("config: ingest.workers must be >= 0")
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Workers = c.Ingest.Workers
	if c.Derived.Workers == 0 {
		c.Derived.Workers = runtime.GOMAXPROCS(0)
	}

	c.Derived.ExcludeSet = make(map[int]bool, len(c.Ingest.ExcludeSeeds))
	for _, s := range c.Ingest.ExcludeSeeds {
		c.Derived.ExcludeSet[s] = true
	}

	// Hex voxel: regular hexagonal prism; rect voxel: square prism.
	hexArea := 3 * math.Sqrt(3) / 2 * c.Lattice.Hex.Side * c.Lattice.Hex.Side
	rectArea := c.Lattice.Rect.Side * c.Lattice.Rect.Side
	c.Derived.VoxelVolume = map[lattice.Geometry]float64{
		lattice.Hex:  hexArea * c.Lattice.Hex.Depth,
		lattice.Rect: rectArea * c.Lattice.Rect.Depth,
	}
}

// DeadTypeCodes returns Ingest.DeadTypes as int8 codes.
func (c *Config) DeadTypeCodes() []int8 {
	out := make([]int8, len(c.Ingest.DeadTypes))
	for i, t := range c.Ingest.DeadTypes {
		out[i] = int8(t)
	}
	return out
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
