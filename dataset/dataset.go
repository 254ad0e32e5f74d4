// Package dataset holds the assembled multi-seed result of an ingestion run
// and its persisted sqlite form.
package dataset

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/pthm-cable/tumorsnap/codec"
	"github.com/pthm-cable/tumorsnap/lattice"
)

// Setup is the run metadata shared by every seed in a dataset.
type Setup struct {
	Geometry    lattice.Geometry `json:"geometry"`
	Radius      int              `json:"radius"`
	Height      int              `json:"height"`
	Times       []float64        `json:"times"`
	Populations []int            `json:"populations"`
	Types       []int            `json:"types"`
	Seeds       []int            `json:"seeds"`
	Species     []string         `json:"species"`

	// Coordinate enumeration; persisted in its own table.
	Coords []lattice.Coord `json:"-"`
}

// Layers is the number of array layers (2H-1).
func (s Setup) Layers() int { return codec.Layers(s.Height) }

// Slots is the per-coordinate slot capacity.
func (s Setup) Slots() int { return s.Geometry.Capacity() }

// EnvironmentShape is the per-timepoint species grid extent.
func (s Setup) EnvironmentShape() codec.EnvironmentShape {
	return codec.EnvironmentShape{Layers: s.Layers(), Bins: s.Radius}
}

// Validate checks the setup is internally consistent: a known geometry and
// a coordinate list equal to the enumeration for (geometry, radius).
func (s Setup) Validate() error {
	if !s.Geometry.Valid() {
		return fmt.Errorf("setup: invalid geometry %d", s.Geometry)
	}
	if s.Radius < 1 || s.Height < 1 {
		return fmt.Errorf("setup: radius %d and height %d must be positive", s.Radius, s.Height)
	}
	if !slices.Equal(s.Coords, lattice.Enumerate(s.Geometry, s.Radius)) {
		return fmt.Errorf("setup: coordinate list does not match %s enumeration for radius %d", s.Geometry, s.Radius)
	}
	return nil
}

// LogValue implements slog.LogValuer.
func (s Setup) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("geometry", s.Geometry.String()),
		slog.Int("radius", s.Radius),
		slog.Int("height", s.Height),
		slog.Int("timepoints", len(s.Times)),
		slog.Int("seeds", len(s.Seeds)),
		slog.Int("coords", len(s.Coords)),
		slog.Any("species", s.Species),
	)
}

// Dataset is the decoded result of a run. Agents is the flattened
// [seed][time][layer][coord][slot] array; Environments maps species to a
// flattened [seed][time][layer][radius bin] array. A Dataset is treated as
// immutable once ingestion returns it.
type Dataset struct {
	Setup        Setup
	Agents       []codec.Cell
	Environments map[string][]float32

	// StatesOnly is set when volume and cycle were not persisted and hold
	// the sentinel.
	StatesOnly bool

	layout *lattice.Layout
}

// New allocates a dataset for setup with every slot empty and every
// concentration zero.
func New(setup Setup) (*Dataset, error) {
	if err := setup.Validate(); err != nil {
		return nil, err
	}
	d := &Dataset{
		Setup:        setup,
		Environments: make(map[string][]float32, len(setup.Species)),
		layout:       lattice.NewLayout(setup.Geometry, setup.Radius),
	}
	d.Agents = make([]codec.Cell, len(setup.Seeds)*len(setup.Times)*d.snapshotSize())
	for i := range d.Agents {
		d.Agents[i] = codec.Empty
	}
	envSize := len(setup.Seeds) * len(setup.Times) * setup.EnvironmentShape().Size()
	for _, name := range setup.Species {
		d.Environments[name] = make([]float32, envSize)
	}
	return d, nil
}

func (d *Dataset) snapshotSize() int {
	return codec.Size(d.Setup.Layers(), len(d.Setup.Coords), d.Setup.Slots())
}

// Layout returns the coordinate layout shared by all snapshots.
func (d *Dataset) Layout() *lattice.Layout { return d.layout }

// AgentsShape is [seeds, times, layers, coords, slots].
func (d *Dataset) AgentsShape() [5]int {
	s := d.Setup
	return [5]int{len(s.Seeds), len(s.Times), s.Layers(), len(s.Coords), s.Slots()}
}

// EnvironmentShape is [seeds, times, layers, bins].
func (d *Dataset) EnvironmentShape() [4]int {
	s := d.Setup
	return [4]int{len(s.Seeds), len(s.Times), s.Layers(), s.Radius}
}

// SeedIndex returns the position of seed id in the seed dimension.
func (d *Dataset) SeedIndex(seed int) (int, bool) {
	i := slices.Index(d.Setup.Seeds, seed)
	return i, i >= 0
}

// Snapshot returns the [layer][coord][slot] view for (seed index, time
// index). The view aliases the dataset array.
func (d *Dataset) Snapshot(seed, time int) codec.Snapshot {
	n := d.snapshotSize()
	off := (seed*len(d.Setup.Times) + time) * n
	return codec.Snapshot{
		Layers: d.Setup.Layers(),
		Coords: len(d.Setup.Coords),
		Slots:  d.Setup.Slots(),
		Cells:  d.Agents[off : off+n : off+n],
	}
}

// Environment returns the [layer][bin] grid of species at (seed index,
// time index). The slice aliases the dataset array.
func (d *Dataset) Environment(species string, seed, time int) ([]float32, error) {
	all, ok := d.Environments[species]
	if !ok {
		return nil, fmt.Errorf("unknown species %q", species)
	}
	n := d.Setup.EnvironmentShape().Size()
	off := (seed*len(d.Setup.Times) + time) * n
	return all[off : off+n : off+n], nil
}

// SeedEnvironment returns one timepoint buffer per species for (seed
// index, time index), suitable for codec.LoadEnvironment.
func (d *Dataset) SeedEnvironment(seed, time int) map[string][]float32 {
	out := make(map[string][]float32, len(d.Environments))
	for name := range d.Environments {
		out[name], _ = d.Environment(name, seed, time)
	}
	return out
}

// CountCells counts cells matching f at (seed index, time index, layer,
// coordinate index).
func (d *Dataset) CountCells(f codec.Filter, seed, time, layer, coord int) int {
	return d.Snapshot(seed, time).Count(f, layer, coord)
}

// Coordinates returns the coordinate enumeration.
func (d *Dataset) Coordinates() []lattice.Coord {
	return d.layout.Coords()
}
