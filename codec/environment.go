package codec

import "fmt"

// Environment grids are stored as float32. Concentrations span roughly
// 0..1e9; float32 keeps ~7 significant digits over that range.

// EnvironmentShape is the [layer][radius bin] extent of one species grid.
type EnvironmentShape struct {
	Layers int
	Bins   int
}

// Size is Layers*Bins.
func (s EnvironmentShape) Size() int { return s.Layers * s.Bins }

// LoadEnvironment extracts the required species grids of one timepoint,
// writing each into dst[species] in [layer][bin] order. Every species must
// be present with exactly the expected shape.
func LoadEnvironment(tp *Timepoint, species []string, shape EnvironmentShape, dst map[string][]float32) error {
	for _, name := range species {
		grid, ok := tp.Molecules[name]
		if !ok {
			return decodeErr(nil, fmt.Errorf("%w: %q", ErrMissingMolecule, name))
		}
		out, ok := dst[name]
		if !ok || len(out) != shape.Size() {
			return fmt.Errorf("environment buffer for %q has %d values, want %d", name, len(out), shape.Size())
		}
		if len(grid) != shape.Layers {
			return decodeErr(nil, fmt.Errorf("%w: %q has %d layers, want %d", ErrMalformedGrid, name, len(grid), shape.Layers))
		}
		for l, row := range grid {
			if len(row) != shape.Bins {
				return decodeErr(nil, fmt.Errorf("%w: %q layer %d has %d bins, want %d", ErrMalformedGrid, name, l, len(row), shape.Bins))
			}
			for b, v := range row {
				out[l*shape.Bins+b] = float32(v)
			}
		}
	}
	return nil
}

// NewEnvironment allocates one buffer per species.
func NewEnvironment(species []string, shape EnvironmentShape) map[string][]float32 {
	env := make(map[string][]float32, len(species))
	for _, name := range species {
		env[name] = make([]float32, shape.Size())
	}
	return env
}
