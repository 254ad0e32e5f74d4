// Package components defines ECS components for materialised snapshot cells.
package components

// Location places a cell in its snapshot: array layer, coordinate index in
// the layout, and sub-voxel slot.
type Location struct {
	Layer int
	Coord int
	Slot  int
}

// Ring is the lattice radius of the cell's coordinate.
type Ring struct {
	Radius int
}

// State holds the population and cell-type codes.
type State struct {
	Population int8
	Type       int8
}

// Size holds rounded volume and mean cycle length. Cycle is -1 when the
// cell has no recorded cycles.
type Size struct {
	Volume int16
	Cycle  int16
}

// KnownCycle reports whether a cycle length was recorded.
func (s Size) KnownCycle() bool { return s.Cycle >= 0 }
