// Package codec converts sparse per-timepoint simulation snapshots into
// dense fixed-layout arrays.
package codec

// Sentinel marks an unoccupied slot or an unknown field value.
const Sentinel = -1

// Cell is one decoded sub-voxel occupant. Population and Type are small
// non-negative codes; Volume and Cycle are rounded integers. Every field of
// an unoccupied slot holds Sentinel.
type Cell struct {
	Population int8
	Type       int8
	Volume     int16
	Cycle      int16
}

// Empty is the all-sentinel slot value.
var Empty = Cell{Population: Sentinel, Type: Sentinel, Volume: Sentinel, Cycle: Sentinel}

// Occupied reports whether the slot holds a cell.
func (c Cell) Occupied() bool { return c.Population != Sentinel }

// CycleLength returns the mean cycle length, or false if the cell has not
// divided yet (or the slot is empty).
func (c Cell) CycleLength() (int, bool) {
	if c.Cycle == Sentinel {
		return 0, false
	}
	return int(c.Cycle), true
}

// Filter selects cells by population and type code. Empty lists match any
// code; an unoccupied slot never matches.
type Filter struct {
	Populations []int8
	Types       []int8
}

// Match reports whether c passes the filter.
func (f Filter) Match(c Cell) bool {
	if !c.Occupied() {
		return false
	}
	return matchCode(f.Populations, c.Population) && matchCode(f.Types, c.Type)
}

func matchCode(codes []int8, v int8) bool {
	if len(codes) == 0 {
		return true
	}
	for _, c := range codes {
		if c == v {
			return true
		}
	}
	return false
}

// Snapshot is a dense [layer][coordinate][slot] view over a flat cell slice.
// It may alias a region of a larger dataset array.
type Snapshot struct {
	Layers int
	Coords int
	Slots  int
	Cells  []Cell
}

// NewSnapshot allocates a snapshot filled with Empty.
func NewSnapshot(layers, coords, slots int) Snapshot {
	s := Snapshot{Layers: layers, Coords: coords, Slots: slots, Cells: make([]Cell, layers*coords*slots)}
	s.Reset()
	return s
}

// Size is the number of slots in a snapshot of the given shape.
func Size(layers, coords, slots int) int { return layers * coords * slots }

// Reset fills every slot with Empty.
func (s Snapshot) Reset() {
	for i := range s.Cells {
		s.Cells[i] = Empty
	}
}

// Offset returns the flat index of (layer, coord, slot).
func (s Snapshot) Offset(layer, coord, slot int) int {
	return (layer*s.Coords+coord)*s.Slots + slot
}

// At returns the cell at (layer, coord, slot).
func (s Snapshot) At(layer, coord, slot int) Cell {
	return s.Cells[s.Offset(layer, coord, slot)]
}

// Voxel returns the slot slice of one coordinate in one layer.
func (s Snapshot) Voxel(layer, coord int) []Cell {
	off := s.Offset(layer, coord, 0)
	return s.Cells[off : off+s.Slots]
}

// Count returns how many cells in (layer, coord) pass f.
func (s Snapshot) Count(f Filter, layer, coord int) int {
	n := 0
	for _, c := range s.Voxel(layer, coord) {
		if f.Match(c) {
			n++
		}
	}
	return n
}
