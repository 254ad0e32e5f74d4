package codec

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/tumorsnap/lattice"
)

// LayerIndex maps a signed layer offset to an array layer for height h.
func LayerIndex(offset, h int) int { return offset + h - 1 }

// Layers is the number of array layers for height h.
func Layers(h int) int { return 2*h - 1 }

// Decode writes one timepoint into a freshly allocated snapshot.
func Decode(tp *Timepoint, layout *lattice.Layout, height int) (Snapshot, error) {
	snap := NewSnapshot(Layers(height), layout.Len(), layout.Capacity())
	if err := DecodeInto(snap, tp, layout, height); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// DecodeInto resets dst and writes every cell of tp into it. dst must have
// the shape implied by layout and height. DecodeInto touches nothing
// outside dst, so callers may decode disjoint regions of one array
// concurrently.
func DecodeInto(dst Snapshot, tp *Timepoint, layout *lattice.Layout, height int) error {
	layers := Layers(height)
	if dst.Layers != layers || dst.Coords != layout.Len() || dst.Slots != layout.Capacity() {
		return fmt.Errorf("snapshot shape [%d][%d][%d] does not match layout [%d][%d][%d]",
			dst.Layers, dst.Coords, dst.Slots, layers, layout.Len(), layout.Capacity())
	}
	dst.Reset()

	g := layout.Geometry
	for _, entry := range tp.Cells {
		if len(entry.Coord) != g.Arity()+1 {
			return decodeErr(entry.Coord, fmt.Errorf("%w: %s coordinate needs %d components", ErrGeometryMismatch, g, g.Arity()+1))
		}
		planar, err := lattice.FromSlice(g, entry.Coord[:g.Arity()])
		if err != nil {
			return decodeErr(entry.Coord, fmt.Errorf("%w: %v", ErrOutsideLattice, err))
		}
		coord, ok := layout.IndexOf(planar)
		if !ok {
			return decodeErr(entry.Coord, fmt.Errorf("%w: radius %d", ErrOutsideLattice, layout.Radius))
		}
		layer := LayerIndex(entry.Coord[g.Arity()], height)
		if layer < 0 || layer >= layers {
			return decodeErr(entry.Coord, fmt.Errorf("%w: layer offset outside height %d", ErrOutsideLattice, height))
		}

		// Empty entries are validated like any other but write nothing.
		voxel := dst.Voxel(layer, coord)
		for _, t := range entry.Cells {
			if t.Slot < 0 || t.Slot >= len(voxel) {
				return decodeErr(entry.Coord, fmt.Errorf("%w: slot %d, capacity %d", ErrCapacity, t.Slot, len(voxel)))
			}
			if voxel[t.Slot].Occupied() {
				return decodeErr(entry.Coord, fmt.Errorf("%w: slot %d", ErrSlotTaken, t.Slot))
			}
			cell, err := cellFromTuple(t)
			if err != nil {
				return decodeErr(entry.Coord, err)
			}
			voxel[t.Slot] = cell
		}
	}
	return nil
}

func cellFromTuple(t CellTuple) (Cell, error) {
	if t.Population < 0 || t.Population > math.MaxInt8 {
		return Cell{}, fmt.Errorf("%w: population %d", ErrFieldRange, t.Population)
	}
	if t.Type < 0 || t.Type > math.MaxInt8 {
		return Cell{}, fmt.Errorf("%w: type %d", ErrFieldRange, t.Type)
	}
	volume, err := roundField("volume", t.Volume)
	if err != nil {
		return Cell{}, err
	}
	cycle := int16(Sentinel)
	if len(t.Cycles) > 0 {
		cycle, err = roundField("cycle", stat.Mean(t.Cycles, nil))
		if err != nil {
			return Cell{}, err
		}
	}
	return Cell{
		Population: int8(t.Population),
		Type:       int8(t.Type),
		Volume:     volume,
		Cycle:      cycle,
	}, nil
}

// roundField rounds half-to-even and checks the value fits a non-negative
// int16.
func roundField(name string, v float64) (int16, error) {
	r := math.RoundToEven(v)
	if math.IsNaN(r) || r < 0 || r > math.MaxInt16 {
		return 0, fmt.Errorf("%w: %s %v", ErrFieldRange, name, v)
	}
	return int16(r), nil
}
