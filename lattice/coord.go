package lattice

import (
	"errors"
	"fmt"
)

// ErrMalformedCoord is returned for coordinates with the wrong arity or a
// hex triple that violates the zero-sum constraint.
var ErrMalformedCoord = errors.New("malformed coordinate")

// Coord is a planar lattice coordinate. Hex coordinates use all three
// components; rect coordinates leave W at zero.
type Coord struct {
	U, V, W int
}

// HexCoord builds a cube coordinate.
func HexCoord(u, v, w int) Coord { return Coord{U: u, V: v, W: w} }

// RectCoord builds a square-lattice coordinate.
func RectCoord(x, y int) Coord { return Coord{U: x, V: y} }

// X is the rect column (alias of U).
func (c Coord) X() int { return c.U }

// Y is the rect row (alias of V).
func (c Coord) Y() int { return c.V }

// Slice returns the planar components for g.
func (c Coord) Slice(g Geometry) []int {
	if g == Hex {
		return []int{c.U, c.V, c.W}
	}
	return []int{c.U, c.V}
}

// FromSlice converts planar components to a Coord, validating arity and,
// for hex, the zero-sum invariant.
func FromSlice(g Geometry, v []int) (Coord, error) {
	if len(v) != g.Arity() {
		return Coord{}, fmt.Errorf("%w: %s wants %d components, got %d", ErrMalformedCoord, g, g.Arity(), len(v))
	}
	if g == Hex {
		if v[0]+v[1]+v[2] != 0 {
			return Coord{}, fmt.Errorf("%w: hex %v does not sum to zero", ErrMalformedCoord, v)
		}
		return HexCoord(v[0], v[1], v[2]), nil
	}
	return RectCoord(v[0], v[1]), nil
}

// RadiusOf returns the lattice distance of c from the origin.
func RadiusOf(g Geometry, c Coord) int {
	if g == Hex {
		return (abs(c.U) + abs(c.V) + abs(c.W)) / 2
	}
	return max(abs(c.U), abs(c.V))
}

// RadiusOfSlice is RadiusOf over raw components; ok is false when the
// arity does not match g.
func RadiusOfSlice(g Geometry, v []int) (int, bool) {
	c, err := FromSlice(g, v)
	if err != nil {
		return 0, false
	}
	return RadiusOf(g, c), true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
