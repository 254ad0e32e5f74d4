// Package lattice defines the two supported lattice geometries and the
// coordinate arithmetic shared by the decoder and the analysis passes.
package lattice

import (
	"fmt"
	"strings"
)

// Geometry identifies the lattice topology.
type Geometry uint8

const (
	Hex  Geometry = iota + 1 // cube coordinates (u, v, w), u+v+w = 0
	Rect                     // square coordinates (x, y)
)

// Sub-voxel slot capacity per coordinate.
const (
	HexCapacity  = 54
	RectCapacity = 64
)

// String returns the geometry name used in config files and persisted setup.
func (g Geometry) String() string {
	switch g {
	case Hex:
		return "hex"
	case Rect:
		return "rect"
	default:
		return fmt.Sprintf("geometry(%d)", uint8(g))
	}
}

// ParseGeometry parses "hex" or "rect".
func ParseGeometry(s string) (Geometry, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hex":
		return Hex, nil
	case "rect":
		return Rect, nil
	default:
		return 0, fmt.Errorf("unknown geometry %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (g Geometry) MarshalText() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("invalid geometry %d", uint8(g))
	}
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Geometry) UnmarshalText(b []byte) error {
	parsed, err := ParseGeometry(string(b))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Valid reports whether g is one of the defined geometries.
func (g Geometry) Valid() bool {
	return g == Hex || g == Rect
}

// Arity is the number of planar coordinate components.
func (g Geometry) Arity() int {
	if g == Hex {
		return 3
	}
	return 2
}

// Capacity is the number of sub-voxel slots per coordinate.
func (g Geometry) Capacity() int {
	if g == Hex {
		return HexCapacity
	}
	return RectCapacity
}

// Order is the size of the rotation group acting on coordinates.
func (g Geometry) Order() int {
	if g == Hex {
		return 6
	}
	return 4
}

// RingSize returns the number of coordinates at radius r.
func (g Geometry) RingSize(r int) int {
	if r == 0 {
		return 1
	}
	if g == Hex {
		return 6 * r
	}
	return 8 * r
}

// FromRawArity selects the geometry from the length of a raw snapshot
// coordinate, which carries the layer offset as its last component.
func FromRawArity(n int) (Geometry, error) {
	switch n {
	case 4:
		return Hex, nil
	case 3:
		return Rect, nil
	default:
		return 0, fmt.Errorf("coordinate arity %d matches no geometry", n)
	}
}
