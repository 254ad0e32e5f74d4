package analysis

import (
	"fmt"

	"github.com/pthm-cable/tumorsnap/codec"
	"github.com/pthm-cable/tumorsnap/lattice"
)

// Direction is the side of a pixel a boundary segment lies on.
type Direction uint8

// Rect outlines use Up, Down, Left, Right. Hex outlines use Up, Down and
// the four diagonals.
const (
	Up Direction = iota
	Down
	Left
	Right
	UpLeft
	UpRight
	DownLeft
	DownRight
)

var directionNames = [...]string{"up", "down", "left", "right", "up_left", "up_right", "down_left", "down_right"}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return fmt.Sprintf("Direction(%d)", d)
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Occupant assigns a class to one occupied coordinate.
type Occupant struct {
	Coord lattice.Coord
	Class int
}

// Segment is one unit boundary edge in pixel space.
type Segment struct {
	X     int       `json:"x"`
	Y     int       `json:"y"`
	Dir   Direction `json:"dir"`
	Class int       `json:"class"`
}

// Outline is the traced boundary of one layer. Pixel (X, Y) maps back to
// lattice space through OffX and OffY; the grid is Width x Height.
type Outline struct {
	Geometry lattice.Geometry `json:"geometry"`
	Width    int              `json:"width"`
	Height   int              `json:"height"`
	OffX     int              `json:"offx"`
	OffY     int              `json:"offy"`
	Segments []Segment        `json:"segments"`
}

type raster struct {
	w, h  int
	class []int // -1 empty
}

func (r *raster) at(x, y int) int {
	if x < 0 || y < 0 || x >= r.w || y >= r.h {
		return -1
	}
	return r.class[y*r.w+x]
}

func (r *raster) set(x, y, class int) { r.class[y*r.w+x] = class }

// TraceOutline rasterizes occupants of a radius-R lattice and emits a
// segment on every pixel side whose neighbor is empty, outside the grid,
// or of another class. Rect coordinates map to one pixel each. Hex
// coordinates map to two stacked pixels on doubled rows, so the left and
// right sides of the upper pixel are the up-left and up-right edges of the
// hexagon, and likewise below. Segments are ordered by a row-wise pass for
// horizontal neighbors followed by a column-wise pass for vertical ones.
func TraceOutline(g lattice.Geometry, radius int, occupants []Occupant) (Outline, error) {
	if radius < 1 {
		return Outline{}, fmt.Errorf("outline: radius %d must be positive", radius)
	}
	span := 2*radius - 1
	o := Outline{Geometry: g, Width: span, Height: span, OffX: radius - 1, OffY: radius - 1}
	if g == lattice.Hex {
		o.Height = 4*radius - 2
		o.OffY = 2 * (radius - 1)
	}

	r := &raster{w: o.Width, h: o.Height, class: make([]int, o.Width*o.Height)}
	for i := range r.class {
		r.class[i] = -1
	}
	for _, oc := range occupants {
		if oc.Class < 0 {
			return Outline{}, fmt.Errorf("outline: negative class %d at %v", oc.Class, oc.Coord)
		}
		if lattice.RadiusOf(g, oc.Coord) >= radius {
			return Outline{}, fmt.Errorf("outline: %v outside radius %d", oc.Coord, radius)
		}
		if g == lattice.Hex {
			x := oc.Coord.U + o.OffX
			y := 2*oc.Coord.W + oc.Coord.U + o.OffY
			r.set(x, y, oc.Class)
			r.set(x, y+1, oc.Class)
		} else {
			r.set(oc.Coord.X()+o.OffX, oc.Coord.Y()+o.OffY, oc.Class)
		}
	}

	// Hex pixels alternate top/bottom halves; a pixel is a top half when
	// its row parity matches that of the doubled row origin.
	isTop := func(x, y int) bool {
		return (y-(x-o.OffX)-o.OffY)%2 == 0
	}
	side := func(x, y int, rectDir, top, bottom Direction) Direction {
		if g != lattice.Hex {
			return rectDir
		}
		if isTop(x, y) {
			return top
		}
		return bottom
	}

	emit := func(x, y, nx, ny int, dir Direction) {
		c := r.at(x, y)
		if r.at(nx, ny) != c {
			o.Segments = append(o.Segments, Segment{X: x, Y: y, Dir: dir, Class: c})
		}
	}

	for y := 0; y < r.h; y++ {
		for x := 0; x < r.w; x++ {
			if r.at(x, y) < 0 {
				continue
			}
			emit(x, y, x-1, y, side(x, y, Left, UpLeft, DownLeft))
			emit(x, y, x+1, y, side(x, y, Right, UpRight, DownRight))
		}
	}
	for x := 0; x < r.w; x++ {
		for y := 0; y < r.h; y++ {
			if r.at(x, y) < 0 {
				continue
			}
			emit(x, y, x, y-1, Up)
			emit(x, y, x, y+1, Down)
		}
	}
	return o, nil
}

// DominantClass returns the most frequent population among the occupied
// cells of a voxel, preferring the lower code on ties, or -1 when empty.
func DominantClass(cells []codec.Cell) int {
	counts := make(map[int8]int)
	for _, c := range cells {
		if c.Occupied() {
			counts[c.Population]++
		}
	}
	best, bestN := -1, 0
	for pop, n := range counts {
		if n > bestN || (n == bestN && int(pop) < best) {
			best, bestN = int(pop), n
		}
	}
	return best
}

// Occupants classifies every occupied coordinate of one layer by its
// dominant population.
func Occupants(snap codec.Snapshot, layout *lattice.Layout, layer int) []Occupant {
	var out []Occupant
	for c := 0; c < snap.Coords; c++ {
		if class := DominantClass(snap.Voxel(layer, c)); class >= 0 {
			out = append(out, Occupant{Coord: layout.At(c), Class: class})
		}
	}
	return out
}
