package lattice

// Enumerate lists every coordinate of radius < r in nested ascending order.
// The order defines the dense index used by snapshot arrays.
func Enumerate(g Geometry, r int) []Coord {
	if r <= 0 {
		return nil
	}
	lo, hi := -r+1, r-1
	var coords []Coord
	switch g {
	case Hex:
		coords = make([]Coord, 0, 3*r*r-3*r+1)
		for u := lo; u <= hi; u++ {
			for v := lo; v <= hi; v++ {
				for w := lo; w <= hi; w++ {
					if u+v+w == 0 {
						coords = append(coords, HexCoord(u, v, w))
					}
				}
			}
		}
	case Rect:
		coords = make([]Coord, 0, (2*r-1)*(2*r-1))
		for x := lo; x <= hi; x++ {
			for y := lo; y <= hi; y++ {
				coords = append(coords, RectCoord(x, y))
			}
		}
	}
	return coords
}

// RingSizes returns the ring cardinalities for radii 0..r-1.
func RingSizes(g Geometry, r int) []int {
	sizes := make([]int, max(r, 0))
	for i := range sizes {
		sizes[i] = g.RingSize(i)
	}
	return sizes
}

// Layout is the enumerated coordinate set for one (geometry, radius) pair
// together with its coordinate -> index map. It is immutable after
// construction and safe for concurrent readers.
type Layout struct {
	Geometry Geometry
	Radius   int

	coords []Coord
	radii  []int
	index  map[Coord]int
}

// NewLayout enumerates coordinates and builds the index map once.
func NewLayout(g Geometry, r int) *Layout {
	coords := Enumerate(g, r)
	l := &Layout{
		Geometry: g,
		Radius:   r,
		coords:   coords,
		radii:    make([]int, len(coords)),
		index:    make(map[Coord]int, len(coords)),
	}
	for i, c := range coords {
		l.index[c] = i
		l.radii[i] = RadiusOf(g, c)
	}
	return l
}

// Len is the number of enumerated coordinates.
func (l *Layout) Len() int { return len(l.coords) }

// Coords returns a copy of the enumeration.
func (l *Layout) Coords() []Coord {
	out := make([]Coord, len(l.coords))
	copy(out, l.coords)
	return out
}

// At returns the coordinate at dense index i.
func (l *Layout) At(i int) Coord { return l.coords[i] }

// IndexOf returns the dense index of c.
func (l *Layout) IndexOf(c Coord) (int, bool) {
	i, ok := l.index[c]
	return i, ok
}

// RadiusAt returns the radius of the coordinate at dense index i.
func (l *Layout) RadiusAt(i int) int { return l.radii[i] }

// RingSizes returns the ring cardinalities for this layout.
func (l *Layout) RingSizes() []int { return RingSizes(l.Geometry, l.Radius) }

// Capacity is the slot count per coordinate.
func (l *Layout) Capacity() int { return l.Geometry.Capacity() }

var (
	hexDirections  = [6]Coord{{1, -1, 0}, {1, 0, -1}, {0, 1, -1}, {-1, 1, 0}, {-1, 0, 1}, {0, -1, 1}}
	rectDirections = [4]Coord{{1, 0, 0}, {0, 1, 0}, {-1, 0, 0}, {0, -1, 0}}
)

// Neighbors returns the planar neighbors of c: six for hex, the four
// edge-sharing ones for rect.
func Neighbors(g Geometry, c Coord) []Coord {
	dirs := rectDirections[:]
	if g == Hex {
		dirs = hexDirections[:]
	}
	out := make([]Coord, len(dirs))
	for i, d := range dirs {
		out[i] = Coord{U: c.U + d.U, V: c.V + d.V, W: c.W + d.W}
	}
	return out
}
