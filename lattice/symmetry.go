package lattice

// rotate applies one generator step of the rotation group: 60 degrees for
// hex, 90 degrees for rect.
func rotate(g Geometry, c Coord) Coord {
	if g == Hex {
		return HexCoord(-c.W, -c.U, -c.V)
	}
	return RectCoord(-c.V, c.U)
}

// SymmetricImages returns the distinct images of c under the rotation
// group, starting with c itself. The origin has a single image.
func SymmetricImages(g Geometry, c Coord) []Coord {
	images := make([]Coord, 0, g.Order())
	cur := c
	for i := 0; i < g.Order(); i++ {
		seen := false
		for _, im := range images {
			if im == cur {
				seen = true
				break
			}
		}
		if !seen {
			images = append(images, cur)
		}
		cur = rotate(g, cur)
	}
	return images
}

// Mirror reflects c across the diagonal (rect) or the u=v axis (hex).
func Mirror(g Geometry, c Coord) Coord {
	if g == Hex {
		return HexCoord(c.V, c.U, c.W)
	}
	return RectCoord(c.V, c.U)
}

// Canonical returns the lexicographically smallest rotation image of c.
// Coordinates in the same rotation orbit share a canonical key.
func Canonical(g Geometry, c Coord) Coord {
	best := c
	for _, im := range SymmetricImages(g, c) {
		if less(im, best) {
			best = im
		}
	}
	return best
}

func less(a, b Coord) bool {
	if a.U != b.U {
		return a.U < b.U
	}
	if a.V != b.V {
		return a.V < b.V
	}
	return a.W < b.W
}

// HasMirrorOrbit reports whether the reflection of c lies in a different
// rotation orbit. Only the rect lattice treats that reflection as part of
// its scored point group: it applies when neither component is zero and
// |x| != |y|.
func HasMirrorOrbit(g Geometry, c Coord) bool {
	if g != Rect {
		return false
	}
	return c.U != 0 && c.V != 0 && abs(c.U) != abs(c.V)
}
