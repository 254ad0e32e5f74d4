package analysis

import (
	"cmp"
	"maps"
	"math"
	"slices"

	"github.com/pthm-cable/tumorsnap/lattice"
)

// SymmetryScore rates how symmetric an occupied coordinate set is under
// the lattice's rotations, in [0,1]. Coordinates are grouped into rotation
// orbits; an orbit of n images with k present scores (k-1)/(n-1), so a lone
// coordinate scores 0 and a complete orbit 1. On the rect lattice the
// mirror image's orbit is scored as well when it is distinct. The result is
// the mean over scored orbits, or NaN for an empty set.
func SymmetryScore(g lattice.Geometry, coords []lattice.Coord) float64 {
	present := make(map[lattice.Coord]bool, len(coords))
	for _, c := range coords {
		present[c] = true
	}
	if len(present) == 0 {
		return math.NaN()
	}

	// Canonical key -> one representative.
	orbits := make(map[lattice.Coord]lattice.Coord)
	for c := range present {
		orbits[lattice.Canonical(g, c)] = c
		if lattice.HasMirrorOrbit(g, c) {
			m := lattice.Mirror(g, c)
			orbits[lattice.Canonical(g, m)] = m
		}
	}

	keys := slices.SortedFunc(maps.Keys(orbits), func(a, b lattice.Coord) int {
		return cmp.Or(cmp.Compare(a.U, b.U), cmp.Compare(a.V, b.V), cmp.Compare(a.W, b.W))
	})

	var sum float64
	for _, key := range keys {
		rep := orbits[key]
		images := lattice.SymmetricImages(g, rep)
		n := len(images)
		if n == 1 {
			sum++
			continue
		}
		k := 0
		for _, im := range images {
			if present[im] {
				k++
			}
		}
		sum += max(0, float64(k-1)/float64(n-1))
	}
	return sum / float64(len(orbits))
}
