// Package analysis reduces decoded snapshots to radial profiles and shape
// diagnostics.
package analysis

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/tumorsnap/codec"
	"github.com/pthm-cable/tumorsnap/dataset"
	"github.com/pthm-cable/tumorsnap/lattice"
)

// BinByRadius scatter-adds one value per coordinate into radius bins.
// values is indexed like the layout.
func BinByRadius(layout *lattice.Layout, values []float64) ([]float64, error) {
	if len(values) != layout.Len() {
		return nil, fmt.Errorf("bin by radius: %d values for %d coordinates", len(values), layout.Len())
	}
	bins := make([]float64, layout.Radius)
	for i, v := range values {
		bins[layout.RadiusAt(i)] += v
	}
	return bins, nil
}

// NormalizeByRing divides each radius bin by its ring size, giving a
// per-coordinate value. Empty rings stay at zero.
func NormalizeByRing(g lattice.Geometry, bins []float64) []float64 {
	out := make([]float64, len(bins))
	for r, v := range bins {
		out[r] = v / float64(g.RingSize(r))
	}
	return out
}

// ringWeights returns ring sizes as float64 for weighted sums.
func ringWeights(g lattice.Geometry, bins int) []float64 {
	w := make([]float64, bins)
	for r := range w {
		w[r] = float64(g.RingSize(r))
	}
	return w
}

// TotalAmount is the volume-weighted sum of a [layer][bin] concentration
// grid: each bin stands for ring-size voxels of voxelVolume each.
func TotalAmount(g lattice.Geometry, shape codec.EnvironmentShape, grid []float32, voxelVolume float64) float64 {
	w := ringWeights(g, shape.Bins)
	row := make([]float64, shape.Bins)
	var total float64
	for l := 0; l < shape.Layers; l++ {
		for b := range row {
			row[b] = float64(grid[l*shape.Bins+b])
		}
		total += voxelVolume * floats.Dot(w, row)
	}
	return total
}

// TotalConcentration is the volume-weighted spatial mean of a grid. It
// returns NaN when the grid covers no volume.
func TotalConcentration(g lattice.Geometry, shape codec.EnvironmentShape, grid []float32, voxelVolume float64) float64 {
	volume := voxelVolume * float64(shape.Layers) * floats.Sum(ringWeights(g, shape.Bins))
	if volume == 0 {
		return math.NaN()
	}
	return TotalAmount(g, shape, grid, voxelVolume) / volume
}

// EnvironmentTotals computes TotalConcentration of species for every
// (seed, timepoint), indexed [seed][time].
func EnvironmentTotals(d *dataset.Dataset, species string, voxelVolume float64) ([][]float64, error) {
	s := d.Setup
	out := make([][]float64, len(s.Seeds))
	for si := range out {
		out[si] = make([]float64, len(s.Times))
		for ti := range s.Times {
			grid, err := d.Environment(species, si, ti)
			if err != nil {
				return nil, err
			}
			out[si][ti] = TotalConcentration(s.Geometry, s.EnvironmentShape(), grid, voxelVolume)
		}
	}
	return out, nil
}

// CountByRadius counts cells matching f per radius bin, summed over all
// layers of the snapshot.
func CountByRadius(snap codec.Snapshot, layout *lattice.Layout, f codec.Filter) []float64 {
	perCoord := make([]float64, layout.Len())
	for l := 0; l < snap.Layers; l++ {
		for c := range perCoord {
			perCoord[c] += float64(snap.Count(f, l, c))
		}
	}
	bins, _ := BinByRadius(layout, perCoord)
	return bins
}

// PopulationProfile is the mean number of matching cells per voxel at each
// radius.
func PopulationProfile(snap codec.Snapshot, layout *lattice.Layout, f codec.Filter) []float64 {
	profile := NormalizeByRing(layout.Geometry, CountByRadius(snap, layout, f))
	floats.Scale(1/float64(snap.Layers), profile)
	return profile
}

// LiveFraction is the share of cells whose type is not in dead. It is NaN
// for a snapshot without cells.
func LiveFraction(snap codec.Snapshot, dead []int8) float64 {
	var total, live int
	for _, c := range snap.Cells {
		if !c.Occupied() {
			continue
		}
		total++
		if !slices.Contains(dead, c.Type) {
			live++
		}
	}
	if total == 0 {
		return math.NaN()
	}
	return float64(live) / float64(total)
}

// GrowthRadius is the outermost radius holding any cell, or -1 for an
// empty snapshot.
func GrowthRadius(snap codec.Snapshot, layout *lattice.Layout) int {
	radius := -1
	for l := 0; l < snap.Layers; l++ {
		for c := 0; c < snap.Coords; c++ {
			if r := layout.RadiusAt(c); r > radius && snap.Count(codec.Filter{}, l, c) > 0 {
				radius = r
			}
		}
	}
	return radius
}

// OccupiedCoords lists the coordinates of one layer holding at least one
// cell, in layout order.
func OccupiedCoords(snap codec.Snapshot, layout *lattice.Layout, layer int) []lattice.Coord {
	var out []lattice.Coord
	for c := 0; c < snap.Coords; c++ {
		if snap.Count(codec.Filter{}, layer, c) > 0 {
			out = append(out, layout.At(c))
		}
	}
	return out
}

// Perimeter counts occupied coordinates of one layer with at least one
// empty or out-of-lattice neighbor.
func Perimeter(snap codec.Snapshot, layout *lattice.Layout, layer int) int {
	occupied := make(map[lattice.Coord]bool)
	for _, c := range OccupiedCoords(snap, layout, layer) {
		occupied[c] = true
	}
	n := 0
	for c := range occupied {
		for _, nb := range lattice.Neighbors(layout.Geometry, c) {
			if !occupied[nb] {
				n++
				break
			}
		}
	}
	return n
}
