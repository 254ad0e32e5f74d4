package telemetry

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/tumorsnap/analysis"
	"github.com/pthm-cable/tumorsnap/census"
	"github.com/pthm-cable/tumorsnap/codec"
	"github.com/pthm-cable/tumorsnap/dataset"
)

// Collector derives summary rows from an assembled dataset.
type Collector struct {
	deadTypes   []int8
	voxelVolume float64
}

// NewCollector creates a collector.
// deadTypes: type codes excluded from the live fraction
// voxelVolume: volume of one voxel for environment totals
func NewCollector(deadTypes []int8, voxelVolume float64) *Collector {
	return &Collector{deadTypes: deadTypes, voxelVolume: voxelVolume}
}

// Snapshot summarises seed index si at time index ti.
func (c *Collector) Snapshot(d *dataset.Dataset, si, ti int) SnapshotStats {
	snap := d.Snapshot(si, ti)
	layout := d.Layout()
	centre := d.Setup.Height - 1

	cs := census.New(snap, layout)
	stats := SnapshotStats{
		Seed:         d.Setup.Seeds[si],
		Time:         d.Setup.Times[ti],
		Cells:        cs.Len(),
		LiveFraction: analysis.LiveFraction(snap, c.deadTypes),
		GrowthRadius: analysis.GrowthRadius(snap, layout),
		Symmetry:     analysis.SymmetryScore(layout.Geometry, analysis.OccupiedCoords(snap, layout, centre)),
		Perimeter:    analysis.Perimeter(snap, layout, centre),
	}

	// States-only datasets carry no volumes or cycles.
	if d.StatesOnly {
		nan := math.NaN()
		stats.VolumeMean, stats.VolumeStd, stats.VolumeP10, stats.VolumeP50, stats.VolumeP90 = nan, nan, nan, nan, nan
		stats.CycleMean = nan
		return stats
	}

	stats.VolumeMean, stats.VolumeStd, stats.VolumeP10, stats.VolumeP50, stats.VolumeP90 =
		ComputeDistribution(cs.Volumes(census.Query{}))
	if cycles := cs.Cycles(census.Query{}); len(cycles) > 0 {
		stats.CycleMean = stat.Mean(cycles, nil)
	}
	return stats
}

// Profiles returns the radial profile of every population.
func (c *Collector) Profiles(d *dataset.Dataset, si, ti int) []ProfileRow {
	snap := d.Snapshot(si, ti)
	layout := d.Layout()
	var rows []ProfileRow
	for _, pop := range d.Setup.Populations {
		f := codec.Filter{Populations: []int8{int8(pop)}}
		counts := analysis.CountByRadius(snap, layout, f)
		perVoxel := analysis.PopulationProfile(snap, layout, f)
		for r := range counts {
			rows = append(rows, ProfileRow{
				Seed:       d.Setup.Seeds[si],
				Time:       d.Setup.Times[ti],
				Population: pop,
				Radius:     r,
				Count:      counts[r],
				PerVoxel:   perVoxel[r],
			})
		}
	}
	return rows
}

// Environment returns the total concentration and amount of each species.
func (c *Collector) Environment(d *dataset.Dataset, si, ti int) ([]EnvironmentRow, error) {
	s := d.Setup
	rows := make([]EnvironmentRow, 0, len(s.Species))
	for _, sp := range s.Species {
		grid, err := d.Environment(sp, si, ti)
		if err != nil {
			return nil, err
		}
		rows = append(rows, EnvironmentRow{
			Seed:          s.Seeds[si],
			Time:          s.Times[ti],
			Species:       sp,
			Concentration: analysis.TotalConcentration(s.Geometry, s.EnvironmentShape(), grid, c.voxelVolume),
			Amount:        analysis.TotalAmount(s.Geometry, s.EnvironmentShape(), grid, c.voxelVolume),
		})
	}
	return rows, nil
}

// Export writes every snapshot's rows to om.
func (c *Collector) Export(d *dataset.Dataset, om *OutputManager) error {
	if om == nil {
		return nil
	}
	for si := range d.Setup.Seeds {
		for ti := range d.Setup.Times {
			stats := c.Snapshot(d, si, ti)
			if err := om.WriteSnapshot(stats); err != nil {
				return err
			}
			if err := om.WriteProfiles(c.Profiles(d, si, ti)); err != nil {
				return err
			}
			env, err := c.Environment(d, si, ti)
			if err != nil {
				return err
			}
			if err := om.WriteEnvironment(env); err != nil {
				return err
			}
		}
	}
	return nil
}
