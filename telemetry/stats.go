package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// SnapshotStats summarises one (seed, timepoint) snapshot.
type SnapshotStats struct {
	Seed int     `csv:"seed"`
	Time float64 `csv:"time"`

	Cells        int     `csv:"cells"`
	LiveFraction float64 `csv:"live_fraction"` // NaN without cells
	GrowthRadius int     `csv:"growth_radius"` // -1 without cells

	// Shape of the centre layer
	Symmetry  float64 `csv:"symmetry"` // NaN without cells
	Perimeter int     `csv:"perimeter"`

	// Volume distribution
	VolumeMean float64 `csv:"volume_mean"`
	VolumeStd  float64 `csv:"volume_std"`
	VolumeP10  float64 `csv:"volume_p10"`
	VolumeP50  float64 `csv:"volume_p50"`
	VolumeP90  float64 `csv:"volume_p90"`

	// Cells with a recorded cycle length only
	CycleMean float64 `csv:"cycle_mean"`
}

// ProfileRow is one radius bin of a per-population radial profile.
type ProfileRow struct {
	Seed       int     `csv:"seed"`
	Time       float64 `csv:"time"`
	Population int     `csv:"population"`
	Radius     int     `csv:"radius"`
	Count      float64 `csv:"count"`
	PerVoxel   float64 `csv:"per_voxel"`
}

// EnvironmentRow is one species total for a snapshot.
type EnvironmentRow struct {
	Seed          int     `csv:"seed"`
	Time          float64 `csv:"time"`
	Species       string  `csv:"species"`
	Concentration float64 `csv:"concentration"`
	Amount        float64 `csv:"amount"`
}

// IngestSummary records one ingestion run.
type IngestSummary struct {
	Source     string `csv:"source"`
	Geometry   string `csv:"geometry"`
	Radius     int    `csv:"radius"`
	Height     int    `csv:"height"`
	Seeds      int    `csv:"seeds"`
	Excluded   int    `csv:"excluded"`
	Timepoints int    `csv:"timepoints"`
	Cells      int    `csv:"cells"`
	Mode       string `csv:"mode"`
	ElapsedMS  int64  `csv:"elapsed_ms"`
}

// LogValue implements slog.LogValuer for structured logging.
func (s IngestSummary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("source", s.Source),
		slog.String("geometry", s.Geometry),
		slog.Int("radius", s.Radius),
		slog.Int("height", s.Height),
		slog.Int("seeds", s.Seeds),
		slog.Int("excluded", s.Excluded),
		slog.Int("timepoints", s.Timepoints),
		slog.Int("cells", s.Cells),
		slog.String("mode", s.Mode),
		slog.Int64("elapsed_ms", s.ElapsedMS),
	)
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeDistribution calculates mean, population std, and percentiles.
func ComputeDistribution(values []float64) (mean, std, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0, 0
	}

	mean, std = stat.PopMeanStdDev(values, nil)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, std, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s SnapshotStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("seed", s.Seed),
		slog.Float64("time", s.Time),
		slog.Int("cells", s.Cells),
		slog.Float64("live_fraction", s.LiveFraction),
		slog.Int("growth_radius", s.GrowthRadius),
		slog.Float64("symmetry", s.Symmetry),
		slog.Int("perimeter", s.Perimeter),
		slog.Float64("volume_mean", s.VolumeMean),
		slog.Float64("volume_p50", s.VolumeP50),
		slog.Float64("cycle_mean", s.CycleMean),
	)
}
