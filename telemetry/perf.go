package telemetry

import (
	"log/slog"
	"sync"
	"time"
)

// Phase names for one seed's ingestion.
const (
	PhaseParse       = "parse"
	PhaseDecode      = "decode"
	PhaseEnvironment = "environment"
)

// PerfSample holds timing data for a single seed.
type PerfSample struct {
	SeedDuration time.Duration
	Phases       map[string]time.Duration
}

// PerfCollector tracks per-seed timing over a rolling window. Seeds are
// decoded concurrently, so each one times itself with a SeedTimer and the
// collector only serializes the final record.
type PerfCollector struct {
	mu          sync.Mutex
	windowSize  int
	samples     []PerfSample
	writeIndex  int
	sampleCount int
	first       time.Time
	last        time.Time
}

// NewPerfCollector creates a new performance collector.
// windowSize: number of seeds to average over.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 64
	}
	return &PerfCollector{
		windowSize: windowSize,
		samples:    make([]PerfSample, windowSize),
	}
}

// SeedTimer times the phases of one seed. It is owned by a single goroutine.
type SeedTimer struct {
	start      time.Time
	phaseStart time.Time
	lastPhase  string
	phases     map[string]time.Duration
}

// StartSeed begins timing a seed. A nil collector returns a timer whose
// record is discarded.
func (p *PerfCollector) StartSeed() *SeedTimer {
	return &SeedTimer{start: time.Now(), phases: make(map[string]time.Duration)}
}

// StartPhase begins timing a specific phase.
func (t *SeedTimer) StartPhase(phase string) {
	now := time.Now()
	// End previous phase if any
	if t.lastPhase != "" {
		t.phases[t.lastPhase] += now.Sub(t.phaseStart)
	}
	t.phaseStart = now
	t.lastPhase = phase
}

// EndSeed finishes the timer and records the sample.
func (p *PerfCollector) EndSeed(t *SeedTimer) {
	now := time.Now()
	// End final phase
	if t.lastPhase != "" {
		t.phases[t.lastPhase] += now.Sub(t.phaseStart)
		t.lastPhase = ""
	}
	if p == nil {
		return
	}

	sample := PerfSample{
		SeedDuration: now.Sub(t.start),
		Phases:       t.phases,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.first.IsZero() || t.start.Before(p.first) {
		p.first = t.start
	}
	if now.After(p.last) {
		p.last = now
	}
	p.samples[p.writeIndex] = sample
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	Seeds int

	// Seed timing
	AvgSeedDuration time.Duration
	MinSeedDuration time.Duration
	MaxSeedDuration time.Duration

	// Phase breakdown (average durations)
	PhaseAvg map[string]time.Duration

	// Phase percentages of total seed time
	PhasePct map[string]float64

	// Wall-clock throughput across concurrent workers
	SeedsPerSecond float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	if p == nil {
		return PerfStats{PhaseAvg: map[string]time.Duration{}, PhasePct: map[string]float64{}}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg: make(map[string]time.Duration),
			PhasePct: make(map[string]float64),
		}
	}

	var total time.Duration
	var minSeed, maxSeed time.Duration
	phaseSum := make(map[string]time.Duration)

	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.SeedDuration

		if i == 0 || s.SeedDuration < minSeed {
			minSeed = s.SeedDuration
		}
		if s.SeedDuration > maxSeed {
			maxSeed = s.SeedDuration
		}

		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	avg := total / time.Duration(p.sampleCount)

	phaseAvg := make(map[string]time.Duration)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if avg > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avg) * 100
		}
	}

	var perSec float64
	if wall := p.last.Sub(p.first); wall > 0 {
		perSec = float64(p.sampleCount) / wall.Seconds()
	}

	return PerfStats{
		Seeds:           p.sampleCount,
		AvgSeedDuration: avg,
		MinSeedDuration: minSeed,
		MaxSeedDuration: maxSeed,
		PhaseAvg:        phaseAvg,
		PhasePct:        phasePct,
		SeedsPerSecond:  perSec,
	}
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"seeds", s.Seeds,
		"avg_seed_ms", s.AvgSeedDuration.Milliseconds(),
		"min_seed_ms", s.MinSeedDuration.Milliseconds(),
		"max_seed_ms", s.MaxSeedDuration.Milliseconds(),
		"seeds_per_sec", s.SeedsPerSecond,
	}

	for _, phase := range []string{PhaseParse, PhaseDecode, PhaseEnvironment} {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", int(pct*10)/10.0)
		}
	}

	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("seeds", s.Seeds),
		slog.Int64("avg_seed_ms", s.AvgSeedDuration.Milliseconds()),
		slog.Int64("max_seed_ms", s.MaxSeedDuration.Milliseconds()),
		slog.Float64("seeds_per_sec", s.SeedsPerSecond),
	}
	for phase, pct := range s.PhasePct {
		attrs = append(attrs, slog.Float64(phase+"_pct", pct))
	}
	return slog.GroupValue(attrs...)
}
