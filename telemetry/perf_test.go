package telemetry

import (
	"sync"
	"testing"
	"time"
)

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		st := pc.StartSeed()
		st.StartPhase(PhaseParse)
		time.Sleep(100 * time.Microsecond)
		st.StartPhase(PhaseDecode)
		time.Sleep(200 * time.Microsecond)
		pc.EndSeed(st)
	}

	stats := pc.Stats()

	if stats.Seeds != 5 {
		t.Errorf("seeds = %d, want 5", stats.Seeds)
	}
	if stats.AvgSeedDuration <= 0 {
		t.Error("expected positive average seed duration")
	}
	if _, ok := stats.PhaseAvg[PhaseParse]; !ok {
		t.Error("expected parse phase to be tracked")
	}
	if _, ok := stats.PhaseAvg[PhaseDecode]; !ok {
		t.Error("expected decode phase to be tracked")
	}
	if stats.SeedsPerSecond <= 0 {
		t.Error("expected positive seeds per second")
	}
}

func TestPerfCollector_Concurrent(t *testing.T) {
	pc := NewPerfCollector(5)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st := pc.StartSeed()
			st.StartPhase(PhaseDecode)
			time.Sleep(50 * time.Microsecond)
			pc.EndSeed(st)
		}()
	}
	wg.Wait()

	// Window caps the retained samples.
	if got := pc.Stats().Seeds; got != 5 {
		t.Errorf("seeds = %d, want 5", got)
	}
}

func TestPerfCollector_PhasePercentages(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		st := pc.StartSeed()
		st.StartPhase("fast")
		time.Sleep(10 * time.Microsecond)
		st.StartPhase("slow")
		time.Sleep(1 * time.Millisecond)
		pc.EndSeed(st)
	}

	stats := pc.Stats()

	fastPct := stats.PhasePct["fast"]
	slowPct := stats.PhasePct["slow"]
	if slowPct <= fastPct {
		t.Errorf("expected slow phase (%v%%) > fast phase (%v%%)", slowPct, fastPct)
	}
}

func TestPerfCollector_EmptyAndNil(t *testing.T) {
	for name, pc := range map[string]*PerfCollector{"empty": NewPerfCollector(10), "nil": nil} {
		t.Run(name, func(t *testing.T) {
			st := pc.StartSeed()
			st.StartPhase(PhaseParse)
			if name == "nil" {
				pc.EndSeed(st)
			}

			stats := pc.Stats()
			if stats.AvgSeedDuration != 0 {
				t.Error("expected zero avg seed duration")
			}
			if stats.PhaseAvg == nil || stats.PhasePct == nil {
				t.Error("expected non-nil phase maps")
			}
		})
	}
}
