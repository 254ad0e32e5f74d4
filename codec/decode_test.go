package codec

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/pthm-cable/tumorsnap/lattice"
)

func parseTimepoint(t *testing.T, raw string) *Timepoint {
	t.Helper()
	var tp Timepoint
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		t.Fatalf("unmarshal timepoint: %v", err)
	}
	return &tp
}

func TestDecodeSingleCellHex(t *testing.T) {
	tp := parseTimepoint(t, `{"time": 0, "cells": [[[0,0,0,0], [[7, 0, 3, 0, 120.0, []]]]]}`)
	layout := lattice.NewLayout(lattice.Hex, 2)

	snap, err := Decode(tp, layout, 1)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if snap.Layers != 1 || snap.Coords != 7 || snap.Slots != 54 {
		t.Fatalf("shape = [%d][%d][%d], want [1][7][54]", snap.Layers, snap.Coords, snap.Slots)
	}

	origin, ok := layout.IndexOf(lattice.HexCoord(0, 0, 0))
	if !ok {
		t.Fatal("origin missing from layout")
	}
	want := Cell{Population: 0, Type: 3, Volume: 120, Cycle: -1}
	if got := snap.At(0, origin, 0); got != want {
		t.Errorf("cell = %+v, want %+v", got, want)
	}
	if _, known := snap.At(0, origin, 0).CycleLength(); known {
		t.Error("cycle should be unknown")
	}

	empty := 0
	for i, c := range snap.Cells {
		if i == snap.Offset(0, origin, 0) {
			continue
		}
		if c != Empty {
			t.Fatalf("slot %d = %+v, want sentinel", i, c)
		}
		empty++
	}
	if empty != 7*54-1 {
		t.Errorf("empty slots = %d, want %d", empty, 7*54-1)
	}
}

func TestDecodeRoundsFields(t *testing.T) {
	tp := parseTimepoint(t, `{"time": 1, "cells": [[[1,-1,1], [[1, 2, 4, 63, 2250.5, [1000, 1001, 1003]]]]]}`)
	layout := lattice.NewLayout(lattice.Rect, 3)

	snap, err := Decode(tp, layout, 2)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	idx, _ := layout.IndexOf(lattice.RectCoord(1, -1))
	got := snap.At(LayerIndex(1, 2), idx, 63)
	if got.Volume != 2250 {
		t.Errorf("volume = %d, want 2250 (half to even)", got.Volume)
	}
	if cycle, ok := got.CycleLength(); !ok || cycle != 1001 {
		t.Errorf("cycle = %d, %v, want 1001", cycle, ok)
	}
}

func TestDecodeIdempotent(t *testing.T) {
	tp := parseTimepoint(t, `{"time": 0, "cells": [
		[[0,0,0,0], [[1, 0, 3, 0, 10, [5]], [2, 1, 4, 5, 11, []]]],
		[[1,-1,0,0], [[3, 0, 2, 53, 12, [7, 8]]]]
	]}`)
	layout := lattice.NewLayout(lattice.Hex, 3)

	a, err := Decode(tp, layout, 1)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	b, err := Decode(tp, layout, 1)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	for i := range a.Cells {
		if a.Cells[i] != b.Cells[i] {
			t.Fatalf("decodes differ at %d: %+v vs %+v", i, a.Cells[i], b.Cells[i])
		}
	}
}

func TestDecodeIntoResetsBuffer(t *testing.T) {
	layout := lattice.NewLayout(lattice.Hex, 2)
	snap := NewSnapshot(1, layout.Len(), layout.Capacity())
	snap.Cells[5] = Cell{Population: 1, Type: 1, Volume: 1, Cycle: 1}

	tp := parseTimepoint(t, `{"time": 0, "cells": []}`)
	if err := DecodeInto(snap, tp, layout, 1); err != nil {
		t.Fatalf("DecodeInto failed: %v", err)
	}
	if snap.Cells[5] != Empty {
		t.Errorf("stale cell survived decode: %+v", snap.Cells[5])
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		geom lattice.Geometry
		want error
	}{
		{"slot over capacity", `{"cells": [[[0,0,0,0], [[1, 0, 3, 54, 10, []]]]]}`, lattice.Hex, ErrCapacity},
		{"outside radius", `{"cells": [[[5,-5,0,0], [[1, 0, 3, 0, 10, []]]]]}`, lattice.Hex, ErrOutsideLattice},
		{"layer outside height", `{"cells": [[[0,0,0,3], [[1, 0, 3, 0, 10, []]]]]}`, lattice.Hex, ErrOutsideLattice},
		{"rect coordinate in hex run", `{"cells": [[[0,0,0], [[1, 0, 3, 0, 10, []]]]]}`, lattice.Hex, ErrGeometryMismatch},
		{"negative volume", `{"cells": [[[0,0,0], [[1, 0, 3, 0, -4, []]]]]}`, lattice.Rect, ErrFieldRange},
		{"population too large", `{"cells": [[[0,0,0], [[1, 300, 3, 0, 4, []]]]]}`, lattice.Rect, ErrFieldRange},
		{"slot claimed twice", `{"cells": [[[0,0,0,0], [[1, 0, 3, 0, 120, []], [2, 1, 4, 0, 300, [9]]]]]}`, lattice.Hex, ErrSlotTaken},
		{"empty entry outside radius", `{"cells": [[[5,-5,0,0], []]]}`, lattice.Hex, ErrOutsideLattice},
		{"empty entry wrong arity", `{"cells": [[[0,0,0], []]]}`, lattice.Hex, ErrGeometryMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := parseTimepoint(t, tt.raw)
			_, err := Decode(tp, lattice.NewLayout(tt.geom, 2), 1)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var de *DecodeError
			if !errors.As(err, &de) || de.Coord == nil {
				t.Errorf("error %v does not carry the coordinate", err)
			}
		})
	}
}

func TestMalformedTuple(t *testing.T) {
	var tp Timepoint
	err := json.Unmarshal([]byte(`{"cells": [[[0,0,0,0], [[1, 0, 3, 0]]]]}`), &tp)
	if !errors.Is(err, ErrMalformedCell) {
		t.Fatalf("error = %v, want ErrMalformedCell", err)
	}
	located := Locate(err, 4, 2)
	var de *DecodeError
	if !errors.As(located, &de) {
		t.Fatalf("Locate lost DecodeError: %v", located)
	}
	if de.Seed != 4 || de.Timepoint != 2 {
		t.Errorf("located seed/timepoint = %d/%d, want 4/2", de.Seed, de.Timepoint)
	}
}

func TestLoadEnvironment(t *testing.T) {
	tp := parseTimepoint(t, `{"molecules": {
		"glucose": [[1, 2, 3], [4, 5, 6], [7, 8, 9]],
		"oxygen":  [[0, 0, 0], [1e9, 0, 0], [0, 0, 0]]
	}}`)
	shape := EnvironmentShape{Layers: 3, Bins: 3}

	env := NewEnvironment([]string{"glucose", "oxygen"}, shape)
	if err := LoadEnvironment(tp, []string{"glucose", "oxygen"}, shape, env); err != nil {
		t.Fatalf("LoadEnvironment failed: %v", err)
	}
	if env["glucose"][5] != 6 {
		t.Errorf("glucose[1][2] = %v, want 6", env["glucose"][5])
	}
	if env["oxygen"][3] != 1e9 {
		t.Errorf("oxygen[1][0] = %v, want 1e9", env["oxygen"][3])
	}

	missing := NewEnvironment([]string{"tgfa"}, shape)
	if err := LoadEnvironment(tp, []string{"tgfa"}, shape, missing); !errors.Is(err, ErrMissingMolecule) {
		t.Errorf("error = %v, want ErrMissingMolecule", err)
	}

	small := EnvironmentShape{Layers: 3, Bins: 2}
	if err := LoadEnvironment(tp, []string{"glucose"}, small, NewEnvironment([]string{"glucose"}, small)); !errors.Is(err, ErrMalformedGrid) {
		t.Errorf("error = %v, want ErrMalformedGrid", err)
	}
}

func TestFilterMatch(t *testing.T) {
	f := Filter{Populations: []int8{1}, Types: []int8{3, 4}}
	if !f.Match(Cell{Population: 1, Type: 4, Volume: 1, Cycle: -1}) {
		t.Error("expected match")
	}
	if f.Match(Cell{Population: 0, Type: 4}) {
		t.Error("wrong population matched")
	}
	if (Filter{}).Match(Empty) {
		t.Error("empty slot matched")
	}
}
