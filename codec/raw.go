package codec

import (
	"encoding/json"
	"fmt"
)

// File is one seed's raw snapshot dump. Timepoints stay undecoded until
// requested so that a parse failure can name its timepoint.
type File struct {
	Seed       *int              `json:"seed,omitempty"`
	Config     RunConfig         `json:"config"`
	Timepoints []json.RawMessage `json:"timepoints"`
}

// RunConfig is the simulation setup block of a seed file.
type RunConfig struct {
	Radius      int   `json:"radius"`
	Height      int   `json:"height"`
	Days        int   `json:"days"`
	Populations []int `json:"pops"`
}

// Timepoint is one raw snapshot: sparse occupied coordinates and the
// per-species molecule grids ([layer][radius bin]).
type Timepoint struct {
	Time      float64                `json:"time"`
	Cells     []CellEntry            `json:"cells"`
	Molecules map[string][][]float64 `json:"molecules"`
}

// CellEntry is one occupied coordinate and its cells. Coord carries the
// planar components followed by the signed layer offset.
type CellEntry struct {
	Coord []int
	Cells []CellTuple
}

// CellTuple is one raw cell record.
type CellTuple struct {
	ID         int64
	Population int
	Type       int
	Slot       int
	Volume     float64
	Cycles     []float64
}

// ParseFile decodes the outer structure of a seed file.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if f.Config.Radius < 1 {
		return nil, fmt.Errorf("parse seed file: radius %d must be positive", f.Config.Radius)
	}
	if f.Config.Height < 1 {
		return nil, fmt.Errorf("parse seed file: height %d must be positive", f.Config.Height)
	}
	return &f, nil
}

// Timepoint decodes timepoint i.
func (f *File) Timepoint(i int) (*Timepoint, error) {
	if i < 0 || i >= len(f.Timepoints) {
		return nil, fmt.Errorf("timepoint %d out of range [0,%d)", i, len(f.Timepoints))
	}
	var tp Timepoint
	if err := json.Unmarshal(f.Timepoints[i], &tp); err != nil {
		return nil, Locate(err, -1, i)
	}
	return &tp, nil
}

// Times decodes only the time field of every timepoint.
func (f *File) Times() ([]float64, error) {
	times := make([]float64, len(f.Timepoints))
	for i, raw := range f.Timepoints {
		var head struct {
			Time *float64 `json:"time"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return nil, Locate(err, -1, i)
		}
		if head.Time == nil {
			return nil, Locate(fmt.Errorf("missing time"), -1, i)
		}
		times[i] = *head.Time
	}
	return times, nil
}

// UnmarshalJSON decodes [coordinate, [cell, ...]].
func (e *CellEntry) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil || len(parts) != 2 {
		return decodeErr(nil, fmt.Errorf("%w: entry is not [coordinate, cells]", ErrMalformedCell))
	}
	if err := json.Unmarshal(parts[0], &e.Coord); err != nil {
		return decodeErr(nil, fmt.Errorf("%w: coordinate: %v", ErrMalformedCell, err))
	}
	var cells []json.RawMessage
	if err := json.Unmarshal(parts[1], &cells); err != nil {
		return decodeErr(e.Coord, fmt.Errorf("%w: cell list: %v", ErrMalformedCell, err))
	}
	e.Cells = make([]CellTuple, len(cells))
	for i, raw := range cells {
		if err := e.Cells[i].UnmarshalJSON(raw); err != nil {
			return decodeErr(e.Coord, fmt.Errorf("cell %d: %w", i, err))
		}
	}
	return nil
}

// UnmarshalJSON decodes [id, population, type, slot, volume, [cycle, ...]].
func (c *CellTuple) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCell, err)
	}
	if len(parts) != 6 {
		return fmt.Errorf("%w: want 6 fields, got %d", ErrMalformedCell, len(parts))
	}
	fields := []struct {
		name string
		dst  any
	}{
		{"id", &c.ID},
		{"population", &c.Population},
		{"type", &c.Type},
		{"slot", &c.Slot},
		{"volume", &c.Volume},
		{"cycles", &c.Cycles},
	}
	for i, f := range fields {
		if err := json.Unmarshal(parts[i], f.dst); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedCell, f.name, err)
		}
	}
	return nil
}
