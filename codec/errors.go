package codec

import (
	"errors"
	"fmt"
	"strings"
)

// Decode failure classes. All are fatal for the affected seed.
var (
	ErrMalformedCell    = errors.New("malformed cell tuple")
	ErrOutsideLattice   = errors.New("coordinate outside lattice")
	ErrCapacity         = errors.New("slot exceeds geometry capacity")
	ErrSlotTaken        = errors.New("slot claimed by two cells")
	ErrGeometryMismatch = errors.New("geometry mismatch")
	ErrMissingMolecule  = errors.New("missing molecule grid")
	ErrMalformedGrid    = errors.New("malformed molecule grid")
	ErrFieldRange       = errors.New("field value out of range")
)

// DecodeError locates a decode failure. Seed and Timepoint are -1 when not
// known at the point the error was raised.
type DecodeError struct {
	Seed      int
	Timepoint int
	Coord     []int
	Err       error
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	if e.Seed >= 0 {
		fmt.Fprintf(&b, "seed %d ", e.Seed)
	}
	if e.Timepoint >= 0 {
		fmt.Fprintf(&b, "timepoint %d ", e.Timepoint)
	}
	if e.Coord != nil {
		fmt.Fprintf(&b, "coordinate %v ", e.Coord)
	}
	if b.Len() == 0 {
		b.WriteString("decode ")
	}
	s := strings.TrimSuffix(b.String(), " ")
	return s + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(coord []int, err error) error {
	return &DecodeError{Seed: -1, Timepoint: -1, Coord: coord, Err: err}
}

// Locate attaches seed and timepoint context to err. An existing
// DecodeError is updated in place; other errors are wrapped.
func Locate(err error, seed, timepoint int) error {
	if err == nil {
		return nil
	}
	var de *DecodeError
	if errors.As(err, &de) {
		if de.Seed < 0 {
			de.Seed = seed
		}
		if de.Timepoint < 0 {
			de.Timepoint = timepoint
		}
		return err
	}
	return &DecodeError{Seed: seed, Timepoint: timepoint, Err: err}
}
