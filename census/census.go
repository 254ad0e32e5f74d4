// Package census materialises one snapshot's occupied slots as ECS
// entities for ad hoc per-cell queries.
package census

import (
	"log/slog"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/tumorsnap/codec"
	"github.com/pthm-cable/tumorsnap/components"
	"github.com/pthm-cable/tumorsnap/lattice"
)

// Census is an ECS world holding one entity per occupied slot.
type Census struct {
	world  *ecs.World
	mapper *ecs.Map4[components.Location, components.Ring, components.State, components.Size]
	filter *ecs.Filter4[components.Location, components.Ring, components.State, components.Size]
	count  int
}

// New creates a census of snap. Empty slots are skipped.
func New(snap codec.Snapshot, layout *lattice.Layout) *Census {
	world := ecs.NewWorld()
	c := &Census{
		world:  world,
		mapper: ecs.NewMap4[components.Location, components.Ring, components.State, components.Size](world),
		filter: ecs.NewFilter4[components.Location, components.Ring, components.State, components.Size](world),
	}

	for l := 0; l < snap.Layers; l++ {
		for ci := 0; ci < snap.Coords; ci++ {
			ring := components.Ring{Radius: layout.RadiusAt(ci)}
			for slot, cell := range snap.Voxel(l, ci) {
				if !cell.Occupied() {
					continue
				}
				loc := components.Location{Layer: l, Coord: ci, Slot: slot}
				state := components.State{Population: cell.Population, Type: cell.Type}
				size := components.Size{Volume: cell.Volume, Cycle: cell.Cycle}
				c.mapper.NewEntity(&loc, &ring, &state, &size)
				c.count++
			}
		}
	}
	slog.Debug("census built", "cells", c.count, "layers", snap.Layers)
	return c
}

// Len is the number of cells in the census.
func (c *Census) Len() int { return c.count }

// Query selects cells. Zero fields do not constrain.
type Query struct {
	Filter     codec.Filter
	Layer      *int  // restrict to one layer
	MinRadius  int   // inclusive
	MaxRadius  *int  // inclusive
	MinVolume  int16 // inclusive
	KnownCycle bool  // require a recorded cycle length
}

func (q Query) match(loc *components.Location, ring *components.Ring, state *components.State, size *components.Size) bool {
	cell := codec.Cell{Population: state.Population, Type: state.Type, Volume: size.Volume, Cycle: size.Cycle}
	if !q.Filter.Match(cell) {
		return false
	}
	if q.Layer != nil && loc.Layer != *q.Layer {
		return false
	}
	if ring.Radius < q.MinRadius || (q.MaxRadius != nil && ring.Radius > *q.MaxRadius) {
		return false
	}
	if size.Volume < q.MinVolume {
		return false
	}
	return !q.KnownCycle || size.KnownCycle()
}

// Each calls fn for every cell matching q.
func (c *Census) Each(q Query, fn func(components.Location, components.State, components.Size)) {
	query := c.filter.Query()
	for query.Next() {
		loc, ring, state, size := query.Get()
		if q.match(loc, ring, state, size) {
			fn(*loc, *state, *size)
		}
	}
}

// Count returns the number of cells matching q.
func (c *Census) Count(q Query) int {
	n := 0
	c.Each(q, func(components.Location, components.State, components.Size) { n++ })
	return n
}

// ByPopulation counts matching cells per population code.
func (c *Census) ByPopulation(q Query) map[int8]int {
	out := make(map[int8]int)
	c.Each(q, func(_ components.Location, s components.State, _ components.Size) { out[s.Population]++ })
	return out
}

// ByType counts matching cells per type code.
func (c *Census) ByType(q Query) map[int8]int {
	out := make(map[int8]int)
	c.Each(q, func(_ components.Location, s components.State, _ components.Size) { out[s.Type]++ })
	return out
}

// Volumes returns the volumes of matching cells, for distribution stats.
func (c *Census) Volumes(q Query) []float64 {
	var out []float64
	c.Each(q, func(_ components.Location, _ components.State, s components.Size) {
		out = append(out, float64(s.Volume))
	})
	return out
}

// Cycles returns the recorded cycle lengths of matching cells.
func (c *Census) Cycles(q Query) []float64 {
	q.KnownCycle = true
	var out []float64
	c.Each(q, func(_ components.Location, _ components.State, s components.Size) {
		out = append(out, float64(s.Cycle))
	})
	return out
}
