/*
Copyright © 2025 the galvoscan authors.
This file is part of galvoscan.

galvoscan is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

galvoscan is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with galvoscan.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package plan orders rasterized grid points into a scan path.
//
// The ordering is a greedy nearest-neighbor walk that prefers single
// axis-aligned steps. It is deterministic for a given candidate order
// and is not globally optimal.
package plan

import (
	"github.com/spatialmodel/galvoscan/mesh"
	"github.com/spatialmodel/galvoscan/raster"
)

// ScanPath is an ordered sequence of grid points.
type ScanPath []mesh.IndexPoint

// Len returns the number of points in the path.
func (p ScanPath) Len() int { return len(p) }

var axisOffsets = [4]mesh.IndexPoint{
	{IX: 0, IY: -1},
	{IX: -1, IY: 0},
	{IX: 1, IY: 0},
	{IX: 0, IY: 1},
}

// pool holds the candidates that have not been placed yet. Removal
// swaps the last element into the vacated slot; rank preserves the
// candidate-set position for tie breaking.
type pool struct {
	points []mesh.IndexPoint
	rank   []int
	pos    map[mesh.IndexPoint]int
}

func newPool(c raster.CandidateSet) *pool {
	p := &pool{
		points: make([]mesh.IndexPoint, len(c)),
		rank:   make([]int, len(c)),
		pos:    make(map[mesh.IndexPoint]int, len(c)),
	}
	for i, pt := range c {
		p.points[i] = pt
		p.rank[i] = i
		p.pos[pt] = i
	}
	return p
}

func (p *pool) len() int { return len(p.points) }

func (p *pool) remove(pt mesh.IndexPoint) {
	i := p.pos[pt]
	last := len(p.points) - 1
	if i != last {
		p.points[i] = p.points[last]
		p.rank[i] = p.rank[last]
		p.pos[p.points[i]] = i
	}
	p.points = p.points[:last]
	p.rank = p.rank[:last]
	delete(p.pos, pt)
}

// nearest returns the remaining point closest to from. Ties go to the
// point that came first in the candidate set.
func (p *pool) nearest(from mesh.IndexPoint) mesh.IndexPoint {
	best := -1
	var bestD2, bestRank int
	for i, pt := range p.points {
		d2 := from.Dist2(pt)
		if best < 0 || d2 < bestD2 || (d2 == bestD2 && p.rank[i] < bestRank) {
			best, bestD2, bestRank = i, d2, p.rank[i]
		}
	}
	return p.points[best]
}

// axisNeighbor returns the remaining axis-aligned neighbor of from
// that came first in the candidate set, if any.
func (p *pool) axisNeighbor(from mesh.IndexPoint) (mesh.IndexPoint, bool) {
	best := -1
	for _, off := range axisOffsets {
		q := mesh.IndexPoint{IX: from.IX + off.IX, IY: from.IY + off.IY}
		i, ok := p.pos[q]
		if ok && (best < 0 || p.rank[i] < p.rank[best]) {
			best = i
		}
	}
	if best < 0 {
		return mesh.IndexPoint{}, false
	}
	return p.points[best], true
}

// Plan orders the candidates into a scan path. The walk starts at the
// first candidate. At each step it moves to the remaining axis-aligned
// neighbor that comes first in candidate order; when there is none it
// jumps to the nearest remaining candidate, again preferring the
// earliest candidate on ties.
//
// The candidates must be unique. The output is deterministic for a
// fixed candidate order; raster.GridDef.Rasterize lists candidates in
// row-major order. An empty candidate set yields an empty path.
//
// Axis-neighbor lookups are constant time, but each fallback jump scans
// the remaining pool, so the worst case is quadratic in the number of
// candidates.
func Plan(c raster.CandidateSet) ScanPath {
	if len(c) == 0 {
		return ScanPath{}
	}
	p := newPool(c)
	path := make(ScanPath, 0, len(c))
	current := c[0]
	p.remove(current)
	path = append(path, current)
	for p.len() > 0 {
		next, ok := p.axisNeighbor(current)
		if !ok {
			next = p.nearest(current)
		}
		p.remove(next)
		path = append(path, next)
		current = next
	}
	return path
}
