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

// Package raster enumerates the index-grid points covered by a region.
package raster

import (
	"math"
	"runtime"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"

	"github.com/spatialmodel/galvoscan/mesh"
	"github.com/spatialmodel/galvoscan/region"
)

// ContainmentMargin is the distance, in index units, by which a region
// is dilated when deciding whether a grid point is covered.
const ContainmentMargin = 1.0

// GridDef specifies the index grid that regions are rasterized onto.
type GridDef struct {
	ROI mesh.ROI

	// Step is the physical distance (µm) of one index unit.
	Step float64

	// Margin is the dilation distance in index units.
	Margin float64
}

// NewGrid returns a grid definition covering roi with the given
// physical step size and the standard containment margin.
func NewGrid(roi mesh.ROI, step float64) *GridDef {
	return &GridDef{ROI: roi, Step: step, Margin: ContainmentMargin}
}

// Physical returns the physical coordinates (µm) of p.
func (g *GridDef) Physical(p mesh.IndexPoint) (x, y float64) {
	return float64(p.IX) * g.Step, float64(p.IY) * g.Step
}

// CandidateSet is the set of grid points covered by a region, listed
// in row-major order.
type CandidateSet []mesh.IndexPoint

// Len returns the number of candidates.
func (c CandidateSet) Len() int { return len(c) }

// Contains reports whether p is a candidate.
func (c CandidateSet) Contains(p mesh.IndexPoint) bool {
	for _, q := range c {
		if q == p {
			return true
		}
	}
	return false
}

// edge is a polygon side stored in the edge index.
type edge struct {
	a, b geom.Point
}

func (e *edge) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: math.Min(e.a.X, e.b.X), Y: math.Min(e.a.Y, e.b.Y)},
		Max: geom.Point{X: math.Max(e.a.X, e.b.X), Y: math.Max(e.a.Y, e.b.Y)},
	}
}

func (e *edge) Similar(geom.Geom, float64) bool               { panic("not implemented") }
func (e *edge) Transform(proj.Transformer) (geom.Geom, error) { panic("not implemented") }
func (e *edge) Len() int                                      { return 2 }
func (e *edge) Points() func() geom.Point {
	i := 0
	return func() geom.Point {
		i++
		if i == 1 {
			return e.a
		}
		return e.b
	}
}

// within reports whether p is strictly closer than margin to the edge.
// Comparisons are done on squared distances so that integer inputs
// are decided exactly.
func (e *edge) within(p geom.Point, margin float64) bool {
	dx, dy := e.b.X-e.a.X, e.b.Y-e.a.Y
	px, py := p.X-e.a.X, p.Y-e.a.Y
	len2 := dx*dx + dy*dy
	m2 := margin * margin
	if len2 == 0 {
		return px*px+py*py < m2
	}
	t := px*dx + py*dy
	switch {
	case t <= 0:
		return px*px+py*py < m2
	case t >= len2:
		qx, qy := p.X-e.b.X, p.Y-e.b.Y
		return qx*qx+qy*qy < m2
	}
	cross := px*dy - py*dx
	return cross*cross < m2*len2
}

// Rasterize returns every grid point within the bounding box of r that
// lies inside r or within g.Margin of its boundary. Regions with fewer
// than 3 vertices or a zero-area bounding box yield an empty set.
func (g *GridDef) Rasterize(r region.Region) CandidateSet {
	if r.Degenerate() {
		return CandidateSet{}
	}
	poly := r.Polygon()
	index := rtree.NewTree(25, 50)
	ring := poly[0]
	for i := 0; i < len(ring)-1; i++ {
		index.Insert(&edge{a: ring[i], b: ring[i+1]})
	}

	b := r.Bounds()
	last := float64(g.ROI.Size - 1)
	if b.Max.X < 0 || b.Max.Y < 0 || b.Min.X > last || b.Min.Y > last {
		return CandidateSet{}
	}
	minx, maxx := g.ROI.Clamp(int(math.Floor(b.Min.X))), g.ROI.Clamp(int(math.Floor(b.Max.X)))
	miny, maxy := g.ROI.Clamp(int(math.Floor(b.Min.Y))), g.ROI.Clamp(int(math.Floor(b.Max.Y)))

	nrows := maxy - miny + 1
	rows := make([][]mesh.IndexPoint, nrows)
	nprocs := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for procnum := 0; procnum < nprocs; procnum++ {
		go func(procnum int) {
			defer wg.Done()
			for i := procnum; i < nrows; i += nprocs {
				iy := miny + i
				for ix := minx; ix <= maxx; ix++ {
					if g.covered(geom.Point{X: float64(ix), Y: float64(iy)}, poly, index) {
						rows[i] = append(rows[i], mesh.IndexPoint{IX: ix, IY: iy})
					}
				}
			}
		}(procnum)
	}
	wg.Wait()

	o := make(CandidateSet, 0, nrows*(maxx-minx+1))
	for _, row := range rows {
		o = append(o, row...)
	}
	return o
}

func (g *GridDef) covered(p geom.Point, poly geom.Polygon, index *rtree.Rtree) bool {
	if p.Within(poly) != geom.Outside {
		return true
	}
	search := &geom.Bounds{
		Min: geom.Point{X: p.X - g.Margin, Y: p.Y - g.Margin},
		Max: geom.Point{X: p.X + g.Margin, Y: p.Y + g.Margin},
	}
	for _, eI := range index.SearchIntersect(search) {
		if eI.(*edge).within(p, g.Margin) {
			return true
		}
	}
	return false
}
