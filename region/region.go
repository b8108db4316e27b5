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

// Package region holds the user-drawn polygons that bound a scan.
package region

import (
	"errors"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/geom"

	"github.com/spatialmodel/galvoscan/mesh"
)

// ErrTooFewVertices is returned when a polygon has fewer than 3 vertices.
var ErrTooFewVertices = errors.New("region: a polygon needs at least 3 vertices")

// Region is an immutable simple polygon in index coordinates.
// Self-intersection is not checked.
type Region struct {
	vertices []mesh.IndexPoint
}

// New returns a region with the given vertices in order. The vertex
// slice is copied.
func New(vertices ...mesh.IndexPoint) Region {
	v := make([]mesh.IndexPoint, len(vertices))
	copy(v, vertices)
	return Region{vertices: v}
}

// Rectangle returns the axis-aligned rectangle spanned by corners a and
// b. The vertices are always a, (b.IX, a.IY), b, (a.IX, b.IY).
func Rectangle(a, b mesh.IndexPoint) Region {
	return New(
		a,
		mesh.IndexPoint{IX: b.IX, IY: a.IY},
		b,
		mesh.IndexPoint{IX: a.IX, IY: b.IY},
	)
}

// Len returns the number of vertices.
func (r Region) Len() int { return len(r.vertices) }

// Vertex returns the vertex at index i.
func (r Region) Vertex(i int) mesh.IndexPoint { return r.vertices[i] }

// Vertices returns a copy of the vertex list.
func (r Region) Vertices() []mesh.IndexPoint {
	v := make([]mesh.IndexPoint, len(r.vertices))
	copy(v, r.vertices)
	return v
}

// Valid returns ErrTooFewVertices if the receiver cannot describe an area.
func (r Region) Valid() error {
	if len(r.vertices) < 3 {
		return ErrTooFewVertices
	}
	return nil
}

// Polygon returns the region as a closed geom.Polygon.
func (r Region) Polygon() geom.Polygon {
	if len(r.vertices) == 0 {
		return geom.Polygon{}
	}
	path := make(geom.Path, 0, len(r.vertices)+1)
	for _, v := range r.vertices {
		path = append(path, geom.Point{X: float64(v.IX), Y: float64(v.IY)})
	}
	path = append(path, path[0])
	return geom.Polygon{path}
}

// Bounds returns the bounding box of the vertices.
func (r Region) Bounds() *geom.Bounds {
	b := geom.NewBounds()
	for _, v := range r.vertices {
		b.Extend(geom.Point{X: float64(v.IX), Y: float64(v.IY)}.Bounds())
	}
	return b
}

// Degenerate reports whether the bounding box of the receiver has zero
// area or the receiver has fewer than 3 vertices.
func (r Region) Degenerate() bool {
	if r.Valid() != nil {
		return true
	}
	b := r.Bounds()
	return b.Max.X-b.Min.X == 0 || b.Max.Y-b.Min.Y == 0
}

func (r Region) String() string { return fmt.Sprint(r.vertices) }

type tomlVertex struct {
	X int `toml:"x"`
	Y int `toml:"y"`
}

type tomlRegion struct {
	Vertex []tomlVertex `toml:"vertex"`
}

// ReadTOML reads a region stored as an array of tables:
//
//	[[vertex]]
//	x = 2
//	y = 2
func ReadTOML(r io.Reader) (Region, error) {
	var tr tomlRegion
	if _, err := toml.DecodeReader(r, &tr); err != nil {
		return Region{}, fmt.Errorf("region: decoding TOML: %v", err)
	}
	v := make([]mesh.IndexPoint, len(tr.Vertex))
	for i, tv := range tr.Vertex {
		v[i] = mesh.IndexPoint{IX: tv.X, IY: tv.Y}
	}
	return Region{vertices: v}, nil
}

// WriteTOML writes the receiver in the format read by ReadTOML.
func (r Region) WriteTOML(w io.Writer) error {
	tr := tomlRegion{Vertex: make([]tomlVertex, len(r.vertices))}
	for i, v := range r.vertices {
		tr.Vertex[i] = tomlVertex{X: v.IX, Y: v.IY}
	}
	return toml.NewEncoder(w).Encode(tr)
}
