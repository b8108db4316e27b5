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

package region

import (
	"errors"
	"fmt"

	"github.com/spatialmodel/galvoscan/mesh"
)

var (
	// ErrOutsideROI is returned when a vertex lies outside the region
	// of interest.
	ErrOutsideROI = errors.New("region: vertex is outside the region of interest")

	// ErrClosed is returned when a vertex is added to a closed region.
	ErrClosed = errors.New("region: polygon is already closed")
)

// Editor builds a Region from a sequence of clicks, either as a
// freehand polygon or, in rectangle mode, from two opposite corners.
// An Editor is not safe for concurrent use.
type Editor struct {
	roi       mesh.ROI
	vertices  []mesh.IndexPoint
	closed    bool
	rectMode  bool
	rectStart *mesh.IndexPoint
}

// NewEditor returns an editor that accepts vertices within roi.
func NewEditor(roi mesh.ROI) *Editor {
	return &Editor{roi: roi}
}

// RectangleMode reports whether the editor is in rectangle mode.
func (e *Editor) RectangleMode() bool { return e.rectMode }

// SetRectangleMode switches between freehand and rectangle entry.
// Any pending rectangle corner is discarded; switching rectangle mode
// on also discards the current polygon.
func (e *Editor) SetRectangleMode(on bool) {
	e.rectMode = on
	e.rectStart = nil
	if on {
		e.vertices = e.vertices[:0]
		e.closed = false
	}
}

// AddVertex handles a click at p.
func (e *Editor) AddVertex(p mesh.IndexPoint) error {
	if !e.roi.Contains(p) {
		return fmt.Errorf("%w: %v", ErrOutsideROI, p)
	}
	if e.closed {
		return ErrClosed
	}
	if !e.rectMode {
		e.vertices = append(e.vertices, p)
		return nil
	}
	if e.rectStart == nil {
		start := p
		e.rectStart = &start
		return nil
	}
	e.vertices = Rectangle(*e.rectStart, p).Vertices()
	e.closed = true
	e.rectStart = nil
	return nil
}

// SetRegion replaces the vertices with those of r and closes the
// region. Every vertex must lie within the region of interest.
func (e *Editor) SetRegion(r Region) error {
	if err := r.Valid(); err != nil {
		return err
	}
	for _, v := range r.vertices {
		if !e.roi.Contains(v) {
			return fmt.Errorf("%w: %v", ErrOutsideROI, v)
		}
	}
	e.vertices = r.Vertices()
	e.closed = true
	e.rectStart = nil
	return nil
}

// Close finishes a freehand polygon. It has no effect in rectangle mode,
// where the second corner closes the region.
func (e *Editor) Close() error {
	if e.rectMode {
		return nil
	}
	if len(e.vertices) <= 2 {
		return ErrTooFewVertices
	}
	e.closed = true
	return nil
}

// Closed reports whether the region is complete.
func (e *Editor) Closed() bool { return e.closed }

// Vertices returns a copy of the vertices entered so far.
func (e *Editor) Vertices() []mesh.IndexPoint {
	v := make([]mesh.IndexPoint, len(e.vertices))
	copy(v, e.vertices)
	return v
}

// Region returns the finished region. ok is false until the polygon
// has been closed.
func (e *Editor) Region() (r Region, ok bool) {
	if !e.closed {
		return Region{}, false
	}
	return New(e.vertices...), true
}

// Reset discards all vertices and any pending rectangle corner.
// Rectangle mode is left unchanged.
func (e *Editor) Reset() {
	e.vertices = e.vertices[:0]
	e.closed = false
	e.rectStart = nil
}
