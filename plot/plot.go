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

// Package plot draws scan paths and accumulated intensity maps.
package plot

import (
	"fmt"
	"image/color"
	"io"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/spatialmodel/galvoscan/jump"
	"github.com/spatialmodel/galvoscan/mesh"
	"github.com/spatialmodel/galvoscan/plan"
	"github.com/spatialmodel/galvoscan/region"
)

// Size is the width and height of saved figures.
const Size = 6 * vg.Inch

// XYs implements the gonum.org/v1/plot/plotter.XYer interface.
type XYs []XY

// XY is an x and y value.
type XY struct{ X, Y float64 }

// Len returns the number of X,Y pairs.
func (xys XYs) Len() int {
	return len(xys)
}

// XY return the x and y values at index i, where i < Len()
func (xys XYs) XY(i int) (float64, float64) {
	return xys[i].X, xys[i].Y
}

// FromPath returns the points of path in index units.
func FromPath(path plan.ScanPath) XYs {
	xys := make(XYs, len(path))
	for i, p := range path {
		xys[i] = XY{X: float64(p.IX), Y: float64(p.IY)}
	}
	return xys
}

// FromRegion returns the outline of r, closed back to its first vertex.
func FromRegion(r region.Region) XYs {
	if r.Len() == 0 {
		return nil
	}
	v := r.Vertices()
	xys := FromPath(plan.ScanPath(append(v, v[0])))
	return xys
}

// grid adapts an accumulator snapshot to plotter.GridXYZ.
// Unset cells are drawn as zero.
type grid struct {
	data [][]float64
}

func (g grid) Dims() (c, r int) {
	if len(g.data) == 0 {
		return 0, 0
	}
	return len(g.data[0]), len(g.data)
}

func (g grid) Z(c, r int) float64 {
	v := g.data[r][c]
	if v != v {
		return 0
	}
	return v
}

func (g grid) X(c int) float64 { return float64(c) }
func (g grid) Y(r int) float64 { return float64(r) }

// Heatmap returns a plot of the accumulated intensities in acc.
func Heatmap(acc *mesh.Accumulator) (*plot.Plot, error) {
	p, err := plot.New()
	if err != nil {
		return nil, err
	}
	p.Title.Text = "Simulated scan"
	p.X.Label.Text = "X index"
	p.Y.Label.Text = "Y index"

	h := plotter.NewHeatMap(grid{data: acc.Snapshot()}, palette.Heat(64, 1))
	h.Min = 0
	h.Max = acc.Max()
	if !(h.Max > 0) {
		h.Max = 1
	}
	p.Add(h)
	return p, nil
}

// PathPlot returns a plot of r, the points of path and the jumps in path
// that exceed the threshold.
func PathPlot(roi mesh.ROI, r region.Region, path plan.ScanPath, jumps []jump.Record) (*plot.Plot, error) {
	p, err := plot.New()
	if err != nil {
		return nil, err
	}
	p.Title.Text = fmt.Sprintf("Scan path (%d points, %d jumps)", path.Len(), len(jumps))
	p.X.Label.Text = "X index"
	p.Y.Label.Text = "Y index"
	max := float64(roi.Size - 1)
	p.X.Min, p.X.Max = 0, max
	p.Y.Min, p.Y.Max = 0, max

	if r.Len() > 1 {
		outline, err := plotter.NewLine(FromRegion(r))
		if err != nil {
			return nil, err
		}
		outline.Color = color.RGBA{B: 255, A: 255}
		p.Add(outline)
	}
	if path.Len() > 0 {
		s, err := plotter.NewScatter(FromPath(path))
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Radius = vg.Points(1)
		s.GlyphStyle.Color = color.Black
		p.Add(s)
	}
	for _, j := range jumps {
		l, err := plotter.NewLine(FromPath(plan.ScanPath{j.From, j.To}))
		if err != nil {
			return nil, err
		}
		l.Color = color.RGBA{R: 255, A: 255}
		p.Add(l)
	}
	return p, nil
}

// Save writes p to the named file; the format follows the file extension.
func Save(p *plot.Plot, filename string) error {
	return p.Save(Size, Size, filename)
}

// Write writes p to w in the given format, such as "png" or "svg".
func Write(w io.Writer, p *plot.Plot, format string) error {
	wt, err := p.WriterTo(Size, Size, strings.ToLower(strings.TrimPrefix(format, ".")))
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
