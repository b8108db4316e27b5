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

package plot

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spatialmodel/galvoscan/jump"
	"github.com/spatialmodel/galvoscan/mesh"
	"github.com/spatialmodel/galvoscan/plan"
	"github.com/spatialmodel/galvoscan/region"
)

func TestFromRegion(t *testing.T) {
	r := region.Rectangle(mesh.IndexPoint{IX: 1, IY: 2}, mesh.IndexPoint{IX: 3, IY: 4})
	want := XYs{{1, 2}, {3, 2}, {3, 4}, {1, 4}, {1, 2}}
	if got := FromRegion(r); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if r.Len() != 4 {
		t.Errorf("FromRegion modified the region: %v", r)
	}
	if got := FromRegion(region.New()); got != nil {
		t.Errorf("empty region: got %v", got)
	}
}

func TestGrid(t *testing.T) {
	acc := mesh.NewAccumulator(mesh.NewROI(4))
	acc.Set(mesh.IndexPoint{IX: 2, IY: 1}, 7)
	g := grid{data: acc.Snapshot()}
	if c, r := g.Dims(); c != 4 || r != 4 {
		t.Errorf("dims = %d, %d", c, r)
	}
	if z := g.Z(2, 1); z != 7 {
		t.Errorf("Z(2, 1) = %v", z)
	}
	if z := g.Z(1, 2); z != 0 {
		t.Errorf("unset cell = %v", z)
	}
}

func TestHeatmap(t *testing.T) {
	for _, test := range []struct {
		name string
		set  bool
	}{
		{name: "empty", set: false},
		{name: "filled", set: true},
	} {
		t.Run(test.name, func(t *testing.T) {
			acc := mesh.NewAccumulator(mesh.NewROI(10))
			if test.set {
				for i := 0; i < 10; i++ {
					acc.Set(mesh.IndexPoint{IX: i, IY: i}, float64(10+i))
				}
			}
			p, err := Heatmap(acc)
			if err != nil {
				t.Fatal(err)
			}
			var buf bytes.Buffer
			if err := Write(&buf, p, "png"); err != nil {
				t.Fatal(err)
			}
			if _, err := png.Decode(&buf); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestPathPlot(t *testing.T) {
	path := plan.ScanPath{{IX: 2, IY: 2}, {IX: 3, IY: 2}, {IX: 8, IY: 8}}
	jumps := jump.Analyze(path, jump.DefaultParams())
	r := region.Rectangle(mesh.IndexPoint{IX: 2, IY: 2}, mesh.IndexPoint{IX: 8, IY: 8})
	p, err := PathPlot(mesh.NewROI(20), r, path, jumps)
	if err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(t.TempDir(), "path.png")
	if err := Save(p, file); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(file)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() == 0 {
		t.Error("empty plot file")
	}
}
