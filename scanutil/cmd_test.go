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

package scanutil

import (
	"bytes"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kr/pretty"
	"golang.org/x/image/tiff"

	"github.com/spatialmodel/galvoscan/mesh"
	"github.com/spatialmodel/galvoscan/region"
	"github.com/spatialmodel/galvoscan/scan"
	"github.com/spatialmodel/galvoscan/sim"
)

func run(t *testing.T, args ...string) (string, error) {
	cfg := InitializeConfig()
	cfg.Logger().Out = io.Discard
	var buf bytes.Buffer
	cfg.Root.SetOutput(&buf)
	cfg.Root.SetArgs(args)
	err := cfg.Root.Execute()
	return buf.String(), err
}

func TestParsePoints(t *testing.T) {
	tests := []struct {
		in   string
		want []mesh.IndexPoint
		err  bool
	}{
		{in: "0,0 10,0  0,10", want: []mesh.IndexPoint{{IX: 0, IY: 0}, {IX: 10, IY: 0}, {IX: 0, IY: 10}}},
		{in: " 2,3 ", want: []mesh.IndexPoint{{IX: 2, IY: 3}}},
		{in: "", want: []mesh.IndexPoint{}},
		{in: "1,2,3", err: true},
		{in: "a,2", err: true},
		{in: "1,b", err: true},
	}
	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			got, err := ParsePoints(test.in)
			if (err != nil) != test.err {
				t.Fatalf("error = %v, want error %v", err, test.err)
			}
			if !test.err && !reflect.DeepEqual(got, test.want) {
				t.Errorf("got %v, want %v", got, test.want)
			}
		})
	}
}

func TestRegion(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]string
		want region.Region
		err  bool
	}{
		{
			name: "vertices",
			set:  map[string]string{"vertices": "0,0 10,0 0,10"},
			want: region.New(mesh.IndexPoint{IX: 0, IY: 0}, mesh.IndexPoint{IX: 10, IY: 0}, mesh.IndexPoint{IX: 0, IY: 10}),
		},
		{
			name: "rect",
			set:  map[string]string{"rect": "2,2 5,6"},
			want: region.Rectangle(mesh.IndexPoint{IX: 2, IY: 2}, mesh.IndexPoint{IX: 5, IY: 6}),
		},
		{
			name: "file",
			set:  map[string]string{"region": "../region/testdata/triangle.toml"},
			want: region.New(mesh.IndexPoint{IX: 0, IY: 0}, mesh.IndexPoint{IX: 10, IY: 0}, mesh.IndexPoint{IX: 0, IY: 10}),
		},
		{name: "none", set: map[string]string{}, err: true},
		{name: "two", set: map[string]string{"rect": "2,2 5,6", "vertices": "0,0 1,0 0,1"}, err: true},
		{name: "three corners", set: map[string]string{"rect": "2,2 5,6 7,7"}, err: true},
		{name: "missing file", set: map[string]string{"region": "testdata/nothing.toml"}, err: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := InitializeConfig()
			for k, v := range test.set {
				cfg.Set(k, v)
			}
			got, err := cfg.Region()
			if (err != nil) != test.err {
				t.Fatalf("error = %v, want error %v", err, test.err)
			}
			if !test.err && !reflect.DeepEqual(got.Vertices(), test.want.Vertices()) {
				t.Errorf("got %v, want %v", got, test.want)
			}
		})
	}
}

func TestSessionConfig(t *testing.T) {
	cfg := InitializeConfig()
	c, err := cfg.SessionConfig()
	if err != nil {
		t.Fatal(err)
	}
	if want := scan.DefaultConfig(); !reflect.DeepEqual(c, want) {
		t.Errorf("defaults differ: %s", pretty.Diff(c, want))
	}

	cfg = InitializeConfig()
	cfg.SetConfigFile("testdata/config.toml")
	if err := cfg.ReadInConfig(); err != nil {
		t.Fatal(err)
	}
	c, err = cfg.SessionConfig()
	if err != nil {
		t.Fatal(err)
	}
	want := scan.DefaultConfig()
	want.ROISize = 20
	want.Step = 0.5
	want.Threshold = "1.0"
	want.Delays = sim.DelayPolicy{}
	want.Seed = 3
	if !reflect.DeepEqual(c, want) {
		t.Errorf("config file: %s", pretty.Diff(c, want))
	}

	cfg = InitializeConfig()
	cfg.Set("intensity_min", 100)
	if _, err := cfg.SessionConfig(); err == nil {
		t.Error("expected an error for an empty intensity range")
	}
}

func TestEnv(t *testing.T) {
	t.Setenv("GALVOSCAN_ROI_SIZE", "50")
	t.Setenv("GALVOSCAN_SHORT_DELAY", "3ms")
	cfg := InitializeConfig()
	c, err := cfg.SessionConfig()
	if err != nil {
		t.Fatal(err)
	}
	if c.ROISize != 50 || c.Delays.Short != 3*time.Millisecond {
		t.Errorf("got ROI size %d and short delay %v", c.ROISize, c.Delays.Short)
	}
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	csvFile := filepath.Join(dir, "path.csv")
	out, err := run(t, "generate", "--config=testdata/config.toml",
		"--rect", "2,2 4,4", "--csv", csvFile,
		"--xlsx", filepath.Join(dir, "path.xlsx"),
		"--shp", filepath.Join(dir, "path.shp"),
		"--plot", filepath.Join(dir, "path.png"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "Generated 9 scan points.\nBig jumps over 1 µm: 0\n") {
		t.Errorf("unexpected output: %q", out)
	}
	b, err := os.ReadFile(csvFile)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 10 || lines[1] != "2,2,1.0,1.0" {
		t.Errorf("csv: %q", b)
	}
	for _, f := range []string{"path.xlsx", "path.shp", "path_region.shp", "path.png"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Error(err)
		}
	}
}

func TestCommandFlags(t *testing.T) {
	cfg := InitializeConfig()
	regionFlags := []string{"vertices", "rect", "region", "csv", "xlsx", "shp", "plot"}
	tests := []struct {
		cmdName string
		flags   []string
	}{
		{cmdName: "generate", flags: regionFlags},
		{cmdName: "simulate", flags: append([]string{"heatmap", "tiff", "open"}, regionFlags...)},
		{cmdName: "serve", flags: []string{"addr"}},
	}
	for _, test := range tests {
		t.Run(test.cmdName, func(t *testing.T) {
			cmd, _, err := cfg.Root.Find([]string{test.cmdName})
			if err != nil {
				t.Fatal(err)
			}
			for _, name := range test.flags {
				if cmd.Flags().Lookup(name) == nil {
					t.Errorf("missing flag --%s", name)
				}
			}
		})
	}
}

func TestGenerateNoRegion(t *testing.T) {
	if _, err := run(t, "generate"); err != errRegionSource {
		t.Errorf("got %v, want %v", err, errRegionSource)
	}
}

func TestSimulate(t *testing.T) {
	dir := t.TempDir()
	heatmap := filepath.Join(dir, "heatmap.png")
	tiffFile := filepath.Join(dir, "acc.tiff")
	out, err := run(t, "simulate", "--config=testdata/config.toml",
		"--vertices", "2,2 8,2 2,8", "--heatmap", heatmap, "--tiff", tiffFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Simulated ") {
		t.Errorf("unexpected output: %q", out)
	}
	f, err := os.Open(heatmap)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Error(err)
	}
	tf, err := os.Open(tiffFile)
	if err != nil {
		t.Fatal(err)
	}
	defer tf.Close()
	img, err := tiff.Decode(tf)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 20 {
		t.Errorf("TIFF is %v", b)
	}
	if r, _, _, _ := img.At(2, 2).RGBA(); r < 10 || r >= 100 {
		t.Errorf("pixel (2, 2) = %d", r)
	}
}
