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
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cast"

	"github.com/spatialmodel/galvoscan/mesh"
	"github.com/spatialmodel/galvoscan/region"
)

// ParsePoints parses whitespace separated "x,y" pairs.
func ParsePoints(s string) ([]mesh.IndexPoint, error) {
	fields := strings.Fields(s)
	pts := make([]mesh.IndexPoint, len(fields))
	for i, f := range fields {
		xy := strings.Split(f, ",")
		if len(xy) != 2 {
			return nil, fmt.Errorf("scanutil: invalid point %q; expected x,y", f)
		}
		x, err := cast.ToIntE(strings.TrimSpace(xy[0]))
		if err != nil {
			return nil, fmt.Errorf("scanutil: invalid x in point %q: %v", f, err)
		}
		y, err := cast.ToIntE(strings.TrimSpace(xy[1]))
		if err != nil {
			return nil, fmt.Errorf("scanutil: invalid y in point %q: %v", f, err)
		}
		pts[i] = mesh.IndexPoint{IX: x, IY: y}
	}
	return pts, nil
}

var errRegionSource = errors.New("scanutil: exactly one of --vertices, --rect and --region must be given")

// Region returns the region given by the vertices, rect or region
// configuration values. Exactly one of them must be set.
func (cfg *Cfg) Region() (region.Region, error) {
	vertices := cfg.GetString("vertices")
	rect := cfg.GetString("rect")
	file := cfg.GetString("region")
	var n int
	for _, s := range []string{vertices, rect, file} {
		if s != "" {
			n++
		}
	}
	if n != 1 {
		return region.Region{}, errRegionSource
	}

	switch {
	case vertices != "":
		pts, err := ParsePoints(vertices)
		if err != nil {
			return region.Region{}, err
		}
		return region.New(pts...), nil
	case rect != "":
		pts, err := ParsePoints(rect)
		if err != nil {
			return region.Region{}, err
		}
		if len(pts) != 2 {
			return region.Region{}, fmt.Errorf("scanutil: --rect needs two corners, got %d", len(pts))
		}
		return region.Rectangle(pts[0], pts[1]), nil
	default:
		f, err := os.Open(os.ExpandEnv(file))
		if err != nil {
			return region.Region{}, fmt.Errorf("scanutil: opening region file: %v", err)
		}
		defer f.Close()
		return region.ReadTOML(f)
	}
}
