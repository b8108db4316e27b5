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

package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"

	"github.com/spatialmodel/galvoscan/plan"
	"github.com/spatialmodel/galvoscan/region"
)

// removeShp deletes any existing shapefile components of filename.
func removeShp(filename string) {
	base := strings.TrimSuffix(filename, ".shp")
	for _, ext := range []string{".shp", ".prj", ".dbf", ".shx"} {
		os.Remove(base + ext)
	}
}

// WritePathShp writes the scan path to a point shapefile with the
// fields order, ix and iy. Coordinates are in index units.
func WritePathShp(filename string, path plan.ScanPath) error {
	if path.Len() == 0 {
		return ErrEmptyPath
	}
	removeShp(filename)
	fields := []goshp.Field{
		goshp.NumberField("order", 10),
		goshp.NumberField("ix", 10),
		goshp.NumberField("iy", 10),
	}
	e, err := shp.NewEncoderFromFields(filename, goshp.POINT, fields...)
	if err != nil {
		return fmt.Errorf("export: creating shapefile to write scan path: %v", err)
	}
	for i, p := range path {
		pt := geom.Point{X: float64(p.IX), Y: float64(p.IY)}
		if err := e.EncodeFields(pt, i, p.IX, p.IY); err != nil {
			e.Close()
			return err
		}
	}
	e.Close()
	return nil
}

// WriteRegionShp writes r to a polygon shapefile with a single record.
func WriteRegionShp(filename string, r region.Region) error {
	if err := r.Valid(); err != nil {
		return err
	}
	removeShp(filename)
	e, err := shp.NewEncoderFromFields(filename, goshp.POLYGON, goshp.NumberField("vertices", 10))
	if err != nil {
		return fmt.Errorf("export: creating shapefile to write region: %v", err)
	}
	if err := e.EncodeFields(r.Polygon(), r.Len()); err != nil {
		e.Close()
		return err
	}
	e.Close()
	return nil
}
