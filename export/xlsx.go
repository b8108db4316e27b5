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
	"io"

	"github.com/tealeg/xlsx"

	"github.com/spatialmodel/galvoscan/jump"
	"github.com/spatialmodel/galvoscan/plan"
	"github.com/spatialmodel/galvoscan/raster"
)

// Sheet names used in XLSX exports.
const (
	PathSheet  = "scan_path"
	JumpsSheet = "jumps"
)

var jumpHeader = []string{"From_X", "From_Y", "To_X", "To_Y", "Distance_index", "Distance_um"}

func addHeader(sheet *xlsx.Sheet, names []string) {
	row := sheet.AddRow()
	for _, n := range names {
		row.AddCell().SetString(n)
	}
}

// XLSX returns a workbook with the scan path on one sheet and its jumps
// on another.
func XLSX(path plan.ScanPath, jumps []jump.Record, g *raster.GridDef) (*xlsx.File, error) {
	if path.Len() == 0 {
		return nil, ErrEmptyPath
	}
	f := xlsx.NewFile()
	ps, err := f.AddSheet(PathSheet)
	if err != nil {
		return nil, fmt.Errorf("export: adding sheet: %v", err)
	}
	addHeader(ps, CSVHeader)
	for _, p := range path {
		x, y := g.Physical(p)
		row := ps.AddRow()
		row.AddCell().SetInt(p.IX)
		row.AddCell().SetInt(p.IY)
		row.AddCell().SetFloat(roundUM(x))
		row.AddCell().SetFloat(roundUM(y))
	}

	js, err := f.AddSheet(JumpsSheet)
	if err != nil {
		return nil, fmt.Errorf("export: adding sheet: %v", err)
	}
	addHeader(js, jumpHeader)
	for _, j := range jumps {
		row := js.AddRow()
		row.AddCell().SetInt(j.From.IX)
		row.AddCell().SetInt(j.From.IY)
		row.AddCell().SetInt(j.To.IX)
		row.AddCell().SetInt(j.To.IY)
		row.AddCell().SetFloat(j.DistanceIndex)
		row.AddCell().SetFloat(roundUM(j.DistancePhysical))
	}
	return f, nil
}

// WriteXLSX writes the workbook created by XLSX to w.
func WriteXLSX(w io.Writer, path plan.ScanPath, jumps []jump.Record, g *raster.GridDef) error {
	f, err := XLSX(path, jumps, g)
	if err != nil {
		return err
	}
	return f.Write(w)
}

// SaveXLSX writes the workbook created by XLSX to the named file.
func SaveXLSX(filename string, path plan.ScanPath, jumps []jump.Record, g *raster.GridDef) error {
	f, err := XLSX(path, jumps, g)
	if err != nil {
		return err
	}
	return f.Save(filename)
}
