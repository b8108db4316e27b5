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

// Package export writes scan paths, regions and accumulators to files.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spatialmodel/galvoscan/plan"
	"github.com/spatialmodel/galvoscan/raster"
)

// ErrEmptyPath is returned when there is nothing to export.
var ErrEmptyPath = errors.New("export: no grid to export")

// CSVHeader is the column header of exported scan paths.
var CSVHeader = []string{"X_index", "Y_index", "X_um", "Y_um"}

// roundUM rounds a physical coordinate to 3 decimal places.
func roundUM(v float64) float64 { return math.Round(v*1000) / 1000 }

// formatUM rounds a physical coordinate and formats it with at least
// one fractional digit.
func formatUM(v float64) string {
	s := strconv.FormatFloat(roundUM(v), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// WriteCSV writes path as CSV with one row per point.
func WriteCSV(w io.Writer, path plan.ScanPath, g *raster.GridDef) error {
	if path.Len() == 0 {
		return ErrEmptyPath
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, p := range path {
		x, y := g.Physical(p)
		rec := []string{strconv.Itoa(p.IX), strconv.Itoa(p.IY), formatUM(x), formatUM(y)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes path to the named CSV file.
func SaveCSV(filename string, path plan.ScanPath, g *raster.GridDef) error {
	if path.Len() == 0 {
		return ErrEmptyPath
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("export: creating CSV file: %v", err)
	}
	if err := WriteCSV(f, path, g); err != nil {
		f.Close()
		return fmt.Errorf("export: writing %s: %v", filename, err)
	}
	return f.Close()
}
