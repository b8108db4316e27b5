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
	"image"
	"image/color"
	"io"
	"math"
	"os"

	"golang.org/x/image/tiff"

	"github.com/spatialmodel/galvoscan/mesh"
)

// Gray16 converts the accumulator to a 16-bit grayscale image with
// pixel (ix, iy) holding the rounded sample value. Unset cells are 0
// and values are clamped to [0, 65535].
func Gray16(acc *mesh.Accumulator) *image.Gray16 {
	data := acc.Snapshot()
	n := len(data)
	img := image.NewGray16(image.Rect(0, 0, n, n))
	for iy, row := range data {
		for ix, v := range row {
			if math.IsNaN(v) {
				continue
			}
			v = math.Round(math.Max(0, math.Min(v, math.MaxUint16)))
			img.SetGray16(ix, iy, color.Gray16{Y: uint16(v)})
		}
	}
	return img
}

// WriteTIFF writes the accumulator to w as a 16-bit grayscale TIFF.
func WriteTIFF(w io.Writer, acc *mesh.Accumulator) error {
	return tiff.Encode(w, Gray16(acc), &tiff.Options{Compression: tiff.Deflate})
}

// SaveTIFF writes the accumulator to the named TIFF file.
func SaveTIFF(filename string, acc *mesh.Accumulator) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("export: creating TIFF file: %v", err)
	}
	if err := WriteTIFF(f, acc); err != nil {
		f.Close()
		return fmt.Errorf("export: writing %s: %v", filename, err)
	}
	return f.Close()
}
