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

/*Package mesh defines the square index grid that bounds a scan
and the accumulator that scan results are written into.*/
package mesh

import "fmt"

// DefaultROISize is the default extent of the region of interest, in
// index units along each axis.
const DefaultROISize = 200

// IndexPoint is a discrete, addressable instrument position.
type IndexPoint struct {
	IX, IY int
}

func (p IndexPoint) String() string { return fmt.Sprintf("(%d, %d)", p.IX, p.IY) }

// Dist2 returns the squared Euclidean distance between p and q in
// index units.
func (p IndexPoint) Dist2(q IndexPoint) int {
	dx, dy := q.IX-p.IX, q.IY-p.IY
	return dx*dx + dy*dy
}

// AxisAdjacent reports whether q is exactly one step away from p
// along a single axis.
func (p IndexPoint) AxisAdjacent(q IndexPoint) bool {
	dx, dy := q.IX-p.IX, q.IY-p.IY
	return (dy == 0 && (dx == 1 || dx == -1)) || (dx == 0 && (dy == 1 || dy == -1))
}

// ROI is the square region of interest within which scanning is
// permitted. Valid points satisfy 0 <= IX, IY < Size.
type ROI struct {
	Size int
}

// NewROI returns a region of interest with the given extent.
func NewROI(size int) ROI { return ROI{Size: size} }

// Contains reports whether p lies within the region of interest.
func (r ROI) Contains(p IndexPoint) bool {
	return p.IX >= 0 && p.IY >= 0 && p.IX < r.Size && p.IY < r.Size
}

// Clamp constrains v to the inclusive range [0, Size-1].
func (r ROI) Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > r.Size-1 {
		return r.Size - 1
	}
	return v
}

// Rank returns the row-major position of p within the region of
// interest.
func (r ROI) Rank(p IndexPoint) int {
	return p.IY*r.Size + p.IX
}
