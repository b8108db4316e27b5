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

package mesh

import (
	"fmt"
	"math"
	"sync"

	"github.com/ctessum/sparse"
)

// Accumulator is a dense ROI-sized buffer of intensity samples,
// indexed by [IY, IX]. Cells that have not been written hold NaN.
//
// An Accumulator has a single writer (the active scan) and any number
// of readers. Readers may observe a partially filled buffer.
type Accumulator struct {
	mu     sync.RWMutex
	roi    ROI
	data   *sparse.DenseArray
	filled int
}

// NewAccumulator returns an empty accumulator covering roi.
func NewAccumulator(roi ROI) *Accumulator {
	a := &Accumulator{
		roi:  roi,
		data: sparse.ZerosDense(roi.Size, roi.Size),
	}
	a.clear()
	return a
}

// ROI returns the region of interest covered by the receiver.
func (a *Accumulator) ROI() ROI { return a.roi }

func (a *Accumulator) clear() {
	for i := range a.data.Elements {
		a.data.Elements[i] = math.NaN()
	}
	a.filled = 0
}

// Reset marks every cell as unset.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	a.clear()
	a.mu.Unlock()
}

// Set writes value into the cell at p.
func (a *Accumulator) Set(p IndexPoint, value float64) error {
	if !a.roi.Contains(p) {
		return fmt.Errorf("mesh: point %v is outside the %dx%d region of interest", p, a.roi.Size, a.roi.Size)
	}
	a.mu.Lock()
	if math.IsNaN(a.data.Get(p.IY, p.IX)) && !math.IsNaN(value) {
		a.filled++
	}
	a.data.Set(value, p.IY, p.IX)
	a.mu.Unlock()
	return nil
}

// At returns the value at p and whether it has been set.
func (a *Accumulator) At(p IndexPoint) (float64, bool) {
	if !a.roi.Contains(p) {
		return math.NaN(), false
	}
	a.mu.RLock()
	v := a.data.Get(p.IY, p.IX)
	a.mu.RUnlock()
	return v, !math.IsNaN(v)
}

// Filled returns the number of cells that hold a value.
func (a *Accumulator) Filled() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.filled
}

// Snapshot returns a copy of the buffer as rows of IX values, one row
// per IY. Unset cells are NaN.
func (a *Accumulator) Snapshot() [][]float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n := a.roi.Size
	o := make([][]float64, n)
	for iy := range o {
		o[iy] = make([]float64, n)
		copy(o[iy], a.data.Elements[iy*n:(iy+1)*n])
	}
	return o
}

// Max returns the largest value that has been set, or 0 if nothing
// has been written.
func (a *Accumulator) Max() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var max float64
	for _, v := range a.data.Elements {
		if !math.IsNaN(v) && v > max {
			max = v
		}
	}
	return max
}
