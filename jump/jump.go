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

// Package jump finds large discontinuities in a scan path.
package jump

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/spf13/cast"
	"gonum.org/v1/gonum/floats"

	"github.com/spatialmodel/galvoscan/mesh"
	"github.com/spatialmodel/galvoscan/plan"
)

// DefaultThreshold is the jump threshold (µm) used when the
// configured threshold cannot be parsed.
const DefaultThreshold = 0.4

// DefaultStep is the default physical size (µm) of one index unit.
const DefaultStep = 0.2

// Params holds the physical parameters of jump detection.
type Params struct {
	// Step is the physical distance (µm) of one index unit.
	Step float64

	// Threshold is the physical distance (µm) above which a move
	// between consecutive points counts as a jump.
	Threshold float64
}

// DefaultParams returns the default step and threshold.
func DefaultParams() Params {
	return Params{Step: DefaultStep, Threshold: DefaultThreshold}
}

// ThresholdIndex returns the threshold in index units.
func (p Params) ThresholdIndex() float64 { return p.Threshold / p.Step }

// IsJump reports whether the move from a to b exceeds the threshold,
// and returns the move length in index units.
func (p Params) IsJump(a, b mesh.IndexPoint) (bool, float64) {
	d := math.Sqrt(float64(a.Dist2(b)))
	return d > p.ThresholdIndex(), d
}

// ParseThreshold converts user-entered threshold text to µm. Text
// that is not a number yields DefaultThreshold.
func ParseThreshold(text string) float64 {
	v, err := cast.ToFloat64E(strings.TrimSpace(text))
	if err != nil {
		return DefaultThreshold
	}
	return v
}

// Record describes a single jump.
type Record struct {
	From, To mesh.IndexPoint

	// DistanceIndex is the Euclidean jump length in index units.
	DistanceIndex float64

	// DistancePhysical is the jump length in µm.
	DistancePhysical float64
}

func (r Record) String() string {
	return fmt.Sprintf("%v -> %v  jump = %.3f µm (%.2f idx)", r.From, r.To, r.DistancePhysical, r.DistanceIndex)
}

// Analyze returns a record for every consecutive pair in path whose
// distance exceeds the threshold, in path order. It has no side
// effects, so repeated calls with the same inputs return equal results.
func Analyze(path plan.ScanPath, p Params) []Record {
	o := make([]Record, 0)
	for i := 1; i < len(path); i++ {
		a, b := path[i-1], path[i]
		if jump, d := p.IsJump(a, b); jump {
			o = append(o, Record{From: a, To: b, DistanceIndex: d, DistancePhysical: d * p.Step})
		}
	}
	return o
}

// Summary holds aggregate statistics of a jump list.
type Summary struct {
	Count int

	// Total and Max are physical distances in µm.
	Total, Max float64
}

// Summarize returns aggregate statistics for records.
func Summarize(records []Record) Summary {
	if len(records) == 0 {
		return Summary{}
	}
	d := make([]float64, len(records))
	for i, r := range records {
		d[i] = r.DistancePhysical
	}
	return Summary{Count: len(records), Total: floats.Sum(d), Max: floats.Max(d)}
}

// maxListed is the number of jumps written by WriteSummary.
const maxListed = 20

// WriteSummary writes a human readable report of the path length, the
// first jumps and the total and longest jump distance.
func WriteSummary(w io.Writer, path plan.ScanPath, records []Record, p Params) error {
	if _, err := fmt.Fprintf(w, "Generated %d scan points.\n", path.Len()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Big jumps over %g µm: %d\n", p.Threshold, len(records)); err != nil {
		return err
	}
	for i, r := range records {
		if i == maxListed {
			break
		}
		if _, err := fmt.Fprintf(w, "  %d. %v\n", i+1, r); err != nil {
			return err
		}
	}
	if len(records) == 0 {
		return nil
	}
	s := Summarize(records)
	_, err := fmt.Fprintf(w, "Jump distance: total %.3f µm, longest %.3f µm\n", s.Total, s.Max)
	return err
}
