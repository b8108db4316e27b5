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

package scan

import (
	"fmt"

	"github.com/spatialmodel/galvoscan/jump"
	"github.com/spatialmodel/galvoscan/mesh"
	"github.com/spatialmodel/galvoscan/sim"
)

// Config holds the settings of a scan session.
type Config struct {
	// ROISize is the extent of the region of interest in index units.
	ROISize int

	// Step is the physical size (µm) of one index unit.
	Step float64

	// Threshold is the jump threshold as entered by the user, in µm.
	// Text that is not a number is treated as jump.DefaultThreshold.
	Threshold string

	// Delays is the simulated settling-time policy.
	Delays sim.DelayPolicy

	// IntensityMin and IntensityMax bound the simulated samples,
	// [min, max).
	IntensityMin, IntensityMax int

	// Seed seeds the sample generator; 0 seeds from the clock.
	Seed int64

	// CacheSize is the number of planned paths kept in memory.
	CacheSize int
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		ROISize:      mesh.DefaultROISize,
		Step:         jump.DefaultStep,
		Threshold:    fmt.Sprint(jump.DefaultThreshold),
		Delays:       sim.DefaultDelays(),
		IntensityMin: 10,
		IntensityMax: 100,
		CacheSize:    16,
	}
}

// Validate checks that the configuration can be used.
func (c Config) Validate() error {
	switch {
	case c.ROISize <= 0:
		return fmt.Errorf("scan: ROI size must be positive, got %d", c.ROISize)
	case c.Step <= 0:
		return fmt.Errorf("scan: step size must be positive, got %g", c.Step)
	case c.Delays.Long < 0 || c.Delays.Short < 0:
		return fmt.Errorf("scan: delays must not be negative, got long=%v short=%v", c.Delays.Long, c.Delays.Short)
	case c.IntensityMin >= c.IntensityMax:
		return fmt.Errorf("scan: intensity range [%d, %d) is empty", c.IntensityMin, c.IntensityMax)
	case c.CacheSize < 1:
		return fmt.Errorf("scan: cache size must be at least 1, got %d", c.CacheSize)
	}
	return nil
}

// params returns the jump parameters described by the receiver.
func (c Config) params() jump.Params {
	return jump.Params{Step: c.Step, Threshold: jump.ParseThreshold(c.Threshold)}
}
