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
	"context"
	"fmt"
	"strings"

	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"

	"github.com/spatialmodel/galvoscan/export"
	"github.com/spatialmodel/galvoscan/jump"
	"github.com/spatialmodel/galvoscan/plot"
	"github.com/spatialmodel/galvoscan/scan"
	"github.com/spatialmodel/galvoscan/server"
)

// newSession creates a session from the configuration.
func (cfg *Cfg) newSession() (*scan.Session, error) {
	c, err := cfg.SessionConfig()
	if err != nil {
		return nil, err
	}
	return scan.NewSession(c, cfg.log)
}

// generate creates a session, generates the scan path for the configured
// region, prints its summary and writes the requested outputs.
func (cfg *Cfg) generate(ctx context.Context, cmd *cobra.Command) (*scan.Session, scan.Result, error) {
	r, err := cfg.Region()
	if err != nil {
		return nil, scan.Result{}, err
	}
	s, err := cfg.newSession()
	if err != nil {
		return nil, scan.Result{}, err
	}
	if err := s.SetRegion(r); err != nil {
		return nil, scan.Result{}, err
	}
	res, err := s.Generate(ctx)
	if err != nil {
		return nil, scan.Result{}, err
	}
	if err := jump.WriteSummary(cmd.OutOrStdout(), res.Path, res.Jumps, s.Params()); err != nil {
		return nil, scan.Result{}, err
	}
	if res.Empty() {
		return s, res, nil
	}
	if err := cfg.writePath(s, res); err != nil {
		return nil, scan.Result{}, err
	}
	return s, res, nil
}

// writePath writes the outputs of generation that were asked for.
func (cfg *Cfg) writePath(s *scan.Session, res scan.Result) error {
	if f := cfg.GetString("csv"); f != "" {
		if err := export.SaveCSV(f, res.Path, s.Grid()); err != nil {
			return err
		}
		cfg.log.WithField("file", f).Info("wrote scan path CSV")
	}
	if f := cfg.GetString("xlsx"); f != "" {
		if err := export.SaveXLSX(f, res.Path, res.Jumps, s.Grid()); err != nil {
			return err
		}
		cfg.log.WithField("file", f).Info("wrote scan path workbook")
	}
	if f := cfg.GetString("shp"); f != "" {
		if err := export.WritePathShp(f, res.Path); err != nil {
			return err
		}
		rf := strings.TrimSuffix(f, ".shp") + "_region.shp"
		if err := export.WriteRegionShp(rf, res.Region); err != nil {
			return err
		}
		cfg.log.WithField("file", f).Info("wrote scan path shapefiles")
	}
	if f := cfg.GetString("plot"); f != "" {
		p, err := plot.PathPlot(s.Grid().ROI, res.Region, res.Path, res.Jumps)
		if err != nil {
			return err
		}
		if err := plot.Save(p, f); err != nil {
			return fmt.Errorf("scanutil: saving plot: %v", err)
		}
		cfg.log.WithField("file", f).Info("wrote scan path plot")
	}
	return nil
}

// simulate generates the scan path, replays it until it is done or ctx
// is cancelled, and writes the accumulated intensities.
func (cfg *Cfg) simulate(ctx context.Context, cmd *cobra.Command) error {
	s, res, err := cfg.generate(ctx, cmd)
	if err != nil {
		return err
	}
	if res.Empty() {
		return scan.ErrNoPath
	}
	run, err := s.Simulate(ctx, nil)
	if err != nil {
		return err
	}
	if err := run.Wait(); err != nil {
		if ctx.Err() == nil {
			return err
		}
		cfg.log.WithField("written", run.Written()).Warn("simulation interrupted; writing partial results")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Simulated %d of %d scan points.\n", run.Written(), run.Total())

	acc := s.Accumulator()
	if f := cfg.GetString("tiff"); f != "" {
		if err := export.SaveTIFF(f, acc); err != nil {
			return err
		}
		cfg.log.WithField("file", f).Info("wrote intensity TIFF")
	}
	if f := cfg.GetString("heatmap"); f != "" {
		p, err := plot.Heatmap(acc)
		if err != nil {
			return err
		}
		if err := plot.Save(p, f); err != nil {
			return fmt.Errorf("scanutil: saving heatmap: %v", err)
		}
		cfg.log.WithField("file", f).Info("wrote heatmap")
		if cfg.GetBool("open") {
			if err := open.Run(f); err != nil {
				return fmt.Errorf("scanutil: opening heatmap: %v", err)
			}
		}
	}
	return nil
}

// serve runs the HTTP server until ctx is cancelled.
func (cfg *Cfg) serve(ctx context.Context) error {
	s, err := cfg.newSession()
	if err != nil {
		return err
	}
	return server.New(s, cfg.log).ListenAndServe(ctx, cfg.GetString("addr"))
}
