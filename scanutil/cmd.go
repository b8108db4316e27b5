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

// Package scanutil contains the galvoscan command line interface and
// its configuration.
package scanutil

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/spatialmodel/galvoscan/scan"
)

// Cfg holds configuration information.
type Cfg struct {
	*viper.Viper

	// Root is the main command.
	Root *cobra.Command

	generateCmd, simulateCmd, serveCmd *cobra.Command

	// regionFlags are shared by the commands that need a region.
	regionFlags *pflag.FlagSet

	log *logrus.Logger
}

// option describes a configuration value and the flag that sets it.
type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

// InitializeConfig creates the command tree and binds its flags to a
// new configuration.
func InitializeConfig() *Cfg {
	cfg := &Cfg{
		Viper:       viper.New(),
		regionFlags: pflag.NewFlagSet("region", pflag.ExitOnError),
		log:         logrus.New(),
	}
	cfg.SetEnvPrefix("GALVOSCAN")
	cfg.AutomaticEnv()

	cfg.Root = &cobra.Command{
		Use:   "galvoscan",
		Short: "Generate and simulate galvanometer scan paths.",
		Long: `galvoscan rasterizes a polygon region of interest onto a grid,
orders the grid points into a scan path that favors axis-aligned moves,
reports the moves that exceed a jump threshold, and simulates scanning
the path into an intensity map.

Configuration may be given with flags, with environment variables
prefixed by GALVOSCAN_ (for example GALVOSCAN_ROI_SIZE) or in a TOML
file given by --config.`,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return cfg.readConfig()
		},
	}

	cfg.generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate a scan path for a region.",
		Long: `generate rasterizes the region given by --vertices, --rect or
--region, plans the scan path, prints a summary of its jumps and writes
the requested outputs.`,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, err := cfg.generate(context.Background(), cmd)
			return err
		},
	}

	cfg.simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Generate a scan path and simulate scanning it.",
		Long: `simulate generates a scan path as the generate command does
and then replays it, sampling each point with a settling delay that
depends on the length of the move. Interrupting the program stops the
scan; the samples collected so far are still written.`,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return cfg.simulate(ctx, cmd)
		},
	}

	cfg.serveCmd = &cobra.Command{
		Use:               "serve",
		Short:             "Serve a scan session over HTTP.",
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return cfg.serve(ctx)
		},
	}

	cfg.Root.AddCommand(cfg.generateCmd, cfg.simulateCmd, cfg.serveCmd)

	def := scan.DefaultConfig()
	persistent := cfg.Root.PersistentFlags()
	options := []option{
		{
			name:       "config",
			usage:      "configuration file location (TOML)",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{persistent},
		},
		{
			name:       "log_level",
			usage:      "logging level: debug, info, warn or error",
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{persistent},
		},
		{
			name:       "roi_size",
			usage:      "width and height of the region of interest in grid steps",
			defaultVal: def.ROISize,
			flagsets:   []*pflag.FlagSet{persistent},
		},
		{
			name:       "step_um",
			usage:      "physical size of one grid step in µm",
			defaultVal: def.Step,
			flagsets:   []*pflag.FlagSet{persistent},
		},
		{
			name:       "jump_threshold_um",
			usage:      "moves longer than this many µm are jumps; text that is not a number selects 0.4",
			shorthand:  "t",
			defaultVal: def.Threshold,
			flagsets:   []*pflag.FlagSet{persistent},
		},
		{
			name:       "long_delay",
			usage:      "settling delay before a sample that follows a jump",
			defaultVal: def.Delays.Long,
			flagsets:   []*pflag.FlagSet{persistent},
		},
		{
			name:       "short_delay",
			usage:      "settling delay before a sample that follows a short move",
			defaultVal: def.Delays.Short,
			flagsets:   []*pflag.FlagSet{persistent},
		},
		{
			name:       "intensity_min",
			usage:      "lower bound (inclusive) of simulated intensities",
			defaultVal: def.IntensityMin,
			flagsets:   []*pflag.FlagSet{persistent},
		},
		{
			name:       "intensity_max",
			usage:      "upper bound (exclusive) of simulated intensities",
			defaultVal: def.IntensityMax,
			flagsets:   []*pflag.FlagSet{persistent},
		},
		{
			name:       "seed",
			usage:      "random seed for simulated intensities; 0 seeds from the clock",
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{persistent},
		},
		{
			name:       "plan_cache_size",
			usage:      "number of planned scan paths kept in memory",
			defaultVal: def.CacheSize,
			flagsets:   []*pflag.FlagSet{persistent},
		},
		{
			name:       "addr",
			usage:      "address for the HTTP server to listen on",
			defaultVal: ":8080",
			flagsets:   []*pflag.FlagSet{cfg.serveCmd.Flags()},
		},
		{
			name:       "vertices",
			usage:      `polygon vertices as "x,y x,y ..." in grid steps`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.regionFlags},
		},
		{
			name:       "rect",
			usage:      `opposite rectangle corners as "x1,y1 x2,y2" in grid steps`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.regionFlags},
		},
		{
			name:       "region",
			usage:      "TOML file with the region vertices as [[vertex]] tables",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.regionFlags},
		},
		{
			name:       "csv",
			usage:      "write the scan path to this CSV file",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.regionFlags},
		},
		{
			name:       "xlsx",
			usage:      "write the scan path and its jumps to this Excel file",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.regionFlags},
		},
		{
			name:       "shp",
			usage:      "write the scan points to this shapefile and the region to a shapefile with the suffix _region",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.regionFlags},
		},
		{
			name:       "plot",
			usage:      "draw the region, scan path and jumps to this image file",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.regionFlags},
		},
		{
			name:       "heatmap",
			usage:      "draw the simulated intensities to this image file",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.simulateCmd.Flags()},
		},
		{
			name:       "tiff",
			usage:      "write the simulated intensities to this 16-bit TIFF file",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.simulateCmd.Flags()},
		},
		{
			name:       "open",
			usage:      "open the heatmap in the default viewer when the scan is done",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cfg.simulateCmd.Flags()},
		},
	}

	for _, o := range options {
		for _, set := range o.flagsets {
			switch v := o.defaultVal.(type) {
			case string:
				if o.shorthand == "" {
					set.String(o.name, v, o.usage)
				} else {
					set.StringP(o.name, o.shorthand, v, o.usage)
				}
			case bool:
				set.Bool(o.name, v, o.usage)
			case int:
				set.Int(o.name, v, o.usage)
			case float64:
				set.Float64(o.name, v, o.usage)
			case time.Duration:
				set.Duration(o.name, v, o.usage)
			default:
				panic(fmt.Errorf("scanutil: invalid option type %T", v))
			}
			cfg.BindPFlag(o.name, set.Lookup(o.name))
		}
	}

	// AddFlagSet copies only flags that already exist.
	cfg.generateCmd.Flags().AddFlagSet(cfg.regionFlags)
	cfg.simulateCmd.Flags().AddFlagSet(cfg.regionFlags)
	return cfg
}

// readConfig reads the configuration file, if one was given, and sets
// the log level.
func (cfg *Cfg) readConfig() error {
	if file := cfg.GetString("config"); file != "" {
		cfg.SetConfigFile(os.ExpandEnv(file))
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("scanutil: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(cfg.GetString("log_level"))
	if err != nil {
		return fmt.Errorf("scanutil: %v", err)
	}
	cfg.log.SetLevel(level)
	return nil
}

// SessionConfig returns the scan session settings held by cfg.
func (cfg *Cfg) SessionConfig() (scan.Config, error) {
	c := scan.Config{
		ROISize:      cast.ToInt(cfg.Get("roi_size")),
		Step:         cast.ToFloat64(cfg.Get("step_um")),
		Threshold:    strings.TrimSpace(cast.ToString(cfg.Get("jump_threshold_um"))),
		IntensityMin: cast.ToInt(cfg.Get("intensity_min")),
		IntensityMax: cast.ToInt(cfg.Get("intensity_max")),
		Seed:         cast.ToInt64(cfg.Get("seed")),
		CacheSize:    cast.ToInt(cfg.Get("plan_cache_size")),
	}
	c.Delays.Long = cfg.GetDuration("long_delay")
	c.Delays.Short = cfg.GetDuration("short_delay")
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Logger returns the logger used by the commands.
func (cfg *Cfg) Logger() *logrus.Logger { return cfg.log }
