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

// Package scan ties region editing, rasterization, path planning, jump
// analysis and simulation together into a session.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/galvoscan/internal/hash"
	"github.com/spatialmodel/galvoscan/jump"
	"github.com/spatialmodel/galvoscan/mesh"
	"github.com/spatialmodel/galvoscan/plan"
	"github.com/spatialmodel/galvoscan/raster"
	"github.com/spatialmodel/galvoscan/region"
	"github.com/spatialmodel/galvoscan/sim"
)

// ErrNoPath is returned when a simulation is requested before a scan
// path has been generated.
var ErrNoPath = errors.New("scan: no scan path")

// maxLoggedJumps is the number of jumps listed in the generation log.
const maxLoggedJumps = 20

// Result holds the outputs of the most recent generation.
type Result struct {
	Region     region.Region
	Candidates raster.CandidateSet
	Path       plan.ScanPath
	Jumps      []jump.Record
}

// Empty reports whether the result has no scan points.
func (r Result) Empty() bool { return r.Path.Len() == 0 }

// planRequest is the cache key payload for a planned path.
type planRequest struct {
	ROISize  int
	Vertices []mesh.IndexPoint
}

// planned is the cached output of rasterization and planning.
type planned struct {
	Candidates raster.CandidateSet
	Path       plan.ScanPath
}

// Session holds the state of one scan workflow. It is safe for
// concurrent use.
type Session struct {
	mu     sync.Mutex
	cfg    Config
	grid   *raster.GridDef
	editor *region.Editor
	params jump.Params
	result Result

	acc   *mesh.Accumulator
	sim   *sim.Simulator
	cache *requestcache.Cache
	log   logrus.FieldLogger
}

// NewSession returns a session configured by cfg. log may be nil.
func NewSession(cfg Config, log logrus.FieldLogger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	roi := mesh.NewROI(cfg.ROISize)
	s := &Session{
		cfg:    cfg,
		grid:   raster.NewGrid(roi, cfg.Step),
		editor: region.NewEditor(roi),
		params: cfg.params(),
		acc:    mesh.NewAccumulator(roi),
		log:    log,
	}
	s.sim = sim.New(s.acc, s.params,
		sim.WithDelays(cfg.Delays),
		sim.WithIntensity(sim.NewUniformIntensity(cfg.IntensityMin, cfg.IntensityMax, cfg.Seed)),
		sim.WithLogger(log),
	)
	s.cache = requestcache.NewCache(s.planWorker, 1, requestcache.Deduplicate(), requestcache.Memory(cfg.CacheSize))
	return s, nil
}

// planWorker rasterizes and plans the region described by a planRequest.
func (s *Session) planWorker(_ context.Context, requestPayload interface{}) (interface{}, error) {
	req := requestPayload.(planRequest)
	c := s.grid.Rasterize(region.New(req.Vertices...))
	return &planned{Candidates: c, Path: plan.Plan(c)}, nil
}

// Grid returns the grid definition.
func (s *Session) Grid() *raster.GridDef { return s.grid }

// Accumulator returns the buffer that simulations write into.
func (s *Session) Accumulator() *mesh.Accumulator { return s.acc }

// Simulator returns the session's simulator.
func (s *Session) Simulator() *sim.Simulator { return s.sim }

// Params returns the current jump parameters.
func (s *Session) Params() jump.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// AddVertex adds a clicked point to the region being edited.
func (s *Session) AddVertex(p mesh.IndexPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.AddVertex(p)
}

// CloseRegion finishes a freehand region.
func (s *Session) CloseRegion() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.Close()
}

// SetRectangleMode switches region entry between freehand polygons and
// two-corner rectangles.
func (s *Session) SetRectangleMode(on bool) {
	s.mu.Lock()
	s.editor.SetRectangleMode(on)
	s.mu.Unlock()
}

// SetRegion replaces the region being edited with r, closed.
func (s *Session) SetRegion(r region.Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.SetRegion(r)
}

// Vertices returns the vertices of the region being edited.
func (s *Session) Vertices() []mesh.IndexPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.Vertices()
}

// Generate rasterizes the closed region, plans the scan path and finds
// its jumps. If no region has been closed, or the region covers no grid
// points, the returned result is empty.
func (s *Session) Generate(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.editor.Region()
	if !ok {
		s.log.Info("no closed region to generate a scan path for")
		return Result{}, nil
	}
	s.result = Result{}

	req := planRequest{ROISize: s.grid.ROI.Size, Vertices: r.Vertices()}
	resultI, err := s.cache.NewRequest(ctx, req, fmt.Sprintf("plan_%s", hash.Hash(req))).Result()
	if err != nil {
		return Result{}, fmt.Errorf("scan: planning path: %v", err)
	}
	p := resultI.(*planned)
	if p.Candidates.Len() == 0 {
		s.log.Warn("No valid scan points found.")
		return Result{}, nil
	}
	s.result = Result{
		Region:     r,
		Candidates: p.Candidates,
		Path:       p.Path,
		Jumps:      jump.Analyze(p.Path, s.params),
	}
	s.logResult()
	return s.result, nil
}

func (s *Session) logResult() {
	sum := jump.Summarize(s.result.Jumps)
	s.log.WithFields(logrus.Fields{
		"points":        s.result.Path.Len(),
		"jumps":         sum.Count,
		"threshold_um":  s.params.Threshold,
		"jump_total_um": sum.Total,
		"jump_max_um":   sum.Max,
	}).Infof("Generated %d scan points.", s.result.Path.Len())
	s.log.Infof("Big jumps over %g µm: %d", s.params.Threshold, len(s.result.Jumps))
	for i, r := range s.result.Jumps {
		if i == maxLoggedJumps {
			break
		}
		s.log.Infof("  %d. %v", i+1, r)
	}
}

// SetThreshold sets the jump threshold from user-entered text and
// recomputes the jumps of the current path. Unparseable text selects
// jump.DefaultThreshold.
func (s *Session) SetThreshold(text string) []jump.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params.Threshold = jump.ParseThreshold(text)
	s.sim.SetParams(s.params)
	s.result.Jumps = jump.Analyze(s.result.Path, s.params)
	s.log.WithFields(logrus.Fields{
		"threshold_um": s.params.Threshold,
		"jumps":        len(s.result.Jumps),
	}).Info("jump threshold updated")
	return s.result.Jumps
}

// Result returns the outputs of the most recent generation.
func (s *Session) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Simulate starts a simulated scan of the current path. It returns
// ErrNoPath if there is no path and sim.ErrRunning if a scan is already
// in progress. obs may be nil.
func (s *Session) Simulate(ctx context.Context, obs sim.Observer) (*sim.Run, error) {
	s.mu.Lock()
	path := s.result.Path
	s.mu.Unlock()
	if path.Len() == 0 {
		s.log.Warn("No scan path.")
		return nil, ErrNoPath
	}
	return s.sim.Start(ctx, path, obs)
}

// Reset clears the region, candidates, path and jumps. The accumulator
// is cleared only if clearAccumulator is true.
func (s *Session) Reset(clearAccumulator bool) {
	s.mu.Lock()
	s.editor.Reset()
	s.result = Result{}
	s.mu.Unlock()
	if clearAccumulator {
		s.acc.Reset()
	}
	s.log.Info("Canvas reset. Ready for new shape.")
}
