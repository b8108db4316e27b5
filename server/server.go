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

// Package server provides an HTTP and websocket front end to a scan
// session. Simulated samples are streamed to websocket clients as they
// are written.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/galvoscan/export"
	"github.com/spatialmodel/galvoscan/jump"
	"github.com/spatialmodel/galvoscan/mesh"
	"github.com/spatialmodel/galvoscan/region"
	"github.com/spatialmodel/galvoscan/scan"
	"github.com/spatialmodel/galvoscan/sim"
)

// point is a grid index as a JSON [x, y] pair.
type point [2]int

func (p point) index() mesh.IndexPoint { return mesh.IndexPoint{IX: p[0], IY: p[1]} }

func points(ps []mesh.IndexPoint) []point {
	out := make([]point, len(ps))
	for i, p := range ps {
		out[i] = point{p.IX, p.IY}
	}
	return out
}

// regionRequest sets the region either from polygon vertices or from
// two rectangle corners.
type regionRequest struct {
	Vertices []point `json:"vertices,omitempty"`
	Rect     []point `json:"rect,omitempty"`
}

type regionResponse struct {
	Vertices []point `json:"vertices"`
	Closed   bool    `json:"closed"`
}

type thresholdRequest struct {
	Threshold string `json:"threshold"`
}

type jumpJSON struct {
	From     point   `json:"from"`
	To       point   `json:"to"`
	Index    float64 `json:"distance_index"`
	Physical float64 `json:"distance_um"`
}

type pathResponse struct {
	Candidates  int        `json:"candidates"`
	Points      int        `json:"points"`
	ThresholdUM float64    `json:"threshold_um"`
	JumpTotalUM float64    `json:"jump_total_um"`
	JumpMaxUM   float64    `json:"jump_max_um"`
	Jumps       []jumpJSON `json:"jumps"`
}

type simulateResponse struct {
	Total int `json:"total"`
}

// sample is an accumulator value that encodes unset cells as null.
type sample float64

func (s sample) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(s)) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(s))
}

type accumulatorResponse struct {
	Size   int        `json:"size"`
	Filled int        `json:"filled"`
	Values [][]sample `json:"values"`
}

// Server serves one scan session.
type Server struct {
	session  *scan.Session
	hub      *Hub
	log      logrus.FieldLogger
	upgrader websocket.Upgrader

	mu  sync.Mutex
	run *sim.Run
}

// New returns a server for session. log may be nil.
func New(session *scan.Session, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		session: session,
		hub:     NewHub(log),
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Hub returns the server's websocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/region", method(http.MethodPost, s.handleRegion))
	mux.HandleFunc("/generate", method(http.MethodPost, s.handleGenerate))
	mux.HandleFunc("/threshold", method(http.MethodPut, s.handleThreshold))
	mux.HandleFunc("/simulate", method(http.MethodPost, s.handleSimulate))
	mux.HandleFunc("/reset", method(http.MethodPost, s.handleReset))
	mux.HandleFunc("/path.csv", method(http.MethodGet, s.handlePathCSV))
	mux.HandleFunc("/accumulator", method(http.MethodGet, s.handleAccumulator))
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("server listening")
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	s.cancelRun()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func method(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != m {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to encode", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func (s *Server) pathResponse(res scan.Result) pathResponse {
	sum := jump.Summarize(res.Jumps)
	return pathResponse{
		Candidates:  res.Candidates.Len(),
		Points:      res.Path.Len(),
		ThresholdUM: s.session.Params().Threshold,
		JumpTotalUM: sum.Total,
		JumpMaxUM:   sum.Max,
		Jumps:       jumpsJSON(res.Jumps),
	}
}

func jumpsJSON(jumps []jump.Record) []jumpJSON {
	out := make([]jumpJSON, len(jumps))
	for i, j := range jumps {
		out[i] = jumpJSON{
			From:     point{j.From.IX, j.From.IY},
			To:       point{j.To.IX, j.To.IY},
			Index:    j.DistanceIndex,
			Physical: j.DistancePhysical,
		}
	}
	return out
}

func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	var req regionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed region: "+err.Error(), http.StatusBadRequest)
		return
	}
	var reg region.Region
	switch {
	case len(req.Rect) == 2:
		reg = region.Rectangle(req.Rect[0].index(), req.Rect[1].index())
	case len(req.Rect) != 0:
		http.Error(w, "rect needs exactly two corners", http.StatusBadRequest)
		return
	default:
		vs := make([]mesh.IndexPoint, len(req.Vertices))
		for i, p := range req.Vertices {
			vs[i] = p.index()
		}
		reg = region.New(vs...)
	}
	if err := s.session.SetRegion(reg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusOK, regionResponse{Vertices: points(s.session.Vertices()), Closed: true})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	res, err := s.session.Generate(r.Context())
	if err != nil {
		s.log.WithError(err).Error("generating scan path")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, s.pathResponse(res))
}

func (s *Server) handleThreshold(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed threshold: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.session.SetThreshold(req.Threshold)
	s.writeJSON(w, http.StatusOK, s.pathResponse(s.session.Result()))
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	// The run outlives the request.
	run, err := s.session.Simulate(context.Background(), s.hub)
	switch {
	case errors.Is(err, sim.ErrRunning):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, scan.ErrNoPath):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.mu.Lock()
	s.run = run
	s.mu.Unlock()
	go s.hub.Done(run)
	s.writeJSON(w, http.StatusAccepted, simulateResponse{Total: run.Total()})
}

// cancelRun stops the current simulation, if any, and waits for it.
func (s *Server) cancelRun() {
	s.mu.Lock()
	run := s.run
	s.run = nil
	s.mu.Unlock()
	if run != nil {
		run.Cancel()
		run.Wait()
	}
}

// handleReset cancels any running simulation and clears the session.
// The accumulator is cleared when the query parameter clear is "true".
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.cancelRun()
	s.session.Reset(r.URL.Query().Get("clear") == "true")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePathCSV(w http.ResponseWriter, r *http.Request) {
	res := s.session.Result()
	if res.Empty() {
		http.Error(w, export.ErrEmptyPath.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="scan_path.csv"`)
	if err := export.WriteCSV(w, res.Path, s.session.Grid()); err != nil {
		s.log.WithError(err).Error("writing scan path CSV")
	}
}

func (s *Server) handleAccumulator(w http.ResponseWriter, r *http.Request) {
	acc := s.session.Accumulator()
	snap := acc.Snapshot()
	values := make([][]sample, len(snap))
	var filled int
	for iy, row := range snap {
		values[iy] = make([]sample, len(row))
		for ix, v := range row {
			values[iy][ix] = sample(v)
			if !math.IsNaN(v) {
				filled++
			}
		}
	}
	s.writeJSON(w, http.StatusOK, accumulatorResponse{
		Size:   acc.ROI().Size,
		Filled: filled,
		Values: values,
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	acc := s.session.Accumulator()
	sub, err := s.hub.Subscribe(conn, stateMessage{
		Type:    "state",
		Size:    acc.ROI().Size,
		Filled:  acc.Filled(),
		Running: s.session.Simulator().State() == sim.Running,
	})
	if err != nil {
		s.log.WithError(err).Warn("websocket subscribe failed")
		conn.Close()
		return
	}
	s.log.WithField("subscribers", s.hub.Len()).Debug("websocket client connected")
	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.hub.Unsubscribe(sub)
			return
		}
	}
}
