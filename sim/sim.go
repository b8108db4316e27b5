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

// Package sim replays a scan path against an accumulator, modeling the
// extra settling time of large jumps and generating synthetic samples.
package sim

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/galvoscan/jump"
	"github.com/spatialmodel/galvoscan/mesh"
	"github.com/spatialmodel/galvoscan/plan"
)

// ErrRunning is returned by Start when a scan is already in progress
// on the same simulator.
var ErrRunning = errors.New("sim: a scan is already running")

// DelayPolicy sets the wait before each sample after the first.
type DelayPolicy struct {
	// Long follows a jump, Short follows any other move.
	Long, Short time.Duration
}

// DefaultDelays returns the default delay policy.
func DefaultDelays() DelayPolicy {
	return DelayPolicy{Long: 50 * time.Millisecond, Short: 10 * time.Millisecond}
}

// Intensity generates sample values.
type Intensity interface {
	Next() float64
}

// UniformIntensity draws integers uniformly from [Min, Max).
// It is not safe for concurrent use.
type UniformIntensity struct {
	Min, Max int
	rand     *rand.Rand
}

// NewUniformIntensity returns a generator for [min, max). A seed of 0
// seeds the generator from the clock.
func NewUniformIntensity(min, max int, seed int64) *UniformIntensity {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &UniformIntensity{Min: min, Max: max, rand: rand.New(rand.NewSource(seed))}
}

// Next returns the next sample.
func (u *UniformIntensity) Next() float64 {
	return float64(u.Min + u.rand.Intn(u.Max-u.Min))
}

// Update describes a single accumulator write.
type Update struct {
	// Seq is the position of Point in the scan path.
	Seq   int
	Point mesh.IndexPoint
	Value float64

	// Jump is true if the move to Point exceeded the jump threshold.
	Jump bool

	// Delay is the wait that preceded the write.
	Delay time.Duration
}

// Observer is notified after every accumulator write, from the
// simulation goroutine and in scan order.
type Observer interface {
	Observe(Update)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Update)

// Observe calls f(u).
func (f ObserverFunc) Observe(u Update) { f(u) }

// State is the simulator state.
type State int

const (
	// Idle means no scan is in progress.
	Idle State = iota
	// Running means a scan is in progress.
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// sleep is the default Sleeper.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Simulator runs simulated scans into a single accumulator. At most
// one scan may run at a time.
type Simulator struct {
	acc       *mesh.Accumulator
	params    jump.Params
	delays    DelayPolicy
	intensity Intensity
	sleep     Sleeper
	log       logrus.FieldLogger

	mu    sync.Mutex
	state State
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithDelays sets the delay policy.
func WithDelays(d DelayPolicy) Option { return func(s *Simulator) { s.delays = d } }

// WithIntensity sets the sample generator.
func WithIntensity(i Intensity) Option { return func(s *Simulator) { s.intensity = i } }

// WithSleeper replaces the function used to wait between samples.
func WithSleeper(f Sleeper) Option { return func(s *Simulator) { s.sleep = f } }

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option { return func(s *Simulator) { s.log = l } }

// New returns a simulator that writes into acc and classifies moves
// with params.
func New(acc *mesh.Accumulator, params jump.Params, opts ...Option) *Simulator {
	s := &Simulator{
		acc:       acc,
		params:    params,
		delays:    DefaultDelays(),
		intensity: NewUniformIntensity(10, 100, 0),
		sleep:     sleep,
		log:       logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Accumulator returns the buffer the simulator writes into.
func (s *Simulator) Accumulator() *mesh.Accumulator { return s.acc }

// State returns the current state.
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetParams changes the jump parameters used by later scans.
func (s *Simulator) SetParams(p jump.Params) {
	s.mu.Lock()
	s.params = p
	s.mu.Unlock()
}

// Run is the handle of a scan started with Start.
type Run struct {
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	written int64
	total   int
}

// Done is closed when the scan has finished.
func (r *Run) Done() <-chan struct{} { return r.done }

// Cancel asks the scan to stop before its next write.
func (r *Run) Cancel() { r.cancel() }

// Wait blocks until the scan finishes and returns its error, which is
// the context error if the scan was cancelled.
func (r *Run) Wait() error {
	<-r.done
	return r.err
}

// Written returns the number of samples written so far.
func (r *Run) Written() int { return int(atomic.LoadInt64(&r.written)) }

// Total returns the number of points in the scan path.
func (r *Run) Total() int { return r.total }

// Start begins replaying path in a new goroutine and returns
// immediately. obs may be nil. Start returns ErrRunning if another scan
// is in progress. The path is copied, so the caller may reuse it.
func (s *Simulator) Start(ctx context.Context, path plan.ScanPath, obs Observer) (*Run, error) {
	s.mu.Lock()
	if s.state == Running {
		s.mu.Unlock()
		return nil, ErrRunning
	}
	s.state = Running
	params, delays := s.params, s.delays
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	r := &Run{
		cancel: cancel,
		done:   make(chan struct{}),
		total:  len(path),
	}
	p := make(plan.ScanPath, len(path))
	copy(p, path)

	go func() {
		defer func() {
			cancel()
			s.mu.Lock()
			s.state = Idle
			s.mu.Unlock()
			close(r.done)
		}()
		r.err = s.run(ctx, r, p, params, delays, obs)
	}()
	return r, nil
}

// RunSync replays path and blocks until it is done.
func (s *Simulator) RunSync(ctx context.Context, path plan.ScanPath, obs Observer) (int, error) {
	r, err := s.Start(ctx, path, obs)
	if err != nil {
		return 0, err
	}
	err = r.Wait()
	return r.Written(), err
}

func (s *Simulator) run(ctx context.Context, r *Run, path plan.ScanPath, params jump.Params, delays DelayPolicy, obs Observer) error {
	log := s.log.WithField("points", len(path))
	log.Info("scan started")
	start := time.Now()
	var jumps int
	for i, pt := range path {
		u := Update{Seq: i, Point: pt}
		if i > 0 {
			u.Jump, _ = params.IsJump(path[i-1], pt)
			u.Delay = delays.Short
			if u.Jump {
				u.Delay = delays.Long
				jumps++
			}
			if err := s.sleep(ctx, u.Delay); err != nil {
				log.WithField("written", r.Written()).Warn("scan cancelled")
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			log.WithField("written", r.Written()).Warn("scan cancelled")
			return err
		}
		u.Value = s.intensity.Next()
		if err := s.acc.Set(pt, u.Value); err != nil {
			return err
		}
		atomic.AddInt64(&r.written, 1)
		if obs != nil {
			obs.Observe(u)
		}
	}
	log.WithFields(logrus.Fields{
		"jumps":   jumps,
		"elapsed": time.Since(start),
	}).Info("scan finished")
	return nil
}
