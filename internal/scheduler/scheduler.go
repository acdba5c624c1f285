// Package scheduler runs a pass function on a fixed interval. Passes never
// overlap: a pass that outlives the interval delays the next one instead of
// running concurrently with it, and on-demand passes share the same lock.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type Status struct {
	Running          bool       `json:"running"`
	IntervalSeconds  float64    `json:"interval_seconds"`
	Passes           int64      `json:"passes"`
	Overruns         int64      `json:"overruns"`
	LastPassAt       *time.Time `json:"last_pass_at,omitempty"`
	LastPassDuration string     `json:"last_pass_duration,omitempty"`
}

type Scheduler struct {
	interval time.Duration
	passFn   func(context.Context)
	logger   *slog.Logger

	running  atomic.Bool
	passes   atomic.Int64
	overruns atomic.Int64

	// passMu is held for the whole of every pass.
	passMu sync.Mutex

	statMu       sync.Mutex
	lastPassAt   time.Time
	lastDuration time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Scheduler)

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

func New(interval time.Duration, passFn func(context.Context), opts ...Option) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if passFn == nil {
		return nil, errors.New("pass function must not be nil")
	}
	s := &Scheduler{
		interval: interval,
		passFn:   passFn,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start launches the pass loop in the background. It reports false when the
// loop is already running.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)
		s.loop(ctx)
	}()

	return true
}

// Stop cancels the loop and waits for the pass in progress to return.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	s.logger.Info("scheduler stopped", "passes", s.passes.Load())
	return true
}

// Run starts the loop unless it is already running, blocks until ctx is
// done, then stops it.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.Start() {
		s.logger.Debug("scheduler already started")
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// TryPass runs fn as an on-demand pass unless another pass is in flight, in
// which case it returns false without calling fn.
func (s *Scheduler) TryPass(ctx context.Context, fn func(context.Context)) bool {
	if !s.passMu.TryLock() {
		return false
	}
	defer s.passMu.Unlock()

	s.runPass(ctx, fn)
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) Status() Status {
	st := Status{
		Running:         s.running.Load(),
		IntervalSeconds: s.interval.Seconds(),
		Passes:          s.passes.Load(),
		Overruns:        s.overruns.Load(),
	}

	s.statMu.Lock()
	defer s.statMu.Unlock()
	if !s.lastPassAt.IsZero() {
		at := s.lastPassAt
		st.LastPassAt = &at
		st.LastPassDuration = s.lastDuration.String()
	}
	return st
}

func (s *Scheduler) loop(ctx context.Context) {
	// time.Ticker drops ticks while a pass is running, so a slow pass
	// delays the next one rather than stacking them.
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "interval", s.interval.String())

	s.safePass(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.safePass(ctx)
		}
	}
}

func (s *Scheduler) safePass(ctx context.Context) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	s.runPass(ctx, s.passFn)
}

func (s *Scheduler) runPass(ctx context.Context, fn func(context.Context)) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scan pass panic recovered", "panic", r)
		}
		s.record(start, time.Since(start))
	}()

	fn(ctx)
}

func (s *Scheduler) record(start time.Time, d time.Duration) {
	s.passes.Add(1)

	s.statMu.Lock()
	s.lastPassAt = start.UTC()
	s.lastDuration = d
	s.statMu.Unlock()

	if d > s.interval {
		s.overruns.Add(1)
		s.logger.Warn("scan pass overran interval",
			"duration_ms", d.Milliseconds(),
			"interval", s.interval.String(),
		)
		return
	}
	s.logger.Debug("scan pass completed", "duration_ms", d.Milliseconds())
}
