// Package scheduler drives the encrypt and decrypt sweeps on a poll loop.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/agevault/internal/models"
	"github.com/starford/agevault/internal/transcoder"
	"github.com/starford/agevault/internal/watcher"
)

// DefaultInterval is the pause between ticks.
const DefaultInterval = time.Second

// Observer receives every outcome produced by a tick.
type Observer interface {
	Observe(o models.Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(o models.Outcome)

// Observe calls f(o).
func (f ObserverFunc) Observe(o models.Outcome) { f(o) }

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the pause between ticks.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithNudges wakes the loop early whenever ch receives.
func WithNudges(ch <-chan struct{}) Option {
	return func(s *Scheduler) {
		s.nudges = ch
	}
}

// WithObserver registers an outcome observer.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// Tick is the result of one pass over both queues.
type Tick struct {
	ID       string
	Started  time.Time
	Outcomes []models.Outcome
}

// Stats reports loop progress.
type Stats struct {
	Ticks    uint64    `json:"ticks"`
	LastTick time.Time `json:"last_tick"`
}

// Scheduler runs ticks until its context is cancelled. A tick is:
// encrypt queue → vault, then decrypt queue → local.
type Scheduler struct {
	layout    models.Layout
	sweeper   *watcher.Sweeper
	tc        transcoder.Transcoder
	logger    *slog.Logger
	interval  time.Duration
	nudges    <-chan struct{}
	observers []Observer

	ticks    atomic.Uint64
	lastTick atomic.Int64
}

// New creates a Scheduler.
func New(layout models.Layout, sweeper *watcher.Sweeper, tc transcoder.Transcoder, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		layout:   layout,
		sweeper:  sweeper,
		tc:       tc,
		logger:   logger,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tick runs exactly one pass over both queues.
func (s *Scheduler) Tick(ctx context.Context) Tick {
	t := Tick{ID: uuid.NewString(), Started: time.Now()}

	enc := s.sweeper.Sweep(ctx, s.layout.Encrypt, watcher.Operation{Name: models.OpEncrypt, Run: s.tc.Encrypt}, s.layout.Vault)
	dec := s.sweeper.Sweep(ctx, s.layout.Decrypt, watcher.Operation{Name: models.OpDecrypt, Run: s.tc.Decrypt}, s.layout.Local)

	t.Outcomes = append(enc, dec...)
	for i := range t.Outcomes {
		t.Outcomes[i].TickID = t.ID
		for _, obs := range s.observers {
			obs.Observe(t.Outcomes[i])
		}
	}

	s.ticks.Add(1)
	s.lastTick.Store(t.Started.UnixNano())

	if len(t.Outcomes) > 0 {
		s.logger.Debug("scheduler: tick done",
			slog.String("tick", t.ID),
			slog.Int("files", len(t.Outcomes)),
			slog.Duration("took", time.Since(t.Started)))
	}
	return t
}

// Run ticks, waits the interval (or a nudge), and repeats until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler: started",
		slog.Duration("interval", s.interval),
		slog.String("encrypt", s.layout.Encrypt),
		slog.String("decrypt", s.layout.Decrypt))

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	nudges := s.nudges
	for {
		s.Tick(ctx)

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.interval)

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler: stopped")
			return nil
		case <-timer.C:
		case _, ok := <-nudges:
			if !ok {
				nudges = nil
			}
		}
	}
}

// Stats returns the number of ticks run and when the last one started.
func (s *Scheduler) Stats() Stats {
	st := Stats{Ticks: s.ticks.Load()}
	if ns := s.lastTick.Load(); ns != 0 {
		st.LastTick = time.Unix(0, ns)
	}
	return st
}
