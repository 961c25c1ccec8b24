// Package watcher moves files through one pipeline stage per sweep.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/starford/agevault/internal/checksum"
	"github.com/starford/agevault/internal/models"
	"github.com/starford/agevault/internal/storage"
)

// Operation transforms the file at path and returns where the result landed.
type Operation struct {
	Name models.Op
	Run  func(ctx context.Context, path string) (string, error)
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithSettle skips files modified less than d ago, leaving them for a later
// sweep while they may still be written.
func WithSettle(d time.Duration) Option {
	return func(s *Sweeper) {
		s.settle = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// Sweeper runs sweeps over pipeline folders.
type Sweeper struct {
	store  storage.Provider
	logger *slog.Logger
	settle time.Duration
	now    func() time.Time
}

// NewSweeper creates a Sweeper over store.
func NewSweeper(store storage.Provider, logger *slog.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep applies op to every regular file directly inside sourceDir, one at a
// time in directory order. Results that did not land in destDir are moved
// there unless a file with that name already exists. Per-file failures are
// reported in the returned outcomes and never stop the sweep.
func (s *Sweeper) Sweep(ctx context.Context, sourceDir string, op Operation, destDir string) []models.Outcome {
	files, err := s.store.List(sourceDir)
	if err != nil {
		s.logger.Error("watcher: list failed", slog.String("dir", sourceDir), slog.String("error", err.Error()))
		return nil
	}

	var outcomes []models.Outcome
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}

		o := models.Outcome{Op: op.Name, Source: f.Path, Size: f.Size, At: s.now()}

		if s.settle > 0 && s.now().Sub(f.ModTime) < s.settle {
			s.logger.Debug("watcher: file not settled", slog.String("path", f.Path))
			o.Status = models.StatusSkipped
			outcomes = append(outcomes, o)
			continue
		}

		out, err := op.Run(ctx, f.Path)
		if err != nil {
			s.logger.Debug("watcher: process failed",
				slog.String("op", string(op.Name)),
				slog.String("path", f.Path),
				slog.String("error", err.Error()))
			o.Status = models.StatusFailed
			o.Err = err
			outcomes = append(outcomes, o)
			continue
		}

		o.Output = out
		o.Status = models.StatusOK
		if filepath.Clean(filepath.Dir(out)) != filepath.Clean(destDir) {
			moved, err := s.store.Relocate(out, destDir)
			if err != nil {
				s.logger.Error("watcher: relocate failed",
					slog.String("path", out),
					slog.String("dest", destDir),
					slog.String("error", err.Error()))
				o.Status = models.StatusFailed
				o.Err = err
				outcomes = append(outcomes, o)
				continue
			}
			s.logger.Info("watcher: relocated output", slog.String("from", out), slog.String("to", moved))
			o.Output = moved
			o.Status = models.StatusRelocated
		}

		if sum, _, err := checksum.File(o.Output); err == nil {
			o.Checksum = sum
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}
