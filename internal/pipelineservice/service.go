// Package pipelineservice answers read-only questions about the pipeline for
// the status API and the MCP server.
package pipelineservice

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/agevault/internal/apperr"
	"github.com/starford/agevault/internal/journal"
	"github.com/starford/agevault/internal/models"
	"github.com/starford/agevault/internal/scheduler"
	"github.com/starford/agevault/internal/storage"
)

// KeyChecker reports whether the key file is present.
type KeyChecker interface {
	Exists() bool
}

// StageStatus describes one pipeline folder.
type StageStatus struct {
	Stage models.Stage `json:"stage"`
	Dir   string       `json:"dir"`
	Files int          `json:"files"`
	Bytes int64        `json:"bytes"`
	Error string       `json:"error,omitempty"`
}

// Status is a snapshot of the pipeline.
type Status struct {
	Stages     []StageStatus  `json:"stages"`
	KeyPresent bool           `json:"key_present"`
	Ticks      uint64         `json:"ticks"`
	LastTick   *time.Time     `json:"last_tick,omitempty"`
	Outcomes   map[string]int `json:"outcomes,omitempty"`
}

// Service reads pipeline state from storage, the key store and the journal.
type Service struct {
	store  storage.Provider
	layout models.Layout
	keys   KeyChecker
	ledger journal.Ledger
	stats  func() scheduler.Stats
}

// Option configures a Service.
type Option func(*Service)

// WithLedger attaches the journal. Without it history is empty.
func WithLedger(l journal.Ledger) Option {
	return func(s *Service) {
		s.ledger = l
	}
}

// WithStats attaches the scheduler's progress counters.
func WithStats(fn func() scheduler.Stats) Option {
	return func(s *Service) {
		s.stats = fn
	}
}

// NewService creates a new pipeline service.
func NewService(store storage.Provider, layout models.Layout, keys KeyChecker, opts ...Option) *Service {
	s := &Service{store: store, layout: layout, keys: keys}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status counts the files in every stage.
func (s *Service) Status(_ context.Context) (*Status, error) {
	st := &Status{KeyPresent: s.keys != nil && s.keys.Exists()}
	for _, stage := range models.Stages {
		ss := StageStatus{Stage: stage, Dir: s.layout.Dir(stage)}
		files, err := s.store.List(ss.Dir)
		if err != nil {
			ss.Error = err.Error()
		}
		for _, f := range files {
			ss.Files++
			ss.Bytes += f.Size
		}
		st.Stages = append(st.Stages, ss)
	}
	if s.stats != nil {
		stats := s.stats()
		st.Ticks = stats.Ticks
		if !stats.LastTick.IsZero() {
			last := stats.LastTick
			st.LastTick = &last
		}
	}
	if s.ledger != nil {
		counts, err := s.ledger.Counts()
		if err != nil {
			return nil, err
		}
		st.Outcomes = counts
	}
	return st, nil
}

// ListStage returns the files currently in stage.
func (s *Service) ListStage(_ context.Context, stage models.Stage) ([]models.StagedFile, error) {
	dir := s.layout.Dir(stage)
	if dir == "" {
		return nil, fmt.Errorf("stage %q: %w", stage, apperr.ErrNotFound)
	}
	files, err := s.store.List(dir)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []models.StagedFile{}
	}
	return files, nil
}

// History returns up to limit recent journal entries, newest first.
func (s *Service) History(_ context.Context, limit int) ([]journal.Entry, error) {
	if s.ledger == nil {
		return []journal.Entry{}, nil
	}
	entries, err := s.ledger.Recent(limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	return entries, nil
}
