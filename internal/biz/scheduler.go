package biz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"moderation/internal/conf"
	"moderation/internal/document"
)

var (
	// ErrSweepInProgress is returned by RunNow while another sweep holds the run state.
	ErrSweepInProgress = errors.New("biz: sweep already in progress")
	// ErrDocumentNotFound is returned by RunNow when the moderated document is not open.
	ErrDocumentNotFound = errors.New("biz: document not found")
)

// RunState tracks whether the document changed since the last sweep and
// whether a sweep is running. A new RunState is dirty so the first tick sweeps.
type RunState struct {
	mu      sync.Mutex
	dirty   bool
	running bool
	edits   uint64 // MarkDirty calls
	begunAt uint64 // edits when the running sweep began
}

func NewRunState() *RunState {
	return &RunState{dirty: true}
}

// TryBegin starts a sweep if the state is dirty and no sweep is running.
func (s *RunState) TryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || !s.dirty {
		return false
	}
	s.running = true
	s.begunAt = s.edits
	return true
}

// MarkDirty records an edit.
func (s *RunState) MarkDirty() {
	s.mu.Lock()
	s.dirty = true
	s.edits++
	s.mu.Unlock()
}

// End finishes the running sweep and clears running. It clears dirty only when
// no edit was recorded since TryBegin: an edit that lands mid-sweep may not be
// covered by the sweep's extraction, so the state stays dirty and the next
// tick sweeps again.
func (s *RunState) End() {
	s.mu.Lock()
	s.running = false
	if s.edits == s.begunAt {
		s.dirty = false
	}
	s.mu.Unlock()
}

// Snapshot returns the current flags.
func (s *RunState) Snapshot() (dirty, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty, s.running
}

// Scheduler drives sweeps of one named document.
type Scheduler struct {
	uc       *ModerationUsecase
	docs     *document.Registry
	state    *RunState
	document string
	origin   string
	interval time.Duration
	log      *log.Helper
}

// NewScheduler creates a Scheduler and subscribes it to changes of every
// document in docs.
func NewScheduler(c *conf.Moderation, uc *ModerationUsecase, docs *document.Registry, logger log.Logger) *Scheduler {
	s := &Scheduler{
		uc:       uc,
		docs:     docs,
		state:    NewRunState(),
		document: c.Document,
		origin:   c.Origin,
		interval: c.Interval.Std(),
		log:      log.NewHelper(log.With(logger, "module", "biz/scheduler")),
	}
	docs.Observe(s.OnChange)
	return s
}

// Document is the name of the moderated document.
func (s *Scheduler) Document() string { return s.document }

// Interval is the configured time between ticks.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// State returns the run state flags.
func (s *Scheduler) State() (dirty, running bool) { return s.state.Snapshot() }

// OnChange marks the state dirty for edits of the moderated document not made
// by the moderation engine itself.
func (s *Scheduler) OnChange(c document.Change) {
	if c.Document != s.document || c.Origin == s.origin {
		return
	}
	s.state.MarkDirty()
}

// Tick runs one sweep if the document changed since the last one and no sweep
// is in flight. It never panics.
func (s *Scheduler) Tick(ctx context.Context) {
	doc, ok := s.docs.Get(s.document)
	if !ok {
		return
	}
	if !s.state.TryBegin() {
		dirty, running := s.state.Snapshot()
		switch {
		case running:
			sweepsTotal.WithLabelValues("busy").Inc()
		case !dirty:
			sweepsTotal.WithLabelValues("idle").Inc()
		}
		return
	}
	if _, err := s.run(ctx, doc); err != nil {
		s.log.Errorf("sweep of %q failed: %v", s.document, err)
	}
}

// RunNow marks the document dirty and sweeps it immediately.
func (s *Scheduler) RunNow(ctx context.Context) (*SweepReport, error) {
	doc, ok := s.docs.Get(s.document)
	if !ok {
		return nil, ErrDocumentNotFound
	}
	s.state.MarkDirty()
	if !s.state.TryBegin() {
		return nil, ErrSweepInProgress
	}
	return s.run(ctx, doc)
}

// run owns the state between a successful TryBegin and End.
func (s *Scheduler) run(ctx context.Context, doc *document.Doc) (report *SweepReport, err error) {
	start := time.Now()
	defer s.state.End()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panic: %v", r)
		}
		outcome := "failed"
		if err == nil && report != nil {
			outcome = report.Outcome()
		}
		sweepsTotal.WithLabelValues(outcome).Inc()
		sweepDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()
	return s.uc.Sweep(ctx, doc)
}
