package projectsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/marginalia/internal/domain/document"
)

// DefaultSaveDebounce is the quiet period after the last edit before a save.
const DefaultSaveDebounce = 1500 * time.Millisecond

// ErrSessionStopped is returned by operations on a stopped session.
var ErrSessionStopped = errors.New("sync session stopped")

// Saver writes a snapshot to the store.
type Saver func(ctx context.Context, snap *document.Snapshot) (*document.SaveReport, error)

// Options configures a Session. Zero values use the package defaults.
type Options struct {
	PollInterval      time.Duration
	SuppressionWindow time.Duration
	SaveDebounce      time.Duration
	WriterID          string
	Clock             Clock
	Logger            *slog.Logger
	// OnRemoteUpdate fires once each time a remote change becomes pending.
	OnRemoteUpdate func(*document.Snapshot)
	// OnSaved fires after every debounced or flushed save that completes
	// while the session is running.
	OnSaved func(*document.SaveReport, error)
}

// Session owns the sync lifecycle of one open project: the polling monitor
// and a debounced saver. Edits are held as a draft and written after the
// debounce delay; the last edit wins.
type Session struct {
	projectID string
	load      Fetcher
	save      Saver
	opts      Options
	monitor   *Monitor

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool
	gen     uint64
	draft   *document.Snapshot
	timer   Timer
	saving  sync.Mutex

	writeMu        sync.Mutex
	lastLocalWrite time.Time
}

// NewSession creates a session for projectID. Nothing runs until Start.
func NewSession(projectID string, load Fetcher, save Saver, opts Options) *Session {
	if opts.SaveDebounce <= 0 {
		opts.SaveDebounce = DefaultSaveDebounce
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	s := &Session{projectID: projectID, load: load, save: save, opts: opts}
	s.monitor = NewMonitor(load, MonitorConfig{
		PollInterval:      opts.PollInterval,
		SuppressionWindow: opts.SuppressionWindow,
		WriterID:          opts.WriterID,
		Clock:             opts.Clock,
		Logger:            opts.Logger.With("project_id", projectID),
		OnRemoteUpdate:    opts.OnRemoteUpdate,
		LastLocalWrite:    s.LastLocalWrite,
	})
	return s
}

// ProjectID returns the project this session syncs.
func (s *Session) ProjectID() string { return s.projectID }

// Monitor exposes the session's polling monitor.
func (s *Session) Monitor() *Monitor { return s.monitor }

// Start loads the project, adopts it as the baseline and begins polling.
func (s *Session) Start(ctx context.Context) (*document.Snapshot, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrSessionStopped
	}
	if s.started {
		s.mu.Unlock()
		return nil, errors.New("sync session already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	runCtx := s.ctx
	s.mu.Unlock()

	snap, err := s.load(runCtx)
	if err != nil {
		s.Stop()
		return nil, fmt.Errorf("loading project: %w", err)
	}
	s.monitor.SetBaseline(snap)
	s.monitor.Start(runCtx)
	return snap, nil
}

// Stop cancels pending saves and polling. Results of operations already in
// flight are discarded.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.gen++
	s.draft = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.monitor.Stop()
}

// Edit records snap as the latest local state and (re)starts the debounce
// timer.
func (s *Session) Edit(snap *document.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || !s.started {
		return ErrSessionStopped
	}
	s.draft = snap.Clone()
	if s.timer != nil {
		s.timer.Stop()
	}
	gen := s.gen
	s.timer = s.opts.Clock.AfterFunc(s.opts.SaveDebounce, func() {
		s.flushDebounced(gen)
	})
	return nil
}

// Dirty reports whether an edit is waiting to be saved.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft != nil
}

// Flush saves the pending draft immediately. It returns a nil report when
// there is nothing to save.
func (s *Session) Flush(ctx context.Context) (*document.SaveReport, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrSessionStopped
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	gen := s.gen
	s.mu.Unlock()

	return s.saveDraft(ctx, gen)
}

func (s *Session) flushDebounced(gen uint64) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if _, err := s.saveDraft(ctx, gen); err != nil && !errors.Is(err, ErrSessionStopped) {
		s.opts.Logger.Error("debounced save failed", "project_id", s.projectID, "error", err)
	}
}

// saveDraft serializes saves so two cycles for the same project never
// interleave their orphan passes.
func (s *Session) saveDraft(ctx context.Context, gen uint64) (*document.SaveReport, error) {
	s.saving.Lock()
	defer s.saving.Unlock()

	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return nil, ErrSessionStopped
	}
	draft := s.draft
	s.draft = nil
	s.mu.Unlock()

	if draft == nil {
		return nil, nil
	}
	if s.opts.WriterID != "" {
		draft.Blob.Writer = s.opts.WriterID
	}

	s.markLocalWrite()
	report, err := s.save(ctx, draft)
	s.markLocalWrite()

	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return nil, ErrSessionStopped
	}
	if err != nil && s.draft == nil {
		// Keep the failed draft unless a newer edit superseded it.
		s.draft = draft
	}
	s.mu.Unlock()

	if err == nil {
		s.monitor.SetBaseline(draft)
	}
	if s.opts.OnSaved != nil {
		s.opts.OnSaved(report, err)
	}
	return report, err
}

func (s *Session) markLocalWrite() {
	now := s.opts.Clock.Now()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.lastLocalWrite = now
}

// LastLocalWrite reports when this session last wrote to the store.
func (s *Session) LastLocalWrite() time.Time {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.lastLocalWrite
}

// BecameVisible triggers an immediate out-of-cycle poll.
func (s *Session) BecameVisible() { s.monitor.BecameVisible() }

// Pending reports whether a remote change is waiting.
func (s *Session) Pending() bool { return s.monitor.Pending() }

// Reload adopts the pending remote snapshot, discarding any unsaved draft.
func (s *Session) Reload() (*document.Snapshot, bool) {
	snap, ok := s.monitor.Reload()
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	s.draft = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return snap, true
}

// State reports the monitor's lifecycle state.
func (s *Session) State() State { return s.monitor.State() }
