package projectsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/marginalia/internal/domain/document"
)

const (
	// DefaultPollInterval is how often the store is polled for remote changes.
	DefaultPollInterval = 5 * time.Second
	// DefaultSuppressionWindow is how long after a local write an observed
	// change is attributed to that write.
	DefaultSuppressionWindow = 2 * time.Second
)

// State is the monitor's lifecycle state.
type State int

const (
	StateIdle State = iota
	StatePolling
	StatePending
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StatePending:
		return "pending"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Fetcher loads the current store image of the project.
type Fetcher func(ctx context.Context) (*document.Snapshot, error)

// MonitorConfig configures a Monitor. Zero durations use the defaults.
type MonitorConfig struct {
	PollInterval      time.Duration
	SuppressionWindow time.Duration
	// WriterID identifies this client's writes in the session blob. A polled
	// change stamped by a different writer is never suppressed.
	WriterID string
	Clock    Clock
	Logger   *slog.Logger
	// OnRemoteUpdate fires once each time the monitor enters StatePending.
	OnRemoteUpdate func(*document.Snapshot)
	// LastLocalWrite reports when this client last wrote to the store.
	LastLocalWrite func() time.Time
}

// Monitor polls the store and surfaces remote changes without applying them.
type Monitor struct {
	fetch Fetcher
	cfg   MonitorConfig

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
	stopped   bool
	polling   bool
	gen       uint64
	timer     Timer
	baseline  string

	// baselineSeq advances whenever the baseline moves. A poll whose read
	// straddles a move is dropped.
	baselineSeq uint64

	pending   *document.Snapshot
	pendingFP string
}

// NewMonitor creates a monitor for fetch.
func NewMonitor(fetch Fetcher, cfg MonitorConfig) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.SuppressionWindow <= 0 {
		cfg.SuppressionWindow = DefaultSuppressionWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.LastLocalWrite == nil {
		cfg.LastLocalWrite = func() time.Time { return time.Time{} }
	}
	return &Monitor{fetch: fetch, cfg: cfg}
}

// SetBaseline records snap as the document this client currently holds.
func (m *Monitor) SetBaseline(snap *document.Snapshot) {
	if snap == nil {
		return
	}
	fp := snap.Fingerprint()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseline = fp
	m.baselineSeq++
}

// Start begins periodic polling. Calling Start twice, or after Stop, is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.scheduleLocked(m.cfg.PollInterval)
}

// Stop ends polling. Results of a poll in flight are discarded.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	m.gen++
	m.pending = nil
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancel != nil {
		m.cancel()
	}
}

// BecameVisible requests an out-of-cycle poll, as when the client returns to
// the foreground. The poll runs asynchronously.
func (m *Monitor) BecameVisible() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started || m.stopped {
		return
	}
	m.scheduleLocked(0)
}

// State reports the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.stopped:
		return StateStopped
	case m.pending != nil:
		return StatePending
	case m.polling:
		return StatePolling
	default:
		return StateIdle
	}
}

// Pending reports whether a remote change is waiting to be reloaded.
func (m *Monitor) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// Reload hands over the pending remote snapshot and adopts it as the
// baseline. It returns false when nothing is pending.
func (m *Monitor) Reload() (*document.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return nil, false
	}
	snap := m.pending
	m.baseline = m.pendingFP
	m.baselineSeq++
	m.pending, m.pendingFP = nil, ""
	return snap, true
}

// PollNow polls synchronously.
func (m *Monitor) PollNow(ctx context.Context) error {
	return m.poll(ctx)
}

func (m *Monitor) scheduleLocked(d time.Duration) {
	if m.timer != nil {
		m.timer.Stop()
	}
	ctx := m.ctx
	m.timer = m.cfg.Clock.AfterFunc(d, func() {
		if err := m.poll(ctx); err != nil {
			m.cfg.Logger.Warn("poll failed", "error", err)
		}
	})
}

func (m *Monitor) poll(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped || m.polling {
		m.mu.Unlock()
		return nil
	}
	m.polling = true
	gen, seq := m.gen, m.baselineSeq
	m.mu.Unlock()

	snap, err := m.fetch(ctx)

	m.mu.Lock()
	m.polling = false
	if m.stopped || gen != m.gen {
		m.mu.Unlock()
		return nil
	}
	if m.started {
		m.scheduleLocked(m.cfg.PollInterval)
	}
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("polling project: %w", err)
	}
	if seq != m.baselineSeq {
		// The image may predate a save that landed during the read.
		m.cfg.Logger.Debug("discarding poll that overlapped a baseline change", "project_id", snap.ProjectID)
		m.mu.Unlock()
		return nil
	}

	notify := m.observeLocked(snap)
	m.mu.Unlock()

	if notify != nil && m.cfg.OnRemoteUpdate != nil {
		m.cfg.OnRemoteUpdate(notify)
	}
	return nil
}

// observeLocked classifies a polled snapshot and returns it when the
// monitor has just entered StatePending.
func (m *Monitor) observeLocked(snap *document.Snapshot) *document.Snapshot {
	fp := snap.Fingerprint()

	if fp == m.baseline {
		// The store converged back to what we hold.
		m.pending, m.pendingFP = nil, ""
		return nil
	}
	if m.pending != nil && fp == m.pendingFP {
		return nil
	}

	if m.withinSuppressionWindow() && !m.foreignWriter(snap) {
		m.cfg.Logger.Debug("suppressing self echo", "project_id", snap.ProjectID)
		m.baseline = fp
		return nil
	}

	wasPending := m.pending != nil
	m.pending, m.pendingFP = snap, fp
	m.cfg.Logger.Info("remote change detected", "project_id", snap.ProjectID, "writer", snap.Blob.Writer)
	if wasPending {
		return nil
	}
	return snap
}

func (m *Monitor) withinSuppressionWindow() bool {
	last := m.cfg.LastLocalWrite()
	if last.IsZero() {
		return false
	}
	return m.cfg.Clock.Now().Sub(last) < m.cfg.SuppressionWindow
}

func (m *Monitor) foreignWriter(snap *document.Snapshot) bool {
	w := snap.Blob.Writer
	return w != "" && m.cfg.WriterID != "" && w != m.cfg.WriterID
}
