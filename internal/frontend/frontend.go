package frontend

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"udp-relay/internal/metrics"
	"udp-relay/internal/role"
)

const triggerQueue = 16

// LineSink receives log lines produced by a tick
type LineSink interface {
	WriteLines(lines []string)
}

// Snapshot is the view state published after every tick
type Snapshot struct {
	Instance  string              `json:"instance"`
	Role      string              `json:"role"`
	LocalAddr string              `json:"local_addr"`
	State     string              `json:"state"`
	Peer      string              `json:"peer,omitempty"`
	Log       []string            `json:"log"`
	RoundTrip *metrics.RTTSummary `json:"round_trip,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Options configures a Frontend
type Options struct {
	Tick      time.Duration
	Instance  string
	LocalAddr string
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Frontend owns the poll cadence of one role
type Frontend struct {
	role     role.Role
	opts     Options
	logger   *slog.Logger
	triggers chan struct{}

	sinksMu sync.RWMutex
	sinks   []LineSink

	snapMu   sync.RWMutex
	snapshot Snapshot
}

// New creates a front end for r
func New(r role.Role, opts Options) *Frontend {
	if opts.Tick <= 0 {
		opts.Tick = 16 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	f := &Frontend{
		role:     r,
		opts:     opts,
		logger:   logger,
		triggers: make(chan struct{}, triggerQueue),
	}
	f.publish()
	return f
}

// AddSink registers a view for new log lines
func (f *Frontend) AddSink(s LineSink) {
	f.sinksMu.Lock()
	f.sinks = append(f.sinks, s)
	f.sinksMu.Unlock()
}

// RemoveSink unregisters a view
func (f *Frontend) RemoveSink(s LineSink) {
	f.sinksMu.Lock()
	defer f.sinksMu.Unlock()
	for i, existing := range f.sinks {
		if existing == s {
			f.sinks = append(f.sinks[:i], f.sinks[i+1:]...)
			return
		}
	}
}

// RequestTrigger asks the loop to run the role's action on its next
// iteration. It never blocks; requests beyond the queue size are dropped.
func (f *Frontend) RequestTrigger() bool {
	select {
	case f.triggers <- struct{}{}:
		return true
	default:
		f.logger.Warn("Trigger queue full, dropping request")
		return false
	}
}

// Snapshot returns the state published by the last tick
func (f *Frontend) Snapshot() Snapshot {
	f.snapMu.RLock()
	defer f.snapMu.RUnlock()
	return f.snapshot
}

// Run polls the role once per tick until ctx is done
func (f *Frontend) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.opts.Tick)
	defer ticker.Stop()

	f.logger.Info("Front end running",
		slog.String("role", f.role.Name()),
		slog.Duration("tick", f.opts.Tick),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-f.triggers:
			f.emit(f.role.Trigger())
		case <-ticker.C:
			f.Tick()
		}
	}
}

// Tick runs one poll. Run calls it on every tick; tests may call it
// directly instead of running the loop.
func (f *Frontend) Tick() {
	f.emit(f.role.Poll())
}

func (f *Frontend) emit(lines []string) {
	f.publish()
	if len(lines) == 0 {
		return
	}

	f.sinksMu.RLock()
	sinks := append([]LineSink(nil), f.sinks...)
	f.sinksMu.RUnlock()

	for _, s := range sinks {
		s.WriteLines(lines)
	}
}

// publish refreshes the snapshot; only called from the loop goroutine
func (f *Frontend) publish() {
	snap := Snapshot{
		Instance:  f.opts.Instance,
		Role:      f.role.Name(),
		LocalAddr: f.opts.LocalAddr,
		State:     f.role.State().String(),
		Log:       f.role.Log(),
		UpdatedAt: time.Now(),
	}
	if p := f.role.Peer(); p != nil {
		snap.Peer = p.String()
	}
	if f.opts.Metrics != nil {
		rtt := f.opts.Metrics.RoundTripStats()
		snap.RoundTrip = &rtt
	}

	f.snapMu.Lock()
	f.snapshot = snap
	f.snapMu.Unlock()
}
