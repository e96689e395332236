package eventbridge

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kingrea/bazlauncher/internal/orchestrator"
)

// ProtocolVersion identifies the bridge contract version exposed via /health.
const ProtocolVersion = "1.0.0"

const resultSuccess = "success"

// ProgressSnapshot is the last installer update.
type ProgressSnapshot struct {
	Current int    `json:"current"`
	Max     int    `json:"max"`
	Label   string `json:"label"`
}

// OutcomeSnapshot summarizes the most recent finished launch.
type OutcomeSnapshot struct {
	VersionID  string    `json:"version_id"`
	Username   string    `json:"username"`
	Success    bool      `json:"success"`
	Code       string    `json:"code,omitempty"`
	Message    string    `json:"message,omitempty"`
	Installed  bool      `json:"installed"`
	DurationMS int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

// Snapshot is the /status payload.
type Snapshot struct {
	State       string            `json:"state"`
	Launches    int               `json:"launches"`
	Progress    *ProgressSnapshot `json:"progress,omitempty"`
	LastOutcome *OutcomeSnapshot  `json:"last_outcome,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Tracker folds orchestrator events into a snapshot and Prometheus metrics.
// Observe is safe to call from the launch goroutine while handlers read.
type Tracker struct {
	mu       sync.RWMutex
	snapshot Snapshot

	registry *prometheus.Registry
	running  prometheus.Gauge
	progress prometheus.Gauge
	launches *prometheus.CounterVec
	duration prometheus.Histogram
	installs prometheus.Counter
}

// NewTracker creates a tracker with its own metrics registry.
func NewTracker() *Tracker {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Tracker{
		snapshot: Snapshot{State: orchestrator.Idle.String()},
		registry: reg,
		running: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bazlauncher_launch_running",
			Help: "1 while a launch is in progress",
		}),
		progress: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bazlauncher_install_progress_ratio",
			Help: "Completion of the current installation (0-1)",
		}),
		launches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bazlauncher_launches_total",
			Help: "Finished launches by result code",
		}, []string{"result"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bazlauncher_launch_duration_seconds",
			Help:    "Wall time of finished launches",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		installs: factory.NewCounter(prometheus.CounterOpts{
			Name: "bazlauncher_installs_total",
			Help: "Launches that installed their version first",
		}),
	}
}

// Registry exposes the tracker's metrics registry.
func (t *Tracker) Registry() *prometheus.Registry {
	return t.registry
}

// Observe records one orchestrator event. It has the shape expected by
// orchestrator.WithObserver.
func (t *Tracker) Observe(ev orchestrator.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.UpdatedAt = ev.At.UTC()

	switch ev.Kind {
	case orchestrator.EventProgress:
		p := ev.Progress
		t.snapshot.Progress = &ProgressSnapshot{Current: p.Current, Max: p.Max, Label: p.Label}
		t.progress.Set(p.Fraction())
	case orchestrator.EventState:
		t.snapshot.State = ev.State.String()
		if ev.State == orchestrator.Running {
			t.running.Set(1)
			t.progress.Set(0)
			t.snapshot.Progress = nil
			return
		}
		t.running.Set(0)
		if ev.Outcome != nil {
			t.recordOutcome(*ev.Outcome)
		}
	}
}

func (t *Tracker) recordOutcome(out orchestrator.Outcome) {
	t.snapshot.Launches++
	snap := &OutcomeSnapshot{
		VersionID:  out.VersionID,
		Username:   out.Username,
		Success:    out.Success(),
		Installed:  out.Installed,
		DurationMS: out.Duration().Milliseconds(),
		FinishedAt: out.FinishedAt.UTC(),
	}
	result := resultSuccess
	if out.Err != nil {
		snap.Code = string(out.Code())
		snap.Message = out.Err.Error()
		result = snap.Code
		if result == "" {
			result = string(orchestrator.CodeInternal)
		}
	}
	t.snapshot.LastOutcome = snap
	t.launches.WithLabelValues(result).Inc()
	t.duration.Observe(out.Duration().Seconds())
	if out.Installed {
		t.installs.Inc()
	}
}

// Snapshot returns a copy of the current status.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := t.snapshot
	if snap.Progress != nil {
		p := *snap.Progress
		snap.Progress = &p
	}
	if snap.LastOutcome != nil {
		o := *snap.LastOutcome
		snap.LastOutcome = &o
	}
	return snap
}
