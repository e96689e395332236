package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/bazlauncher/internal/config"
	"github.com/kingrea/bazlauncher/internal/installer"
	"github.com/kingrea/bazlauncher/internal/orchestrator"
)

func TestSettingsFromConfigHonorsEnv(t *testing.T) {
	t.Setenv("BAZ_BRIDGE_PORT", "9001")
	t.Setenv("BAZ_BRIDGE_HOST", "0.0.0.0")
	t.Setenv("BAZ_BRIDGE_ENABLED", "true")
	cfg, err := config.Load(t.TempDir(), "")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	settings := SettingsFromConfig(cfg)
	if settings.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", settings.Port)
	}
	if settings.Host != "0.0.0.0" {
		t.Fatalf("expected host override, got %s", settings.Host)
	}
	if !settings.Enabled {
		t.Fatalf("expected enabled=true from env override")
	}
}

func TestSettingsFromNilConfig(t *testing.T) {
	settings := SettingsFromConfig(nil)
	if settings.Enabled {
		t.Fatalf("bridge must default to disabled")
	}
	if settings.Address() != "127.0.0.1:8765" {
		t.Fatalf("address = %s", settings.Address())
	}
}

func TestStartDisabled(t *testing.T) {
	srv := NewServer(Settings{})
	if err := srv.Start(context.Background()); !errors.Is(err, ErrServerDisabled) {
		t.Fatalf("expected ErrServerDisabled, got %v", err)
	}
}

func TestTrackerFollowsLaunch(t *testing.T) {
	tracker := NewTracker()
	start := time.Unix(1730000000, 0).UTC()
	tracker.Observe(orchestrator.Event{Kind: orchestrator.EventState, State: orchestrator.Running, At: start})
	tracker.Observe(orchestrator.Event{
		Kind:     orchestrator.EventProgress,
		State:    orchestrator.Running,
		Progress: installer.Progress{Current: 3, Max: 4, Label: "Downloaded client.jar"},
		At:       start.Add(time.Second),
	})

	snap := tracker.Snapshot()
	if snap.State != "running" || snap.Progress == nil || snap.Progress.Current != 3 {
		t.Fatalf("unexpected running snapshot: %+v", snap)
	}

	outcome := &orchestrator.Outcome{
		VersionID:  "1.20.1",
		Username:   "steve",
		Installed:  true,
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
	}
	tracker.Observe(orchestrator.Event{Kind: orchestrator.EventState, State: orchestrator.Idle, Outcome: outcome, At: outcome.FinishedAt})

	snap = tracker.Snapshot()
	if snap.State != "idle" || snap.Launches != 1 {
		t.Fatalf("unexpected idle snapshot: %+v", snap)
	}
	if snap.LastOutcome == nil || !snap.LastOutcome.Success || snap.LastOutcome.DurationMS != 2000 {
		t.Fatalf("unexpected outcome: %+v", snap.LastOutcome)
	}
}

func TestServerReportsStatusAndMetrics(t *testing.T) {
	t.Parallel()
	fixed := time.Unix(1730000000, 0).UTC()
	settings := Settings{Enabled: true, Host: "127.0.0.1", Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second}
	srv := NewServer(settings, WithClock(func() time.Time { return fixed }))
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	if srv.Status() != StatusReady {
		t.Fatalf("status = %s", srv.Status())
	}

	failed := &orchestrator.Outcome{
		VersionID:  "1.20.1",
		Username:   "steve",
		Err:        &orchestrator.LaunchError{Code: orchestrator.CodeProcess, Message: "game process failed"},
		StartedAt:  fixed,
		FinishedAt: fixed.Add(time.Second),
	}
	srv.Tracker().Observe(orchestrator.Event{Kind: orchestrator.EventState, State: orchestrator.Running, At: fixed})
	srv.Tracker().Observe(orchestrator.Event{Kind: orchestrator.EventState, State: orchestrator.Idle, Outcome: failed, At: fixed})

	base := srv.BaseURL()
	var health healthResponse
	getJSON(t, base+"/health", &health)
	if health.Status != string(StatusReady) || health.Version != ProtocolVersion {
		t.Fatalf("unexpected health: %+v", health)
	}

	var snap Snapshot
	getJSON(t, base+"/status", &snap)
	if snap.LastOutcome == nil || snap.LastOutcome.Code != "PROCESS_ERROR" || snap.LastOutcome.Success {
		t.Fatalf("unexpected status: %+v", snap)
	}

	resp, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `bazlauncher_launches_total{result="PROCESS_ERROR"} 1`) {
		t.Fatalf("metrics missing launch counter:\n%s", body)
	}

	resp, err = http.Post(base+"/status", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("post status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}
