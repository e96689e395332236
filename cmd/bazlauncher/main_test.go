package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kingrea/bazlauncher/internal/config"
	"github.com/kingrea/bazlauncher/internal/installer"
	"github.com/kingrea/bazlauncher/internal/orchestrator"
)

func manifestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"latest": map[string]any{"release": "1.20.1", "snapshot": "24w01a"},
			"versions": []map[string]any{
				{"id": "1.19.4", "type": "release", "url": "/v/1.19.4.json", "releaseTime": "2023-03-14T00:00:00Z"},
				{"id": "24w01a", "type": "snapshot", "url": "/v/24w01a.json", "releaseTime": "2024-01-03T00:00:00Z"},
				{"id": "1.20.1", "type": "release", "url": "/v/1.20.1.json", "releaseTime": "2023-06-12T00:00:00Z"},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestApplyFlagsOverridesWithoutPersisting(t *testing.T) {
	state := t.TempDir()
	cfg, err := config.Load(state, "")
	require.NoError(t, err)

	target := filepath.Join(state, "elsewhere")
	applyFlags(cfg, options{dir: target, username: " alex ", snapshots: true})

	require.Equal(t, target, cfg.InstallDir())
	require.Equal(t, "alex", cfg.Launcher.LastUsername)
	require.True(t, cfg.Launcher.ShowSnapshots)

	reloaded, err := config.Load(state, cfg.Path())
	require.NoError(t, err)
	require.Equal(t, state, reloaded.InstallDir())
	require.Empty(t, reloaded.Launcher.LastUsername)
}

func TestListVersionsFiltersSnapshots(t *testing.T) {
	srv := manifestServer(t)
	inst := installer.New(installer.WithManifestURL(srv.URL))

	var out bytes.Buffer
	require.NoError(t, listVersions(context.Background(), &out, inst, false))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "1.20.1"))
	require.True(t, strings.HasPrefix(lines[1], "1.19.4"))

	out.Reset()
	require.NoError(t, listVersions(context.Background(), &out, inst, true))
	require.Contains(t, out.String(), "24w01a")
}

func TestLatestReleaseSkipsSnapshots(t *testing.T) {
	srv := manifestServer(t)
	inst := installer.New(installer.WithManifestURL(srv.URL))

	id, err := latestRelease(context.Background(), inst)
	require.NoError(t, err)
	require.Equal(t, "1.20.1", id)
}

func TestRunRejectsPositionalArguments(t *testing.T) {
	err := run([]string{"play"})
	require.EqualError(t, err, "unexpected argument: play")
}

func TestRunHeadlessReportsMissingArtifact(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	root := filepath.Join(home, "game")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "versions", "1.20.1"), 0o755))

	start := time.Now()
	err := run([]string{"--headless", "--version", "1.20.1", "--dir", root, "--username", "steve"})
	require.Error(t, err)

	var exitErr *exitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 4, exitErr.ExitCode())
	require.Equal(t, orchestrator.CodeMissingArtifact, orchestrator.CodeOf(err))
	require.Less(t, time.Since(start), 10*time.Second)

	journal, readErr := os.ReadFile(filepath.Join(home, ".bazlauncher", "logs", "journal.log"))
	require.NoError(t, readErr)
	require.Contains(t, string(journal), "1.20.1 failed")
}

func TestExitCodes(t *testing.T) {
	cases := map[orchestrator.ErrorCode]int{
		orchestrator.CodeDirectory:       2,
		orchestrator.CodeInstall:         3,
		orchestrator.CodeMissingArtifact: 4,
		orchestrator.CodeInvalidArtifact: 4,
		orchestrator.CodeProcess:         5,
		orchestrator.CodeBusy:            6,
		orchestrator.CodeInternal:        1,
	}
	for code, want := range cases {
		require.Equal(t, want, exitCodeFor(code), string(code))
	}
}
