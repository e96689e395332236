// cmd/bazlauncher/main.go
//
// Entry point for the launcher. Without flags it opens the terminal UI;
// --headless launches a version straight from the command line and --list
// prints the version catalog.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/kingrea/bazlauncher/internal/command"
	"github.com/kingrea/bazlauncher/internal/config"
	"github.com/kingrea/bazlauncher/internal/eventbridge"
	"github.com/kingrea/bazlauncher/internal/installer"
	"github.com/kingrea/bazlauncher/internal/logbook"
	"github.com/kingrea/bazlauncher/internal/logging"
	"github.com/kingrea/bazlauncher/internal/orchestrator"
	"github.com/kingrea/bazlauncher/internal/process"
	"github.com/kingrea/bazlauncher/internal/tui"
)

// exitError carries a process exit code out of run.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}

type options struct {
	dir        string
	version    string
	username   string
	configPath string
	headless   bool
	list       bool
	snapshots  bool
}

func run(args []string) error {
	var opts options
	flagSet := pflag.NewFlagSet("bazlauncher", pflag.ContinueOnError)
	flagSet.StringVar(&opts.dir, "dir", "", "install directory (default from config, ~/.bazlauncher)")
	flagSet.StringVar(&opts.version, "version", "", "version to launch or preselect")
	flagSet.StringVarP(&opts.username, "username", "u", "", "player name (blank for a random one)")
	flagSet.StringVar(&opts.configPath, "config", "", "path to config.yaml")
	flagSet.BoolVar(&opts.headless, "headless", false, "launch without the terminal UI")
	flagSet.BoolVar(&opts.list, "list", false, "print available versions and exit")
	flagSet.BoolVar(&opts.snapshots, "snapshots", false, "include snapshot versions")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	stateDir, err := config.DefaultStateDir()
	if err != nil {
		return err
	}
	cfg, err := config.Load(stateDir, opts.configPath)
	if err != nil {
		return err
	}
	applyFlags(cfg, opts)

	logger, err := logging.New(cfg.StateDir, logging.ParseLevel(cfg.Launcher.LogLevel))
	if err != nil {
		return err
	}
	defer logger.Close()
	journal, err := logbook.New(filepath.Join(cfg.LogsDir(), logbook.FileName))
	if err != nil {
		return err
	}

	ctx := context.Background()
	inst := installer.New(
		installer.WithManifestURL(cfg.Launcher.ManifestURL),
		installer.WithConcurrency(cfg.Launcher.DownloadConcurrency),
		installer.WithLogger(logger.With("component", "installer")),
	)

	if opts.list {
		return listVersions(ctx, os.Stdout, inst, cfg.Launcher.ShowSnapshots)
	}

	tracker := eventbridge.NewTracker()
	bridge := eventbridge.NewServer(eventbridge.SettingsFromConfig(cfg),
		eventbridge.WithTracker(tracker),
		eventbridge.WithLogger(logger.With("component", "eventbridge")),
	)
	if err := bridge.Start(ctx); err != nil && !errors.Is(err, eventbridge.ErrServerDisabled) {
		logger.Warn("status bridge unavailable", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = bridge.Shutdown(shutdownCtx)
	}()

	orch := orchestrator.New(
		orchestrator.WithInstaller(inst),
		orchestrator.WithLogger(logger.With("component", "orchestrator")),
		orchestrator.WithCommandSettings(command.Settings{
			JavaPath: cfg.Launcher.JavaPath,
			JVMArgs:  cfg.Launcher.JVMArgs,
		}),
		orchestrator.WithRunnerOptions(process.WithOutput(journal, nil)),
		orchestrator.WithObserver(tracker.Observe),
	)
	defer journal.Flush()

	if opts.headless {
		return launchHeadless(ctx, orch, inst, cfg, journal, opts)
	}

	app, err := tui.NewApp(cfg, orch, inst,
		tui.WithLogbook(journal),
		tui.WithContext(ctx),
		tui.WithInitialVersion(opts.version),
	)
	if err != nil {
		return err
	}
	program := tea.NewProgram(app, tea.WithAltScreen())
	_, err = program.Run()
	return err
}

// applyFlags layers command-line values over the loaded config for this run
// only; nothing here is persisted.
func applyFlags(cfg *config.Config, opts options) {
	if dir := strings.TrimSpace(opts.dir); dir != "" {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		cfg.Launcher.InstallDir = dir
	}
	if opts.snapshots {
		cfg.Launcher.ShowSnapshots = true
	}
	if name := strings.TrimSpace(opts.username); name != "" {
		cfg.Launcher.LastUsername = name
	}
}

func listVersions(ctx context.Context, w io.Writer, catalog *installer.Installer, snapshots bool) error {
	versions, err := catalog.ListAvailableVersions(ctx)
	if err != nil {
		return err
	}
	for _, v := range versions {
		if !snapshots && v.Type != "release" {
			continue
		}
		fmt.Fprintf(w, "%-24s %-10s %s\n", v.ID, v.Type, v.ReleaseTime.Format("2006-01-02"))
	}
	return nil
}

func launchHeadless(ctx context.Context, orch *orchestrator.Orchestrator, catalog *installer.Installer, cfg *config.Config, journal *logbook.Logbook, opts options) error {
	versionID := strings.TrimSpace(opts.version)
	if versionID == "" {
		versionID = cfg.Launcher.DefaultVersion
	}
	if versionID == "" {
		latest, err := latestRelease(ctx, catalog)
		if err != nil {
			return err
		}
		versionID = latest
	}
	req := orchestrator.LaunchRequest{
		VersionID:  versionID,
		Username:   cfg.Launcher.LastUsername,
		InstallDir: cfg.InstallDir(),
	}
	journal.Info("Launching %s into %s", req.VersionID, req.InstallDir)
	last := ""
	outcome := orch.Run(ctx, req, func(ev orchestrator.Event) {
		if ev.Kind != orchestrator.EventProgress {
			return
		}
		line := ev.Progress.String()
		if line == last {
			return
		}
		last = line
		fmt.Fprintln(os.Stderr, line)
	})
	if outcome.Err != nil {
		journal.Error("%s failed: %v", outcome.VersionID, outcome.Err)
		return &exitError{code: exitCodeFor(outcome.Code()), err: outcome.Err}
	}
	journal.Info("%s played as %s for %s", outcome.VersionID, outcome.Username, outcome.Duration().Round(time.Second))
	fmt.Fprintf(os.Stderr, "%s exited normally (player %s)\n", outcome.VersionID, outcome.Username)
	return nil
}

func latestRelease(ctx context.Context, catalog *installer.Installer) (string, error) {
	versions, err := catalog.ListAvailableVersions(ctx)
	if err != nil {
		return "", err
	}
	for _, v := range versions {
		if v.Type == "release" {
			return v.ID, nil
		}
	}
	return "", errors.New("no release versions available")
}

// exitCodeFor gives scripts a distinct status per failing step.
func exitCodeFor(code orchestrator.ErrorCode) int {
	switch code {
	case orchestrator.CodeDirectory:
		return 2
	case orchestrator.CodeInstall:
		return 3
	case orchestrator.CodeMissingArtifact, orchestrator.CodeInvalidArtifact:
		return 4
	case orchestrator.CodeProcess:
		return 5
	case orchestrator.CodeBusy:
		return 6
	default:
		return 1
	}
}
