// Package orchestrator sequences a single game launch: it prepares the install
// root, installs the version when needed, derives the session, validates the
// packaged archive and runs the game, reporting every step as an ordered
// stream of events.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/bazlauncher/internal/artifact"
	"github.com/kingrea/bazlauncher/internal/command"
	"github.com/kingrea/bazlauncher/internal/gamedir"
	"github.com/kingrea/bazlauncher/internal/installer"
	"github.com/kingrea/bazlauncher/internal/logging"
	"github.com/kingrea/bazlauncher/internal/process"
	"github.com/kingrea/bazlauncher/internal/session"
)

// eventBuffer bounds how far the launch goroutine may run ahead of the reader.
const eventBuffer = 64

// State is the coarse launch state shown to users.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// EventKind distinguishes state transitions from installer progress.
type EventKind int

const (
	EventState EventKind = iota
	EventProgress
)

// Event is one element of a launch's ordered event stream.
type Event struct {
	Kind     EventKind
	State    State
	Progress installer.Progress
	// Outcome is set on the final Idle event only.
	Outcome *Outcome
	At      time.Time
}

// LaunchRequest describes one launch. InstallDir travels with the request;
// the orchestrator holds no shared install path.
type LaunchRequest struct {
	VersionID  string
	Username   string
	InstallDir string
}

// Outcome summarizes a finished launch. Err is nil on success and a
// *LaunchError otherwise.
type Outcome struct {
	VersionID  string
	Username   string
	SessionID  uuid.UUID
	Args       []string
	Installed  bool
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Success reports whether the game ran and exited cleanly.
func (o Outcome) Success() bool {
	return o.Err == nil
}

// Code returns the failure code, or "" on success.
func (o Outcome) Code() ErrorCode {
	return CodeOf(o.Err)
}

// Duration is the wall time of the launch.
func (o Outcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// Installer installs a version into root, reporting progress in order.
type Installer interface {
	Install(ctx context.Context, versionID, root string, progress installer.ProgressFunc) error
}

// Validator checks that an installed version can be launched.
type Validator interface {
	Validate(versionDir, versionID string) error
}

// ProfileLoader resolves launch metadata for an installed version.
type ProfileLoader func(root, versionID string) (command.Profile, error)

// Orchestrator runs launches one at a time.
type Orchestrator struct {
	installer Installer
	invoker   process.Invoker
	runnerOps []process.Option
	validator Validator
	names     session.NameSource
	profiles  ProfileLoader
	settings  command.Settings
	observer  func(Event)
	logger    *slog.Logger
	now       func() time.Time

	busy atomic.Bool
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithInstaller overrides the version installer.
func WithInstaller(inst Installer) Option {
	return func(o *Orchestrator) {
		if inst != nil {
			o.installer = inst
		}
	}
}

// WithInvoker overrides the process invoker. Without one, each launch runs
// the game through a process.Runner rooted at the install directory.
func WithInvoker(inv process.Invoker) Option {
	return func(o *Orchestrator) {
		o.invoker = inv
	}
}

// WithRunnerOptions adds options to the default per-launch process.Runner,
// for example process.WithOutput to mirror game output elsewhere. They are
// ignored when WithInvoker is set.
func WithRunnerOptions(opts ...process.Option) Option {
	return func(o *Orchestrator) {
		o.runnerOps = append(o.runnerOps, opts...)
	}
}

// WithValidator overrides the artifact validator.
func WithValidator(v Validator) Option {
	return func(o *Orchestrator) {
		if v != nil {
			o.validator = v
		}
	}
}

// WithNames overrides the generator used for blank usernames.
func WithNames(names session.NameSource) Option {
	return func(o *Orchestrator) {
		if names != nil {
			o.names = names
		}
	}
}

// WithProfileLoader overrides how launch profiles are resolved.
func WithProfileLoader(load ProfileLoader) Option {
	return func(o *Orchestrator) {
		if load != nil {
			o.profiles = load
		}
	}
}

// WithCommandSettings sets the Java executable and JVM arguments.
func WithCommandSettings(settings command.Settings) Option {
	return func(o *Orchestrator) {
		o.settings = settings
	}
}

// WithObserver registers a callback that sees every event before the caller
// does. It runs on the launch goroutine and must not block. A panic in the
// observer is logged and does not interrupt the launch.
func WithObserver(fn func(Event)) Option {
	return func(o *Orchestrator) {
		o.observer = fn
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source used for event and outcome stamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New builds an Orchestrator with production collaborators.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		validator: artifact.NewValidator(),
		names:     session.NewGenerator(nil),
		profiles: func(root, versionID string) (command.Profile, error) {
			return installer.LoadProfile(root, versionID, "")
		},
		logger: logging.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.installer == nil {
		o.installer = installer.New(installer.WithLogger(o.logger))
	}
	return o
}

// Busy reports whether a launch is in flight.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// Launch starts req on a new goroutine and returns its event stream. The
// stream opens with a Running event, relays installer progress, ends with an
// Idle event carrying the Outcome and is then closed. Callers must drain it.
// A launch requested while another is running fails with ErrBusy.
func (o *Orchestrator) Launch(ctx context.Context, req LaunchRequest) (<-chan Event, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	events := make(chan Event, eventBuffer)
	go func() {
		defer close(events)
		o.run(ctx, req, func(ev Event) { events <- ev })
	}()
	return events, nil
}

// Run performs req on the calling goroutine, passing each event to sink, and
// returns the final Outcome. A nil sink discards events.
func (o *Orchestrator) Run(ctx context.Context, req LaunchRequest, sink func(Event)) Outcome {
	if !o.busy.CompareAndSwap(false, true) {
		now := o.now()
		return Outcome{VersionID: req.VersionID, Username: req.Username, Err: ErrBusy, StartedAt: now, FinishedAt: now}
	}
	return o.run(ctx, req, sink)
}

// run expects the busy guard to be held. The observer sees the final Idle
// event while the guard is still held; the guard is then released before the
// sink sees it, so a reader reacting to Idle can launch again.
func (o *Orchestrator) run(ctx context.Context, req LaunchRequest, sink func(Event)) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	outcome := Outcome{
		VersionID: strings.TrimSpace(req.VersionID),
		Username:  strings.TrimSpace(req.Username),
		StartedAt: o.now(),
	}
	logger := o.logger.With("version", outcome.VersionID, "dir", req.InstallDir)

	notify := func(ev Event) {
		if o.observer == nil {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				logger.Error("event observer panicked", "panic", r)
			}
		}()
		o.observer(ev)
	}
	emit := func(ev Event) {
		ev.At = o.now()
		notify(ev)
		if sink != nil {
			sink(ev)
		}
	}

	logger.Info("launch started")
	emit(Event{Kind: EventState, State: Running})

	if err := o.execute(ctx, req, &outcome, emit, logger); err != nil {
		outcome.Err = err
	}
	outcome.FinishedAt = o.now()
	if outcome.Err != nil {
		logger.Error("launch failed", "code", outcome.Code(), "error", outcome.Err, "elapsed", outcome.Duration())
	} else {
		logger.Info("launch finished", "username", outcome.Username, "elapsed", outcome.Duration())
	}

	final := outcome
	idle := Event{Kind: EventState, State: Idle, Outcome: &final, At: o.now()}
	notify(idle)
	o.busy.Store(false)
	if sink != nil {
		sink(idle)
	}
	return outcome
}

func (o *Orchestrator) execute(ctx context.Context, req LaunchRequest, out *Outcome, emit func(Event), logger *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("launch panicked", "panic", r, "stack", string(debug.Stack()))
			err = newError(CodeInternal, "launch aborted unexpectedly", fmt.Errorf("panic: %v", r))
		}
	}()

	versionID := out.VersionID
	root := strings.TrimSpace(req.InstallDir)
	if err := gamedir.Ensure(root); err != nil {
		return newError(CodeDirectory, "install directory is not usable", err).With("dir", root)
	}
	if versionID == "" {
		return newError(CodeInstall, "no version selected", nil)
	}

	installed, err := gamedir.VersionInstalled(root, versionID)
	if err != nil {
		return newError(CodeDirectory, "cannot inspect install directory", err).With("dir", root)
	}
	if !installed {
		logger.Info("installing version")
		relay := func(p installer.Progress) {
			emit(Event{Kind: EventProgress, State: Running, Progress: p})
		}
		if err := o.installer.Install(ctx, versionID, root, relay); err != nil {
			return newError(CodeInstall, fmt.Sprintf("installing %s failed", versionID), err).With("version", versionID)
		}
		out.Installed = true
	}

	opts, err := session.Derive(out.Username, o.names)
	if err != nil {
		return newError(CodeInternal, "cannot derive session", err)
	}
	out.Username = opts.Username
	out.SessionID = opts.SessionID

	profile, err := o.profiles(root, versionID)
	if err != nil {
		logger.Warn("using default launch profile", "error", err)
		profile = command.DefaultProfile(root, versionID)
	}
	out.Args = command.Build(versionID, root, opts, profile, o.settings)

	if err := o.validator.Validate(gamedir.VersionDir(root, versionID), versionID); err != nil {
		return artifactError(versionID, gamedir.ArchivePath(root, versionID), err)
	}

	invoker := o.invoker
	if invoker == nil {
		runnerOpts := append([]process.Option{process.WithDir(root), process.WithLogger(o.logger)}, o.runnerOps...)
		invoker = process.NewRunner(runnerOpts...)
	}
	if err := invoker.Invoke(ctx, out.Args); err != nil {
		perr := newError(CodeProcess, "game process failed", err).With("executable", out.Args[0])
		var exitErr *process.ExitError
		if errors.As(err, &exitErr) {
			perr.With("exit_code", exitErr.Code)
		}
		return perr
	}
	return nil
}

func artifactError(versionID, archive string, err error) *LaunchError {
	switch {
	case errors.Is(err, artifact.ErrMissingArtifact):
		return newError(CodeMissingArtifact, fmt.Sprintf("%s is not installed correctly: archive missing", versionID), err).With("archive", archive)
	case errors.Is(err, artifact.ErrInvalidArtifact):
		return newError(CodeInvalidArtifact, fmt.Sprintf("%s archive has no game entry point", versionID), err).With("archive", archive)
	default:
		return newError(CodeInvalidArtifact, fmt.Sprintf("%s archive could not be checked", versionID), err).With("archive", archive)
	}
}
