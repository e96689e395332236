// Package process runs the built game command and waits for it to exit.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/kingrea/bazlauncher/internal/logging"
)

// ErrEmptyCommand is returned when Invoke receives no arguments.
var ErrEmptyCommand = errors.New("process: empty command")

// ExitError reports a process that started but exited unsuccessfully.
type ExitError struct {
	Executable string
	Code       int
	Err        error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("process: %s exited with code %d", e.Executable, e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Invoker runs a command to completion.
type Invoker interface {
	Invoke(ctx context.Context, args []string) error
}

// Runner spawns commands with os/exec and streams their output to a logger.
type Runner struct {
	dir    string
	env    []string
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

// Option customizes a Runner.
type Option func(*Runner)

// WithDir sets the working directory of spawned processes.
func WithDir(dir string) Option {
	return func(r *Runner) {
		r.dir = dir
	}
}

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func WithEnv(env ...string) Option {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

// WithLogger streams process output and lifecycle lines to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithOutput tees raw process output to the given writers as well.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// NewRunner builds a Runner. Without options output is discarded.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{logger: logging.Discard()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Invoke starts args[0] with the remaining arguments and blocks until it
// exits. A spawn failure or a non-zero exit is returned as an error.
func (r *Runner) Invoke(ctx context.Context, args []string) error {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return ErrEmptyCommand
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.dir
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}
	stdout := newLineLogger(r.logger, "stdout")
	stderr := newLineLogger(r.logger, "stderr")
	cmd.Stdout = tee(stdout, r.stdout)
	cmd.Stderr = tee(stderr, r.stderr)

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("process: start %s: %w", args[0], err)
	}
	r.logger.Info("process started", "executable", args[0], "pid", cmd.Process.Pid, "args", len(args)-1)
	err := cmd.Wait()
	stdout.Flush()
	stderr.Flush()
	elapsed := time.Since(started).Round(time.Millisecond)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			r.logger.Warn("process exited", "executable", args[0], "code", exitErr.ExitCode(), "elapsed", elapsed)
			return &ExitError{Executable: args[0], Code: exitErr.ExitCode(), Err: err}
		}
		return fmt.Errorf("process: wait %s: %w", args[0], err)
	}
	r.logger.Info("process exited", "executable", args[0], "code", 0, "elapsed", elapsed)
	return nil
}

func tee(primary io.Writer, extra io.Writer) io.Writer {
	if extra == nil {
		return primary
	}
	return io.MultiWriter(primary, extra)
}

// lineLogger turns a byte stream into one log record per line.
type lineLogger struct {
	mu     sync.Mutex
	logger *slog.Logger
	stream string
	buf    bytes.Buffer
}

func newLineLogger(logger *slog.Logger, stream string) *lineLogger {
	return &lineLogger{logger: logger, stream: stream}
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Write(p)
	for {
		idx := bytes.IndexByte(l.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := string(bytes.TrimRight(l.buf.Next(idx+1), "\r\n"))
		l.emit(line)
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (l *lineLogger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buf.Len() == 0 {
		return
	}
	l.emit(strings.TrimRight(l.buf.String(), "\r\n"))
	l.buf.Reset()
}

func (l *lineLogger) emit(line string) {
	if line == "" {
		return
	}
	l.logger.Info("game output", "stream", l.stream, "line", line)
}
