package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"testing"
)

// TestHelperProcess is not a real test; it is the child spawned by the
// tests below.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("BAZ_WANT_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Fprintln(os.Stdout, "hello from child")
	fmt.Fprint(os.Stderr, "partial line")
	code, _ := strconv.Atoi(os.Getenv("BAZ_HELPER_EXIT"))
	os.Exit(code)
}

func helperArgs() []string {
	return []string{os.Args[0], "-test.run=TestHelperProcess", "--", "--offline"}
}

func TestInvokeSucceeds(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	runner := NewRunner(WithEnv("BAZ_WANT_HELPER_PROCESS=1", "BAZ_HELPER_EXIT=0"), WithLogger(logger), WithDir(t.TempDir()))
	if err := runner.Invoke(context.Background(), helperArgs()); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	out := logs.String()
	if !strings.Contains(out, "hello from child") {
		t.Fatalf("stdout not streamed to log:\n%s", out)
	}
	if !strings.Contains(out, "partial line") {
		t.Fatalf("trailing stderr not flushed to log:\n%s", out)
	}
}

func TestInvokeReportsNonZeroExit(t *testing.T) {
	runner := NewRunner(WithEnv("BAZ_WANT_HELPER_PROCESS=1", "BAZ_HELPER_EXIT=3"))
	err := runner.Invoke(context.Background(), helperArgs())
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Code != 3 {
		t.Fatalf("exit code = %d, want 3", exitErr.Code)
	}
}

func TestInvokeReportsSpawnFailure(t *testing.T) {
	runner := NewRunner()
	err := runner.Invoke(context.Background(), []string{"/definitely/not/a/real/java", "--offline"})
	if err == nil {
		t.Fatalf("expected spawn failure")
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		t.Fatalf("spawn failure should not be an ExitError: %v", err)
	}
}

func TestInvokeRejectsEmptyCommand(t *testing.T) {
	if err := NewRunner().Invoke(context.Background(), nil); !errors.Is(err, ErrEmptyCommand) {
		t.Fatalf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestLineLoggerSplitsChunks(t *testing.T) {
	var logs bytes.Buffer
	ll := newLineLogger(slog.New(slog.NewTextHandler(&logs, nil)), "stdout")
	_, _ = ll.Write([]byte("one\ntw"))
	_, _ = ll.Write([]byte("o\r\nthree"))
	ll.Flush()
	out := logs.String()
	for _, want := range []string{"line=one", "line=two", "line=three"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}
