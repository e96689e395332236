package orchestrator

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode identifies which launch step failed.
type ErrorCode string

const (
	CodeDirectory       ErrorCode = "DIRECTORY_ERROR"
	CodeInstall         ErrorCode = "INSTALL_ERROR"
	CodeMissingArtifact ErrorCode = "MISSING_ARTIFACT"
	CodeInvalidArtifact ErrorCode = "INVALID_ARTIFACT"
	CodeProcess         ErrorCode = "PROCESS_ERROR"
	CodeBusy            ErrorCode = "BUSY"
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// LaunchError is the typed failure carried by a launch Outcome.
type LaunchError struct {
	// Code identifies the failing step.
	Code ErrorCode

	// Message is a short human readable summary.
	Message string

	// Context holds step specific details such as paths or exit codes.
	Context map[string]any

	// Cause is the underlying error, if any.
	Cause error
}

// ErrBusy is returned when a launch is requested while another is running.
var ErrBusy = &LaunchError{Code: CodeBusy, Message: "a launch is already in progress"}

func newError(code ErrorCode, message string, cause error) *LaunchError {
	return &LaunchError{Code: code, Message: message, Cause: cause}
}

// With attaches a context value and returns the error for chaining.
func (e *LaunchError) With(key string, value any) *LaunchError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func (e *LaunchError) Error() string {
	parts := []string{fmt.Sprintf("[%s] %s", e.Code, e.Message)}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, "context: "+strings.Join(pairs, ", "))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}
	return strings.Join(parts, "; ")
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *LaunchError) Unwrap() error {
	return e.Cause
}

// Is matches another LaunchError by code, so errors.Is(err, ErrBusy) holds
// for any busy rejection.
func (e *LaunchError) Is(target error) bool {
	var other *LaunchError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// CodeOf returns the code of the first LaunchError in err's chain, or "" when
// err is nil or carries no code.
func CodeOf(err error) ErrorCode {
	var le *LaunchError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
