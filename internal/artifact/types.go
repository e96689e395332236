// Package artifact checks the structural integrity of an installed version's
// packaged client archive before the launcher trusts it.
package artifact

import (
	"errors"
	"fmt"
)

// EntryPoint is the archive entry every launchable client must contain.
const EntryPoint = "net/minecraft/client/main/Main.class"

var (
	// ErrMissingArtifact is returned when the packaged archive is absent.
	ErrMissingArtifact = errors.New("artifact: archive missing")
	// ErrInvalidArtifact is returned when the archive lacks the entry point or
	// cannot be read as an archive at all.
	ErrInvalidArtifact = errors.New("artifact: archive invalid")
)

// State summarizes what the validator found on disk.
type State string

const (
	StateReady   State = "ready"
	StateMissing State = "missing"
	StateInvalid State = "invalid"
	StateError   State = "error"
)

// CheckResult captures the outcome of inspecting one archive.
type CheckResult struct {
	Path       string
	EntryPoint string
	State      State
	Entries    int
	Err        error
}

// Ready reports whether the archive can be launched.
func (r CheckResult) Ready() bool {
	return r.State == StateReady
}

// AsError converts a non-ready result into an error wrapping the matching
// sentinel. Ready results return nil.
func (r CheckResult) AsError() error {
	switch r.State {
	case StateReady:
		return nil
	case StateMissing:
		return fmt.Errorf("%w: %s", ErrMissingArtifact, r.Path)
	case StateInvalid:
		if r.Err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidArtifact, r.Path, r.Err)
		}
		return fmt.Errorf("%w: %s does not contain %s", ErrInvalidArtifact, r.Path, r.EntryPoint)
	default:
		if r.Err != nil {
			return fmt.Errorf("artifact: inspect %s: %w", r.Path, r.Err)
		}
		return fmt.Errorf("artifact: inspect %s failed", r.Path)
	}
}
