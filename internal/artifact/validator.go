package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/kingrea/bazlauncher/internal/gamedir"
)

// Validator inspects packaged archives for a required entry.
type Validator struct {
	entryPoint string
}

// Option customizes a Validator.
type Option func(*Validator)

// WithEntryPoint overrides the archive entry the validator requires.
func WithEntryPoint(entry string) Option {
	return func(v *Validator) {
		entry = strings.TrimPrefix(strings.TrimSpace(entry), "/")
		if entry != "" {
			v.entryPoint = entry
		}
	}
}

// NewValidator builds a validator requiring EntryPoint unless overridden.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{entryPoint: EntryPoint}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Validate checks <versionDir>/<versionID>.jar with the default validator.
func Validate(versionDir, versionID string) error {
	return NewValidator().Validate(versionDir, versionID)
}

// Validate runs both checks and returns an error wrapping ErrMissingArtifact
// or ErrInvalidArtifact when the archive cannot be trusted.
func (v *Validator) Validate(versionDir, versionID string) error {
	return v.Check(versionDir, versionID).AsError()
}

// Check inspects the archive and reports what it found. The archive is
// always closed before Check returns.
func (v *Validator) Check(versionDir, versionID string) CheckResult {
	path := filepath.Join(versionDir, versionID+gamedir.ArchiveExt)
	result := CheckResult{Path: path, EntryPoint: v.entryPoint}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			result.State = StateMissing
			return result
		}
		result.State = StateError
		result.Err = err
		return result
	}
	if info.IsDir() {
		result.State = StateInvalid
		result.Err = fmt.Errorf("expected archive file, found directory")
		return result
	}

	found, entries, err := v.scan(path)
	result.Entries = entries
	switch {
	case err != nil:
		result.State = StateInvalid
		result.Err = err
	case !found:
		result.State = StateInvalid
	default:
		result.State = StateReady
	}
	return result
}

func (v *Validator) scan(path string) (found bool, entries int, err error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return false, 0, fmt.Errorf("open archive: %w", err)
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close archive: %w", closeErr)
		}
	}()
	for _, file := range reader.File {
		if file.Name == v.entryPoint {
			return true, len(reader.File), nil
		}
	}
	return false, len(reader.File), nil
}
