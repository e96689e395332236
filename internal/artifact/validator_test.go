package artifact_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kingrea/bazlauncher/internal/artifact"
	"github.com/kingrea/bazlauncher/internal/gamedir"
	"github.com/kingrea/bazlauncher/internal/testutil"
)

func TestValidateAcceptsArchiveWithEntryPoint(t *testing.T) {
	root := t.TempDir()
	testutil.InstallVersion(t, root, "1.20.1")
	if err := artifact.Validate(gamedir.VersionDir(root, "1.20.1"), "1.20.1"); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateReportsMissingArchive(t *testing.T) {
	root := t.TempDir()
	testutil.InstallEmptyVersion(t, root, "1.20.1")
	err := artifact.Validate(gamedir.VersionDir(root, "1.20.1"), "1.20.1")
	if !errors.Is(err, artifact.ErrMissingArtifact) {
		t.Fatalf("expected ErrMissingArtifact, got %v", err)
	}
}

func TestValidateReportsMissingEntryPoint(t *testing.T) {
	root := t.TempDir()
	testutil.InstallBrokenVersion(t, root, "1.20.1")
	err := artifact.Validate(gamedir.VersionDir(root, "1.20.1"), "1.20.1")
	if !errors.Is(err, artifact.ErrInvalidArtifact) {
		t.Fatalf("expected ErrInvalidArtifact, got %v", err)
	}
}

func TestValidateTreatsCorruptArchiveAsInvalid(t *testing.T) {
	root := t.TempDir()
	path := gamedir.ArchivePath(root, "1.20.1")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := artifact.Validate(gamedir.VersionDir(root, "1.20.1"), "1.20.1")
	if !errors.Is(err, artifact.ErrInvalidArtifact) {
		t.Fatalf("expected ErrInvalidArtifact, got %v", err)
	}
}

func TestCheckReleasesArchive(t *testing.T) {
	root := t.TempDir()
	testutil.InstallVersion(t, root, "1.8.9")
	result := artifact.NewValidator().Check(gamedir.VersionDir(root, "1.8.9"), "1.8.9")
	if !result.Ready() {
		t.Fatalf("expected ready, got %s (%v)", result.State, result.Err)
	}
	if result.Entries != 2 {
		t.Fatalf("entries = %d, want 2", result.Entries)
	}
	// A closed handle lets the archive be removed and replaced immediately.
	if err := os.Remove(result.Path); err != nil {
		t.Fatalf("remove archive after check: %v", err)
	}
}

func TestWithEntryPointOverride(t *testing.T) {
	root := t.TempDir()
	testutil.WriteArchive(t, gamedir.ArchivePath(root, "custom"), "com/example/Boot.class")
	v := artifact.NewValidator(artifact.WithEntryPoint("/com/example/Boot.class"))
	if err := v.Validate(gamedir.VersionDir(root, "custom"), "custom"); err != nil {
		t.Fatalf("validate with override: %v", err)
	}
	if err := artifact.Validate(gamedir.VersionDir(root, "custom"), "custom"); !errors.Is(err, artifact.ErrInvalidArtifact) {
		t.Fatalf("default validator should reject custom archive, got %v", err)
	}
}
