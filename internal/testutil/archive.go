// Package testutil holds fixtures shared by the launcher's package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/bazlauncher/internal/artifact"
	"github.com/kingrea/bazlauncher/internal/gamedir"
)

// WriteArchive creates a zip archive at path holding one small file per entry.
func WriteArchive(t *testing.T, path string, entries ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for _, entry := range entries {
		fw, err := w.Create(entry)
		require.NoError(t, err)
		_, err = fw.Write([]byte("fixture:" + entry))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

// ArchiveBytes returns a zip archive holding the given entries.
func ArchiveBytes(t *testing.T, entries ...string) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.jar")
	WriteArchive(t, path, entries...)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

// InstallVersion lays out a launchable version under root: a version
// directory and a client archive containing the entry point.
func InstallVersion(t *testing.T, root, versionID string) {
	t.Helper()
	WriteArchive(t, gamedir.ArchivePath(root, versionID), "META-INF/MANIFEST.MF", artifact.EntryPoint)
}

// InstallBrokenVersion lays out a version whose archive lacks the entry point.
func InstallBrokenVersion(t *testing.T, root, versionID string) {
	t.Helper()
	WriteArchive(t, gamedir.ArchivePath(root, versionID), "META-INF/MANIFEST.MF", "assets/readme.txt")
}

// InstallEmptyVersion creates only the version directory, with no archive.
func InstallEmptyVersion(t *testing.T, root, versionID string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(gamedir.VersionDir(root, versionID), 0o755))
}
