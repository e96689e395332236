// Package gamedir owns the install root: it guarantees the directory exists
// before a launch and knows where every version's files live beneath it.
//
// Layout:
//
//	<root>/
//	├── versions/<id>/
//	│   ├── <id>.jar   <- packaged client archive
//	│   ├── <id>.json  <- version descriptor
//	│   └── natives/
//	├── libraries/
//	└── assets/
//	    ├── indexes/
//	    └── objects/
package gamedir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DirName is the folder created in the user's home directory.
	DirName = ".bazlauncher"

	// ArchiveExt is the extension of a version's packaged client archive.
	ArchiveExt = ".jar"

	versionsDir  = "versions"
	librariesDir = "libraries"
	assetsDir    = "assets"
	probeName    = ".bazlauncher-probe"
)

// Default returns ~/.bazlauncher.
func Default() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("gamedir: resolve home: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Ensure creates path (and its parents) when absent and checks that it is a
// writable directory. Calling it on an existing root is a no-op.
func Ensure(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("gamedir: install directory is required")
	}
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("gamedir: %s is not a directory", path)
		}
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("gamedir: create %s: %w", path, err)
		}
	default:
		return fmt.Errorf("gamedir: stat %s: %w", path, err)
	}
	return probeWritable(path)
}

func probeWritable(dir string) error {
	probe := filepath.Join(dir, probeName)
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("gamedir: %s is not writable: %w", dir, err)
	}
	closeErr := f.Close()
	removeErr := os.Remove(probe)
	if closeErr != nil {
		return fmt.Errorf("gamedir: probe %s: %w", dir, closeErr)
	}
	if removeErr != nil {
		return fmt.Errorf("gamedir: remove probe in %s: %w", dir, removeErr)
	}
	return nil
}

// VersionInstalled reports whether the version directory exists. Presence is
// all that is checked here; archive integrity is the validator's concern.
func VersionInstalled(root, versionID string) (bool, error) {
	info, err := os.Stat(VersionDir(root, versionID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("gamedir: stat version %s: %w", versionID, err)
	}
	return info.IsDir(), nil
}

// VersionsDir returns <root>/versions.
func VersionsDir(root string) string {
	return filepath.Join(root, versionsDir)
}

// VersionDir returns <root>/versions/<id>.
func VersionDir(root, versionID string) string {
	return filepath.Join(VersionsDir(root), versionID)
}

// ArchivePath returns <root>/versions/<id>/<id>.jar.
func ArchivePath(root, versionID string) string {
	return filepath.Join(VersionDir(root, versionID), versionID+ArchiveExt)
}

// DescriptorPath returns <root>/versions/<id>/<id>.json.
func DescriptorPath(root, versionID string) string {
	return filepath.Join(VersionDir(root, versionID), versionID+".json")
}

// NativesDir returns the directory passed as java.library.path.
func NativesDir(root, versionID string) string {
	return filepath.Join(VersionDir(root, versionID), "natives")
}

// LibrariesDir returns <root>/libraries.
func LibrariesDir(root string) string {
	return filepath.Join(root, librariesDir)
}

// AssetsDir returns <root>/assets.
func AssetsDir(root string) string {
	return filepath.Join(root, assetsDir)
}

// AssetIndexPath returns <root>/assets/indexes/<index>.json.
func AssetIndexPath(root, index string) string {
	return filepath.Join(AssetsDir(root), "indexes", index+".json")
}

// AssetObjectPath returns <root>/assets/objects/<hh>/<hash>.
func AssetObjectPath(root, hash string) string {
	prefix := hash
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return filepath.Join(AssetsDir(root), "objects", prefix, hash)
}
