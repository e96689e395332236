package installer

import (
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// ErrUnsafePath is returned when a descriptor or asset index names a file
// outside the directory it belongs in.
var ErrUnsafePath = errors.New("installer: unsafe path")

const assetHashLen = 40

// Manifest models version_manifest_v2.json.
type Manifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []ManifestEntry `json:"versions"`
}

// ManifestEntry is one installable version listed by the manifest.
type ManifestEntry struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	URL         string    `json:"url"`
	Time        time.Time `json:"time"`
	ReleaseTime time.Time `json:"releaseTime"`
}

// Find returns the entry for id.
func (m Manifest) Find(id string) (ManifestEntry, bool) {
	for _, entry := range m.Versions {
		if entry.ID == id {
			return entry, true
		}
	}
	return ManifestEntry{}, false
}

// Download is a single remote file reference.
type Download struct {
	Path string `json:"path,omitempty"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
	SHA1 string `json:"sha1,omitempty"`
}

// LocalPath returns Path in host form. Absolute paths and paths that climb
// out of their base directory are rejected.
func (d Download) LocalPath() (string, error) {
	local := filepath.FromSlash(d.Path)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, d.Path)
	}
	return local, nil
}

// validAssetHash reports whether hash is a hex SHA1 digest, the only names
// the asset store holds.
func validAssetHash(hash string) bool {
	if len(hash) != assetHashLen {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

// validAssetIndexID reports whether id can name a file in assets/indexes.
func validAssetIndexID(id string) bool {
	return id != "" && filepath.IsLocal(id) && !strings.ContainsAny(id, `/\`)
}

// Descriptor models versions/<id>/<id>.json.
type Descriptor struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	MainClass  string `json:"mainClass"`
	Assets     string `json:"assets"`
	AssetIndex struct {
		ID   string `json:"id"`
		URL  string `json:"url"`
		Size int64  `json:"size"`
	} `json:"assetIndex"`
	Downloads struct {
		Client *Download `json:"client"`
	} `json:"downloads"`
	Libraries []Library `json:"libraries"`
}

// AssetIndexID returns the asset index name, falling back to the legacy
// "assets" field.
func (d Descriptor) AssetIndexID() string {
	if id := strings.TrimSpace(d.AssetIndex.ID); id != "" {
		return id
	}
	return strings.TrimSpace(d.Assets)
}

// Library is a classpath dependency of a version.
type Library struct {
	Name      string `json:"name"`
	Downloads struct {
		Artifact *Download `json:"artifact"`
	} `json:"downloads"`
	Rules []Rule `json:"rules,omitempty"`
}

// Rule restricts a library to particular operating systems.
type Rule struct {
	Action string `json:"action"`
	OS     *struct {
		Name string `json:"name"`
	} `json:"os,omitempty"`
}

// Allowed evaluates the library's rules for osName. Libraries without rules
// are always allowed; otherwise the last matching rule wins.
func (l Library) Allowed(osName string) bool {
	if len(l.Rules) == 0 {
		return true
	}
	allowed := false
	for _, rule := range l.Rules {
		if rule.OS != nil && rule.OS.Name != "" && rule.OS.Name != osName {
			continue
		}
		allowed = rule.Action == "allow"
	}
	return allowed
}

// AssetIndex models assets/indexes/<id>.json.
type AssetIndex struct {
	Objects map[string]AssetObject `json:"objects"`
}

// AssetObject is one content-addressed asset.
type AssetObject struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// HostOS maps runtime.GOOS to the names used in library rules.
func HostOS() string {
	switch runtime.GOOS {
	case "darwin":
		return "osx"
	default:
		return runtime.GOOS
	}
}
