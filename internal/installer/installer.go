// Package installer downloads versions of the game into an install root and
// lists the versions available for download.
package installer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kingrea/bazlauncher/internal/gamedir"
	"github.com/kingrea/bazlauncher/internal/logging"
)

const (
	// DefaultManifestURL lists every published version.
	DefaultManifestURL = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"
	// DefaultResourcesURL serves content-addressed asset objects.
	DefaultResourcesURL = "https://resources.download.minecraft.net"
	// DefaultConcurrency bounds parallel file downloads.
	DefaultConcurrency = 8

	labelManifest   = "Fetching version manifest"
	labelDownloads  = "Downloading files"
	labelCompleted  = "Installation complete"
	defaultTimeout  = 5 * time.Minute
	partFileSuffix  = ".part"
	maxErrorPayload = 512
)

// ErrUnknownVersion is returned when the manifest does not list a version.
var ErrUnknownVersion = errors.New("installer: unknown version")

// Version is a catalog entry shown to users.
type Version struct {
	ID          string
	Type        string
	ReleaseTime time.Time
}

// Installer talks to the version manifest and file mirrors over HTTP.
type Installer struct {
	client       *http.Client
	manifestURL  string
	resourcesURL string
	concurrency  int
	osName       string
	logger       *slog.Logger
}

// Option customizes an Installer.
type Option func(*Installer)

// WithManifestURL overrides the manifest location.
func WithManifestURL(url string) Option {
	return func(i *Installer) {
		if url = strings.TrimSpace(url); url != "" {
			i.manifestURL = url
		}
	}
}

// WithResourcesURL overrides the asset object mirror.
func WithResourcesURL(url string) Option {
	return func(i *Installer) {
		if url = strings.TrimRight(strings.TrimSpace(url), "/"); url != "" {
			i.resourcesURL = url
		}
	}
}

// WithConcurrency bounds parallel downloads. Values below one are ignored.
func WithConcurrency(n int) Option {
	return func(i *Installer) {
		if n > 0 {
			i.concurrency = n
		}
	}
}

// WithOS overrides the operating system used to evaluate library rules.
func WithOS(name string) Option {
	return func(i *Installer) {
		if name = strings.TrimSpace(name); name != "" {
			i.osName = name
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Installer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// New builds an Installer with production defaults.
func New(opts ...Option) *Installer {
	i := &Installer{
		client:       &http.Client{Timeout: defaultTimeout},
		manifestURL:  DefaultManifestURL,
		resourcesURL: DefaultResourcesURL,
		concurrency:  DefaultConcurrency,
		osName:       HostOS(),
		logger:       logging.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	return i
}

// ListAvailableVersions returns every version in the manifest, newest first.
func (i *Installer) ListAvailableVersions(ctx context.Context) ([]Version, error) {
	manifest, err := i.fetchManifest(ctx)
	if err != nil {
		return nil, err
	}
	versions := make([]Version, 0, len(manifest.Versions))
	for _, entry := range manifest.Versions {
		versions = append(versions, Version{ID: entry.ID, Type: entry.Type, ReleaseTime: entry.ReleaseTime})
	}
	sort.SliceStable(versions, func(a, b int) bool {
		return versions[a].ReleaseTime.After(versions[b].ReleaseTime)
	})
	return versions, nil
}

// Install downloads versionID into root, reporting every step to progress.
// When installation fails the version directory is removed so the next
// launch starts over instead of trusting a half-written install.
func (i *Installer) Install(ctx context.Context, versionID, root string, progress ProgressFunc) (err error) {
	versionID = strings.TrimSpace(versionID)
	if versionID == "" {
		return errors.New("installer: version id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	existed, statErr := gamedir.VersionInstalled(root, versionID)
	if statErr != nil {
		return statErr
	}
	defer func() {
		if err != nil && !existed {
			if rmErr := os.RemoveAll(gamedir.VersionDir(root, versionID)); rmErr != nil {
				i.logger.Warn("remove partial install", "version", versionID, "error", rmErr)
			}
		}
	}()

	started := time.Now()
	progress.emit(Progress{Label: labelManifest})
	manifest, err := i.fetchManifest(ctx)
	if err != nil {
		return err
	}
	entry, ok := manifest.Find(versionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVersion, versionID)
	}

	progress.emit(Progress{Label: fmt.Sprintf("Fetching %s descriptor", versionID)})
	var desc Descriptor
	if err := i.fetchJSON(ctx, entry.URL, gamedir.DescriptorPath(root, versionID), &desc); err != nil {
		return err
	}
	if desc.Type == "" {
		desc.Type = entry.Type
	}

	var index AssetIndex
	if desc.AssetIndex.URL != "" {
		if !validAssetIndexID(desc.AssetIndexID()) {
			return fmt.Errorf("%w: asset index %q", ErrUnsafePath, desc.AssetIndexID())
		}
		progress.emit(Progress{Label: "Fetching asset index"})
		if err := i.fetchJSON(ctx, desc.AssetIndex.URL, gamedir.AssetIndexPath(root, desc.AssetIndexID()), &index); err != nil {
			return err
		}
	}

	plan, err := i.plan(root, versionID, desc, index)
	if err != nil {
		return err
	}
	i.logger.Info("install planned", "version", versionID, "files", len(plan))
	if err := i.downloadAll(ctx, plan, progress); err != nil {
		return err
	}
	progress.emit(Progress{Current: len(plan), Max: len(plan), Label: labelCompleted})
	i.logger.Info("install complete", "version", versionID, "files", len(plan), "elapsed", time.Since(started).Round(time.Millisecond))
	return nil
}

type fileTask struct {
	name string
	url  string
	dest string
	size int64
}

func (i *Installer) plan(root, versionID string, desc Descriptor, index AssetIndex) ([]fileTask, error) {
	if desc.Downloads.Client == nil || desc.Downloads.Client.URL == "" {
		return nil, fmt.Errorf("installer: %s descriptor has no client download", versionID)
	}
	tasks := []fileTask{{
		name: versionID + gamedir.ArchiveExt,
		url:  desc.Downloads.Client.URL,
		dest: gamedir.ArchivePath(root, versionID),
		size: desc.Downloads.Client.Size,
	}}
	for _, lib := range desc.Libraries {
		art := lib.Downloads.Artifact
		if art == nil || art.URL == "" || art.Path == "" || !lib.Allowed(i.osName) {
			continue
		}
		local, err := art.LocalPath()
		if err != nil {
			return nil, fmt.Errorf("library %s: %w", lib.Name, err)
		}
		tasks = append(tasks, fileTask{
			name: path.Base(art.Path),
			url:  art.URL,
			dest: filepath.Join(gamedir.LibrariesDir(root), local),
			size: art.Size,
		})
	}
	names := make([]string, 0, len(index.Objects))
	for name := range index.Objects {
		names = append(names, name)
	}
	sort.Strings(names)
	seen := map[string]struct{}{}
	for _, name := range names {
		obj := index.Objects[name]
		if !validAssetHash(obj.Hash) {
			return nil, fmt.Errorf("%w: asset %s has hash %q", ErrUnsafePath, name, obj.Hash)
		}
		if _, dup := seen[obj.Hash]; dup {
			continue
		}
		seen[obj.Hash] = struct{}{}
		tasks = append(tasks, fileTask{
			name: name,
			url:  fmt.Sprintf("%s/%s/%s", i.resourcesURL, obj.Hash[:2], obj.Hash),
			dest: gamedir.AssetObjectPath(root, obj.Hash),
			size: obj.Size,
		})
	}
	return tasks, nil
}

func (i *Installer) downloadAll(ctx context.Context, tasks []fileTask, progress ProgressFunc) error {
	total := len(tasks)
	progress.emit(Progress{Current: 0, Max: total, Label: labelDownloads})

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)
	for _, task := range tasks {
		g.Go(func() error {
			if err := i.fetchFile(gctx, task); err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			done++
			i.logger.Debug("file downloaded", "file", task.name, "done", done, "total", total)
			progress.emit(Progress{Current: done, Max: total, Label: labelFilePrefix + task.name})
			return nil
		})
	}
	return g.Wait()
}

func (i *Installer) fetchManifest(ctx context.Context) (Manifest, error) {
	var manifest Manifest
	body, err := i.get(ctx, i.manifestURL)
	if err != nil {
		return Manifest{}, err
	}
	if err := json.Unmarshal(body, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("installer: parse manifest: %w", err)
	}
	return manifest, nil
}

// fetchJSON downloads a JSON document, decodes it into v and keeps a copy at dest.
func (i *Installer) fetchJSON(ctx context.Context, url, dest string, v any) error {
	body, err := i.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("installer: parse %s: %w", url, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("installer: ensure %s: %w", filepath.Dir(dest), err)
	}
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return fmt.Errorf("installer: write %s: %w", dest, err)
	}
	return nil
}

func (i *Installer) get(ctx context.Context, url string) ([]byte, error) {
	resp, err := i.do(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("installer: read %s: %w", url, err)
	}
	return body, nil
}

func (i *Installer) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("installer: build request %s: %w", url, err)
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("installer: fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorPayload))
		resp.Body.Close()
		return nil, fmt.Errorf("installer: fetch %s: unexpected status %s: %s", url, resp.Status, strings.TrimSpace(string(snippet)))
	}
	return resp, nil
}

// fetchFile streams url to dest through a temporary file. Files already on
// disk with the expected size are kept.
func (i *Installer) fetchFile(ctx context.Context, task fileTask) error {
	if info, err := os.Stat(task.dest); err == nil && !info.IsDir() && task.size > 0 && info.Size() == task.size {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(task.dest), 0o755); err != nil {
		return fmt.Errorf("installer: ensure %s: %w", filepath.Dir(task.dest), err)
	}
	resp, err := i.do(ctx, task.url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tmp := task.dest + partFileSuffix
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("installer: create %s: %w", tmp, err)
	}
	written, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr == nil && closeErr == nil && task.size > 0 && written != task.size {
		copyErr = fmt.Errorf("size mismatch: got %d bytes, want %d", written, task.size)
	}
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp)
		if copyErr == nil {
			copyErr = closeErr
		}
		return fmt.Errorf("installer: download %s: %w", task.name, copyErr)
	}
	if err := os.Rename(tmp, task.dest); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("installer: finalize %s: %w", task.dest, err)
	}
	return nil
}
