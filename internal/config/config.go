// internal/config/config.go
//
// This package handles the launcher's persisted preferences. The file lives
// in the state directory (~/.bazlauncher/config.yaml by default) and can be
// overridden from BAZ_* environment variables.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/bazlauncher/internal/gamedir"
)

const (
	// FileName is the config file inside the state directory.
	FileName = "config.yaml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "BAZ_"

	defaultManifestURL = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"
	defaultConcurrency = 8
	maxConcurrency     = 64
	defaultBridgeHost  = "127.0.0.1"
	defaultBridgePort  = 8765
	defaultLogLevel    = "info"
)

const defaultConfigYAML = `# bazlauncher configuration

# Where versions, libraries and assets are installed. Empty means the state
# directory (~/.bazlauncher).
install_dir: ""

# Java runtime and extra JVM arguments.
java_path: java
jvm_args:
  - -Xmx2G

# Version preselected in the launcher.
default_version: ""

manifest_url: https://piston-meta.mojang.com/mc/game/version_manifest_v2.json
download_concurrency: 8
show_snapshots: false
log_level: info

# Loopback status endpoint (/health, /status, /metrics).
bridge:
  enabled: false
  host: 127.0.0.1
  port: 8765
`

// BridgeConfig controls the optional status server.
type BridgeConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Host    string `yaml:"host" env:"HOST"`
	Port    int    `yaml:"port" env:"PORT"`
}

// Addr returns host:port.
func (b BridgeConfig) Addr() string {
	return net.JoinHostPort(b.Host, fmt.Sprint(b.Port))
}

// Settings models config.yaml.
type Settings struct {
	InstallDir          string       `yaml:"install_dir" env:"INSTALL_DIR"`
	JavaPath            string       `yaml:"java_path" env:"JAVA_PATH"`
	JVMArgs             []string     `yaml:"jvm_args,omitempty" env:"JVM_ARGS" envSeparator:" "`
	DefaultVersion      string       `yaml:"default_version" env:"DEFAULT_VERSION"`
	ManifestURL         string       `yaml:"manifest_url" env:"MANIFEST_URL"`
	DownloadConcurrency int          `yaml:"download_concurrency" env:"DOWNLOAD_CONCURRENCY"`
	ShowSnapshots       bool         `yaml:"show_snapshots" env:"SHOW_SNAPSHOTS"`
	LastUsername        string       `yaml:"last_username,omitempty"`
	LogLevel            string       `yaml:"log_level" env:"LOG_LEVEL"`
	Bridge              BridgeConfig `yaml:"bridge" envPrefix:"BRIDGE_"`
}

// Config holds the effective launcher configuration.
type Config struct {
	// StateDir holds the config file, logs and, by default, the install root.
	StateDir string

	// Launcher is the file merged with environment overrides.
	Launcher Settings

	path string
	// file is what was read from disk; saves start from it so environment
	// overrides never leak into config.yaml.
	file Settings
}

// DefaultStateDir returns ~/.bazlauncher.
func DefaultStateDir() (string, error) {
	return gamedir.Default()
}

// Load reads the config at path, creating it with commented defaults when it
// does not exist. An empty path means <stateDir>/config.yaml. Environment
// variables prefixed with BAZ_ override file values.
func Load(stateDir, path string) (*Config, error) {
	stateDir = strings.TrimSpace(stateDir)
	if stateDir == "" {
		dir, err := DefaultStateDir()
		if err != nil {
			return nil, err
		}
		stateDir = dir
	}
	if strings.TrimSpace(path) == "" {
		path = filepath.Join(stateDir, FileName)
	}
	if err := ensureConfigFile(path); err != nil {
		return nil, err
	}

	cfg := &Config{StateDir: stateDir, path: path, file: defaultSettings()}
	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	cfg.Launcher = cfg.file
	cfg.Launcher.JVMArgs = append([]string(nil), cfg.file.JVMArgs...)
	if err := env.ParseWithOptions(&cfg.Launcher, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	cfg.Launcher.applyDefaults()
	cfg.Launcher.normalize(stateDir)
	if err := cfg.Launcher.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Path returns the on-disk location of the config file.
func (c *Config) Path() string {
	return c.path
}

// LogsDir returns the directory that holds launcher.log and journal.log.
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// InstallDir returns the effective install root.
func (c *Config) InstallDir() string {
	return c.Launcher.InstallDir
}

// SetInstallDir records a new install root and persists it.
func (c *Config) SetInstallDir(dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return fmt.Errorf("config: install dir is required")
	}
	dir = resolvePath(c.StateDir, dir)
	c.Launcher.InstallDir = dir
	c.file.InstallDir = dir
	return c.save()
}

// SetLastUsername remembers the name typed into the launcher. A blank name
// clears it.
func (c *Config) SetLastUsername(name string) error {
	name = strings.TrimSpace(name)
	c.Launcher.LastUsername = name
	c.file.LastUsername = name
	return c.save()
}

func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", c.path, err)
	}

	var parsed Settings
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", c.path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.StateDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %s: %w", c.path, err)
	}

	c.file = parsed
	return nil
}

func (c *Config) save() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.file.applyDefaults()
	c.file.normalize(c.StateDir)
	if err := c.file.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("config: ensure config dir: %w", err)
	}
	data, err := yaml.Marshal(c.file)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("config: write config: %w", err)
	}
	return nil
}

func defaultSettings() Settings {
	return Settings{
		JavaPath:            "java",
		ManifestURL:         defaultManifestURL,
		DownloadConcurrency: defaultConcurrency,
		LogLevel:            defaultLogLevel,
		Bridge: BridgeConfig{
			Host: defaultBridgeHost,
			Port: defaultBridgePort,
		},
	}
}

func (s *Settings) applyDefaults() {
	if strings.TrimSpace(s.JavaPath) == "" {
		s.JavaPath = "java"
	}
	if strings.TrimSpace(s.ManifestURL) == "" {
		s.ManifestURL = defaultManifestURL
	}
	if s.DownloadConcurrency == 0 {
		s.DownloadConcurrency = defaultConcurrency
	}
	if strings.TrimSpace(s.LogLevel) == "" {
		s.LogLevel = defaultLogLevel
	}
	if strings.TrimSpace(s.Bridge.Host) == "" {
		s.Bridge.Host = defaultBridgeHost
	}
	if s.Bridge.Port == 0 {
		s.Bridge.Port = defaultBridgePort
	}
}

func (s *Settings) normalize(stateDir string) {
	s.InstallDir = strings.TrimSpace(s.InstallDir)
	if s.InstallDir == "" {
		s.InstallDir = stateDir
	}
	s.InstallDir = resolvePath(stateDir, s.InstallDir)
	s.JavaPath = strings.TrimSpace(s.JavaPath)
	args := s.JVMArgs[:0]
	for _, arg := range s.JVMArgs {
		if arg = strings.TrimSpace(arg); arg != "" {
			args = append(args, arg)
		}
	}
	s.JVMArgs = args
	s.DefaultVersion = strings.TrimSpace(s.DefaultVersion)
	s.ManifestURL = strings.TrimSpace(s.ManifestURL)
	s.LastUsername = strings.TrimSpace(s.LastUsername)
	s.LogLevel = strings.ToLower(strings.TrimSpace(s.LogLevel))
	s.Bridge.Host = strings.TrimSpace(s.Bridge.Host)
}

func (s *Settings) validate() error {
	if s.DownloadConcurrency < 1 || s.DownloadConcurrency > maxConcurrency {
		return fmt.Errorf("download_concurrency must be between 1 and %d", maxConcurrency)
	}
	u, err := url.Parse(s.ManifestURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("manifest_url must be an http(s) URL")
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	if s.Bridge.Port < 1 || s.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port must be between 1 and 65535")
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "~"+string(filepath.Separator)) || trimmed == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
		}
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: ensure config dir: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
