package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	stateDir := t.TempDir()
	c, err := Load(stateDir, "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(stateDir, FileName)); err != nil {
		t.Fatalf("expected config file to be created: %v", err)
	}
	if c.InstallDir() != stateDir {
		t.Fatalf("install dir = %q, want state dir %q", c.InstallDir(), stateDir)
	}
	if c.Launcher.JavaPath != "java" {
		t.Fatalf("java path = %q", c.Launcher.JavaPath)
	}
	if !reflect.DeepEqual(c.Launcher.JVMArgs, []string{"-Xmx2G"}) {
		t.Fatalf("jvm args = %v", c.Launcher.JVMArgs)
	}
	if c.Launcher.DownloadConcurrency != defaultConcurrency {
		t.Fatalf("concurrency = %d", c.Launcher.DownloadConcurrency)
	}
	if c.Launcher.Bridge.Enabled {
		t.Fatalf("bridge should be disabled by default")
	}
	if got := c.Launcher.Bridge.Addr(); got != "127.0.0.1:8765" {
		t.Fatalf("bridge addr = %q", got)
	}
	if c.LogsDir() != filepath.Join(stateDir, "logs") {
		t.Fatalf("logs dir = %q", c.LogsDir())
	}
}

func TestLoadParsesYaml(t *testing.T) {
	stateDir := t.TempDir()
	configYAML := strings.TrimSpace(`
install_dir: games/minecraft
java_path: /usr/lib/jvm/bin/java
jvm_args: ["-Xmx4G", "  ", "-XX:+UseG1GC"]
default_version: " 1.20.1 "
show_snapshots: true
last_username: steve
log_level: DEBUG
bridge:
  enabled: true
  port: 9000
`)
	path := filepath.Join(stateDir, FileName)
	if err := os.WriteFile(path, []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(stateDir, "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if want := filepath.Join(stateDir, "games", "minecraft"); c.InstallDir() != want {
		t.Fatalf("install dir = %q, want %q", c.InstallDir(), want)
	}
	if !reflect.DeepEqual(c.Launcher.JVMArgs, []string{"-Xmx4G", "-XX:+UseG1GC"}) {
		t.Fatalf("jvm args = %v", c.Launcher.JVMArgs)
	}
	if c.Launcher.DefaultVersion != "1.20.1" || !c.Launcher.ShowSnapshots || c.Launcher.LastUsername != "steve" {
		t.Fatalf("unexpected settings: %+v", c.Launcher)
	}
	if c.Launcher.LogLevel != "debug" {
		t.Fatalf("log level = %q", c.Launcher.LogLevel)
	}
	if !c.Launcher.Bridge.Enabled || c.Launcher.Bridge.Addr() != "127.0.0.1:9000" {
		t.Fatalf("bridge = %+v", c.Launcher.Bridge)
	}
	if c.Launcher.ManifestURL != defaultManifestURL {
		t.Fatalf("manifest url default not applied: %q", c.Launcher.ManifestURL)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"concurrency": "download_concurrency: 500",
		"manifest":    "manifest_url: ftp://example.com/manifest.json",
		"log level":   "log_level: chatty",
		"port":        "bridge:\n  port: 70000",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			stateDir := t.TempDir()
			if err := os.WriteFile(filepath.Join(stateDir, FileName), []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(stateDir, ""); err == nil {
				t.Fatalf("expected validation error for %q", body)
			}
		})
	}
}

func TestLoadRejectsMalformedYaml(t *testing.T) {
	stateDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(stateDir, FileName), []byte("jvm_args: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(stateDir, ""); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	stateDir := t.TempDir()
	override := filepath.Join(t.TempDir(), "override")
	t.Setenv("BAZ_INSTALL_DIR", override)
	t.Setenv("BAZ_JAVA_PATH", "/opt/java/bin/java")
	t.Setenv("BAZ_JVM_ARGS", "-Xmx1G -Xms512M")
	t.Setenv("BAZ_BRIDGE_ENABLED", "true")
	t.Setenv("BAZ_BRIDGE_PORT", "9100")

	c, err := Load(stateDir, "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.InstallDir() != override {
		t.Fatalf("install dir = %q, want %q", c.InstallDir(), override)
	}
	if c.Launcher.JavaPath != "/opt/java/bin/java" {
		t.Fatalf("java path = %q", c.Launcher.JavaPath)
	}
	if !reflect.DeepEqual(c.Launcher.JVMArgs, []string{"-Xmx1G", "-Xms512M"}) {
		t.Fatalf("jvm args = %v", c.Launcher.JVMArgs)
	}
	if !c.Launcher.Bridge.Enabled || c.Launcher.Bridge.Port != 9100 {
		t.Fatalf("bridge = %+v", c.Launcher.Bridge)
	}
}

func TestEnvironmentOverridesAreNotPersisted(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv("BAZ_JAVA_PATH", "/opt/java/bin/java")
	c, err := Load(stateDir, "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if err := c.SetLastUsername("alex"); err != nil {
		t.Fatalf("SetLastUsername: %v", err)
	}
	data, err := os.ReadFile(c.Path())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "/opt/java") {
		t.Fatalf("environment override leaked into config file:\n%s", data)
	}
	if !strings.Contains(string(data), "last_username: alex") {
		t.Fatalf("username not persisted:\n%s", data)
	}
}

func TestSetInstallDirPersists(t *testing.T) {
	stateDir := t.TempDir()
	c, err := Load(stateDir, "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	target := filepath.Join(t.TempDir(), "games")
	if err := c.SetInstallDir(target); err != nil {
		t.Fatalf("SetInstallDir: %v", err)
	}
	if err := c.SetInstallDir("  "); err == nil {
		t.Fatalf("expected error for blank install dir")
	}
	reloaded, err := Load(stateDir, "")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.InstallDir() != target {
		t.Fatalf("install dir = %q, want %q", reloaded.InstallDir(), target)
	}
}

func TestLoadExplicitPath(t *testing.T) {
	stateDir := t.TempDir()
	path := filepath.Join(t.TempDir(), "custom", "launcher.yaml")
	c, err := Load(stateDir, path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.Path() != path {
		t.Fatalf("path = %q, want %q", c.Path(), path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config at explicit path: %v", err)
	}
}
