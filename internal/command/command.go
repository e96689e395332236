// Package command assembles the argument list used to start the game.
// Everything here is a pure function of its inputs.
package command

import (
	"os"
	"strings"

	"github.com/kingrea/bazlauncher/internal/gamedir"
	"github.com/kingrea/bazlauncher/internal/session"
)

const (
	// OfflineFlag is always the final argument.
	OfflineFlag = "--offline"

	// DefaultMainClass is used when no version descriptor names one.
	DefaultMainClass = "net.minecraft.client.main.Main"

	// DefaultJava is the runtime looked up on PATH when none is configured.
	DefaultJava = "java"

	defaultVersionType = "release"
	userTypeLegacy     = "legacy"
)

// Profile carries launch metadata read from a version descriptor.
type Profile struct {
	MainClass   string
	Classpath   []string
	AssetIndex  string
	VersionType string
}

// DefaultProfile is the profile used when a version has no readable
// descriptor: the client archive alone on the classpath.
func DefaultProfile(installDir, versionID string) Profile {
	return Profile{
		MainClass:   DefaultMainClass,
		Classpath:   []string{gamedir.ArchivePath(installDir, versionID)},
		AssetIndex:  versionID,
		VersionType: defaultVersionType,
	}
}

// Settings are user-level knobs for the Java runtime.
type Settings struct {
	JavaPath string
	JVMArgs  []string
}

// Build returns the full invocation, executable first. The offline flag is
// appended unconditionally, even when opts carries a token.
func Build(versionID, installDir string, opts session.Options, profile Profile, settings Settings) []string {
	profile = profile.withDefaults(installDir, versionID)

	java := strings.TrimSpace(settings.JavaPath)
	if java == "" {
		java = DefaultJava
	}
	args := make([]string, 0, 32+len(settings.JVMArgs))
	args = append(args, java)
	for _, arg := range settings.JVMArgs {
		if arg = strings.TrimSpace(arg); arg != "" {
			args = append(args, arg)
		}
	}
	args = append(args,
		"-Djava.library.path="+gamedir.NativesDir(installDir, versionID),
		"-cp", strings.Join(profile.Classpath, string(os.PathListSeparator)),
		profile.MainClass,
		"--username", opts.Username,
		"--version", versionID,
		"--gameDir", installDir,
		"--assetsDir", gamedir.AssetsDir(installDir),
		"--assetIndex", profile.AssetIndex,
		"--uuid", opts.CompactID(),
		"--accessToken", opts.AuthToken,
		"--userType", userTypeLegacy,
		"--versionType", profile.VersionType,
	)
	return append(args, OfflineFlag)
}

func (p Profile) withDefaults(installDir, versionID string) Profile {
	def := DefaultProfile(installDir, versionID)
	out := Profile{
		MainClass:   strings.TrimSpace(p.MainClass),
		Classpath:   append([]string(nil), p.Classpath...),
		AssetIndex:  strings.TrimSpace(p.AssetIndex),
		VersionType: strings.TrimSpace(p.VersionType),
	}
	if out.MainClass == "" {
		out.MainClass = def.MainClass
	}
	if len(out.Classpath) == 0 {
		out.Classpath = def.Classpath
	}
	if out.AssetIndex == "" {
		out.AssetIndex = def.AssetIndex
	}
	if out.VersionType == "" {
		out.VersionType = def.VersionType
	}
	return out
}
