package installer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kingrea/bazlauncher/internal/command"
	"github.com/kingrea/bazlauncher/internal/gamedir"
)

// LoadProfile reads the installed descriptor for versionID and resolves its
// classpath against root. Callers fall back to command.DefaultProfile when
// the descriptor is missing or unreadable.
func LoadProfile(root, versionID, osName string) (command.Profile, error) {
	path := gamedir.DescriptorPath(root, versionID)
	data, err := os.ReadFile(path)
	if err != nil {
		return command.Profile{}, fmt.Errorf("installer: read descriptor: %w", err)
	}
	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return command.Profile{}, fmt.Errorf("installer: parse %s: %w", path, err)
	}
	if osName == "" {
		osName = HostOS()
	}
	profile := command.Profile{
		MainClass:   desc.MainClass,
		AssetIndex:  desc.AssetIndexID(),
		VersionType: desc.Type,
	}
	for _, lib := range desc.Libraries {
		art := lib.Downloads.Artifact
		if art == nil || art.Path == "" || !lib.Allowed(osName) {
			continue
		}
		local, err := art.LocalPath()
		if err != nil {
			return command.Profile{}, fmt.Errorf("installer: library %s: %w", lib.Name, err)
		}
		profile.Classpath = append(profile.Classpath, filepath.Join(gamedir.LibrariesDir(root), local))
	}
	profile.Classpath = append(profile.Classpath, gamedir.ArchivePath(root, versionID))
	return profile, nil
}
