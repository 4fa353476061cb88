package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/flynn33/ash-model/internal/constants"
)

// GlobalAshPath returns the path to the global .ash directory.
// On Unix: ~/.ash
// On Windows: %USERPROFILE%\.ash
func GlobalAshPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.DataDirName), nil
}

// LocalAshPath returns the path to the local .ash directory
// for the given project root.
func LocalAshPath(projectRoot string) string {
	return filepath.Join(projectRoot, constants.DataDirName)
}

// RootFor returns the directory whose .ash subdirectory holds the run
// database for scope: projectRoot for local, the home directory for global.
func RootFor(scope constants.Scope, projectRoot string) (string, error) {
	switch scope {
	case constants.ScopeLocal:
		return projectRoot, nil
	case constants.ScopeGlobal:
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		return homeDir, nil
	default:
		return "", fmt.Errorf("invalid scope %q (valid: local, global)", scope)
	}
}

// ArchiveDir returns the archive directory under root's .ash directory.
func ArchiveDir(root string) string {
	return filepath.Join(LocalAshPath(root), constants.ArchiveDirName)
}
