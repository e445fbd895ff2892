package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Paths holds the detected locations used by the panels
type Paths struct {
	BasePath string // AIWize application directory
	FilesDir string // modules files directory, holds the auth token
	StateDB  string // persistence sidecar database
	CacheDir string // session index cache
}

// DetectPaths detects the default locations based on the operating system.
// XDG_CONFIG_HOME is honoured on Linux.
func DetectPaths() (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, fmt.Errorf("failed to get home directory: %w", err)
	}

	var basePath string
	switch runtime.GOOS {
	case "darwin":
		basePath = filepath.Join(home, "Library/Application Support/AIWize")
	case "linux":
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			configHome = filepath.Join(home, ".config")
		}
		basePath = filepath.Join(configHome, "aiwize")
	default:
		return Paths{}, fmt.Errorf("unsupported OS: %s (only macOS and Linux are supported)", runtime.GOOS)
	}

	return PathsUnder(basePath), nil
}

// PathsUnder lays out every path below basePath
func PathsUnder(basePath string) Paths {
	panelsDir := filepath.Join(basePath, "wize-panels")
	return Paths{
		BasePath: basePath,
		FilesDir: filepath.Join(basePath, "files"),
		StateDB:  filepath.Join(panelsDir, "state.db"),
		CacheDir: filepath.Join(panelsDir, "cache"),
	}
}

// TokenPath returns the path of the auth token file
func (p Paths) TokenPath() string {
	return filepath.Join(p.FilesDir, TokenFileName)
}

// StateDBExists checks if the sidecar database exists
func (p Paths) StateDBExists() bool {
	_, err := os.Stat(p.StateDB)
	return err == nil
}

// EnsureStateDir creates the directory holding the sidecar database
func (p Paths) EnsureStateDir() error {
	return os.MkdirAll(filepath.Dir(p.StateDB), 0755)
}
