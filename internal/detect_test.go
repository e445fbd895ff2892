package internal

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/iksnae/wize-panels/testutil"
)

func TestDetectPaths(t *testing.T) {
	if runtime.GOOS != "darwin" && runtime.GOOS != "linux" {
		t.Skip("only macOS and Linux are supported")
	}
	if runtime.GOOS == "linux" {
		t.Setenv("XDG_CONFIG_HOME", "")
	}

	paths, err := DetectPaths()
	if err != nil {
		t.Fatalf("DetectPaths() error = %v", err)
	}

	home, _ := os.UserHomeDir()
	expectedBase := ""
	switch runtime.GOOS {
	case "darwin":
		expectedBase = filepath.Join(home, "Library/Application Support/AIWize")
	case "linux":
		expectedBase = filepath.Join(home, ".config/aiwize")
	}

	if paths.BasePath != expectedBase {
		t.Errorf("BasePath = %v, want %v", paths.BasePath, expectedBase)
	}
	if paths.FilesDir == "" || paths.StateDB == "" || paths.CacheDir == "" {
		t.Errorf("paths should all be set: %+v", paths)
	}
}

func TestDetectPaths_XDGConfigHome(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME is only used on Linux")
	}
	dir := testutil.CreateTempDir(t)
	t.Setenv("XDG_CONFIG_HOME", dir)

	paths, err := DetectPaths()
	if err != nil {
		t.Fatalf("DetectPaths() error = %v", err)
	}
	if paths.BasePath != filepath.Join(dir, "aiwize") {
		t.Errorf("BasePath = %v", paths.BasePath)
	}
}

func TestPathsUnder(t *testing.T) {
	paths := PathsUnder("/base")
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"files", paths.FilesDir, filepath.Join("/base", "files")},
		{"state db", paths.StateDB, filepath.Join("/base", "wize-panels", "state.db")},
		{"cache", paths.CacheDir, filepath.Join("/base", "wize-panels", "cache")},
		{"token", paths.TokenPath(), filepath.Join("/base", "files", "aiwize-token.txt")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestPaths_StateDB(t *testing.T) {
	paths := PathsUnder(testutil.CreateTempDir(t))
	if paths.StateDBExists() {
		t.Error("StateDBExists() should be false before creation")
	}
	if err := paths.EnsureStateDir(); err != nil {
		t.Fatalf("EnsureStateDir() error = %v", err)
	}
	testutil.CreateSQLiteFixture(t, paths.StateDB)
	if !paths.StateDBExists() {
		t.Error("StateDBExists() should be true after creation")
	}
}
