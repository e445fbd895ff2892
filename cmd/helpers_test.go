package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/iksnae/wize-panels/internal"
)

// useTestConfig points the global config at a temporary directory and restores it afterwards
func useTestConfig(t *testing.T) *internal.Config {
	t.Helper()
	prevCfg, prevPaths := cfg, paths
	prevFlags := []string{configPath, baseURLFlag, relayURLFlag, moduleIDFlag}
	t.Cleanup(func() {
		cfg, paths = prevCfg, prevPaths
		configPath, baseURLFlag, relayURLFlag, moduleIDFlag = prevFlags[0], prevFlags[1], prevFlags[2], prevFlags[3]
	})

	paths = internal.PathsUnder(filepath.Join(t.TempDir(), "aiwize"))
	cfg = internal.DefaultConfig(paths)
	return cfg
}

// executeCommand runs the root command with args and returns its output
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetContext(context.Background())
	err := rootCmd.Execute()
	return out.String(), err
}

// isolateEnv keeps loadConfig away from the user's real config directory
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, key := range []string{"WIZE_BASE_URL", "WIZE_UI_BASE_URL", "WIZE_RELAY_URL", "WIZE_MODULE_ID",
		"WIZE_FILES_DIR", "WIZE_STATE_DB", "WIZE_CACHE_DIR", "WIZE_REST_TIMEOUT", "WIZE_SESSION_LIMIT", "WIZE_DOCUMENT_LIMIT"} {
		t.Setenv(key, "")
	}
	return dir
}

func runtimeIsDarwin() bool {
	return runtime.GOOS == "darwin"
}
