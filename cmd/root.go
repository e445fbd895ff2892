package cmd

import (
	"fmt"
	"os"

	"github.com/iksnae/wize-panels/internal"
	"github.com/spf13/cobra"
)

var (
	verbose      bool
	configPath   string
	baseURLFlag  string
	relayURLFlag string
	moduleIDFlag string
	version      string = "dev"
	commit       string = "unknown"
	date         string = "unknown"

	cfg   *internal.Config
	paths internal.Paths
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wize-panels",
	Short: "Session list and chat panels for the AIWize assistant backend",
	Long: `Two cooperating panels for the AIWize assistant backend, plus the relay that joins them.

The session panel lists your agent sessions and announces the one you pick.
The chat panel adopts announced sessions, streams replies from agents or raw
models, and mirrors its state to a local database so it survives restarts.
Both panels talk only through the relay.

Quick Start:
  wize-panels relay                      # Start the cross-panel relay
  wize-panels chat                       # Open the chat panel
  wize-panels sessions watch             # Open the session panel
  wize-panels sessions open <id>         # Announce a session to the chat panel
  wize-panels export <id> --format md    # Export a conversation`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		internal.SetVerbose(verbose)
		return loadConfig()
	},
}

// loadConfig resolves paths, the config file, environment and flags, in that order
func loadConfig() error {
	detected, err := internal.DetectPaths()
	if err != nil {
		return fmt.Errorf("failed to detect paths: %w", err)
	}
	paths = detected

	path := configPath
	if path == "" {
		path = internal.DefaultConfigPath(paths)
	}
	loaded, err := internal.LoadConfig(path, paths)
	if err != nil {
		return err
	}

	if baseURLFlag != "" {
		loaded.BaseURL = baseURLFlag
	}
	if relayURLFlag != "" {
		loaded.RelayURL = relayURLFlag
	}
	if moduleIDFlag != "" {
		loaded.ModuleID = moduleIDFlag
	}
	if err := loaded.Validate(); err != nil {
		return &internal.ConfigError{Path: path, Err: err}
	}

	cfg = loaded
	internal.LogDebug("Config: base=%s relay=%s module=%s files=%s", cfg.BaseURL, cfg.RelayURL, cfg.ModuleID, cfg.FilesDir)
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <aiwize dir>/wize-panels/wize-panels.yaml)")
	rootCmd.PersistentFlags().StringVar(&baseURLFlag, "base-url", "", "Assistant backend URL (overrides WIZE_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&relayURLFlag, "relay", "", "Relay WebSocket URL (overrides WIZE_RELAY_URL)")
	rootCmd.PersistentFlags().StringVar(&moduleIDFlag, "module", "", "Module id shared by both panels")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
