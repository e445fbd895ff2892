package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultRelayURL      = "ws://localhost:22003/ws"
	DefaultModuleID      = "module-example-aiwize-chat"
	DefaultSessionLimit  = 100
	DefaultDocumentLimit = 100
	DefaultRESTTimeout   = 15 * time.Second
	ConfigFileName       = "wize-panels.yaml"
)

// Config holds everything the panels need to reach the backend, the relay and local storage
type Config struct {
	BaseURL       string `yaml:"base_url"`
	UIBaseURL     string `yaml:"ui_base_url"`
	RelayURL      string `yaml:"relay_url"`
	ModuleID      string `yaml:"module_id"`
	FilesDir      string `yaml:"files_dir"`
	StateDB       string `yaml:"state_db"`
	CacheDir      string `yaml:"cache_dir"`
	SessionLimit  int    `yaml:"session_limit"`
	DocumentLimit int    `yaml:"document_limit"`
	RESTTimeout   string `yaml:"rest_timeout"`
}

// DefaultConfig returns the configuration used when no file or environment overrides exist
func DefaultConfig(paths Paths) *Config {
	return &Config{
		RelayURL:      DefaultRelayURL,
		ModuleID:      DefaultModuleID,
		FilesDir:      paths.FilesDir,
		StateDB:       paths.StateDB,
		CacheDir:      paths.CacheDir,
		SessionLimit:  DefaultSessionLimit,
		DocumentLimit: DefaultDocumentLimit,
		RESTTimeout:   DefaultRESTTimeout.String(),
	}
}

// DefaultConfigPath returns the config file location below the detected base path
func DefaultConfigPath(paths Paths) string {
	return filepath.Join(paths.BasePath, "wize-panels", ConfigFileName)
}

// LoadConfig reads path over the defaults, then applies WIZE_* environment overrides.
// A missing file is not an error.
func LoadConfig(path string, paths Paths) (*Config, error) {
	cfg := DefaultConfig(paths)

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			LogDebug("No config file at %s, using defaults", path)
		case err != nil:
			return nil, &ConfigError{Path: path, Err: err}
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, &ConfigError{Path: path, Err: err}
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	texts := map[string]*string{
		"WIZE_BASE_URL":     &c.BaseURL,
		"WIZE_UI_BASE_URL":  &c.UIBaseURL,
		"WIZE_RELAY_URL":    &c.RelayURL,
		"WIZE_MODULE_ID":    &c.ModuleID,
		"WIZE_FILES_DIR":    &c.FilesDir,
		"WIZE_STATE_DB":     &c.StateDB,
		"WIZE_CACHE_DIR":    &c.CacheDir,
		"WIZE_REST_TIMEOUT": &c.RESTTimeout,
	}
	for key, field := range texts {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}

	ints := map[string]*int{
		"WIZE_SESSION_LIMIT":  &c.SessionLimit,
		"WIZE_DOCUMENT_LIMIT": &c.DocumentLimit,
	}
	for key, field := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*field = n
	}
	return nil
}

// Save writes the configuration as YAML, creating the directory if needed
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	return nil
}

// GetRESTTimeout returns the timeout for non-streaming requests
func (c *Config) GetRESTTimeout() time.Duration {
	d, err := time.ParseDuration(c.RESTTimeout)
	if err != nil || d <= 0 {
		return DefaultRESTTimeout
	}
	return d
}

// Validate checks the values every panel depends on
func (c *Config) Validate() error {
	if c.RelayURL == "" {
		return errors.New("relay URL is not set")
	}
	if c.ModuleID == "" {
		return errors.New("module id is not set")
	}
	if c.SessionLimit <= 0 || c.DocumentLimit <= 0 {
		return fmt.Errorf("list limits must be positive (sessions %d, documents %d)", c.SessionLimit, c.DocumentLimit)
	}
	return nil
}

// RequireBaseURL fails with ErrBaseURLNotSet when REST calls cannot be made
func (c *Config) RequireBaseURL() error {
	if c.BaseURL == "" {
		return ErrBaseURLNotSet
	}
	return nil
}
