package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const cacheVersion = "1.0"

// CacheManager keeps the last fetched session list and transcripts on disk,
// used when the backend cannot be reached
type CacheManager struct {
	cacheDir string
}

// CacheMetadata stores metadata about the cache
type CacheMetadata struct {
	BaseURL      string    `json:"base_url" yaml:"base_url"`
	CacheVersion string    `json:"cache_version" yaml:"cache_version"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

// SessionIndex represents the YAML index of all sessions
type SessionIndex struct {
	Sessions []AgentSession `yaml:"sessions"`
	Metadata CacheMetadata  `yaml:"metadata"`
}

// NewCacheManager creates a new cache manager
func NewCacheManager(cacheDir string) *CacheManager {
	return &CacheManager{
		cacheDir: cacheDir,
	}
}

// EnsureCacheDir ensures the cache directory exists
func (cm *CacheManager) EnsureCacheDir() error {
	return os.MkdirAll(cm.cacheDir, 0755)
}

// GetCacheDir returns the cache directory path
func (cm *CacheManager) GetCacheDir() string {
	return cm.cacheDir
}

// GetIndexPath returns the path to the session index YAML file
func (cm *CacheManager) GetIndexPath() string {
	return filepath.Join(cm.cacheDir, "sessions.yaml")
}

// GetTranscriptPath returns the path to a session's transcript file
func (cm *CacheManager) GetTranscriptPath(sessionID string) string {
	return filepath.Join(cm.cacheDir, fmt.Sprintf("session_%s.json", sessionID))
}

// IsCacheValid checks if the index was written for baseURL and is younger than maxAge
func (cm *CacheManager) IsCacheValid(baseURL string, maxAge time.Duration) (bool, error) {
	// Check if index exists
	if _, err := os.Stat(cm.GetIndexPath()); os.IsNotExist(err) {
		return false, nil
	}

	index, err := cm.LoadIndex()
	if err != nil {
		return false, nil
	}

	if index.Metadata.BaseURL != baseURL {
		return false, nil
	}
	if maxAge > 0 && time.Since(index.Metadata.UpdatedAt) > maxAge {
		return false, nil
	}

	return true, nil
}

// LoadIndex loads the session index
func (cm *CacheManager) LoadIndex() (*SessionIndex, error) {
	data, err := os.ReadFile(cm.GetIndexPath())
	if err != nil {
		return nil, err
	}

	var index SessionIndex
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index: %w", err)
	}

	return &index, nil
}

// SaveIndex saves the session index
func (cm *CacheManager) SaveIndex(index *SessionIndex) error {
	if err := cm.EnsureCacheDir(); err != nil {
		return err
	}

	data, err := yaml.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	return os.WriteFile(cm.GetIndexPath(), data, 0644)
}

// SaveSessions replaces the cached session list
func (cm *CacheManager) SaveSessions(sessions []AgentSession, baseURL string) error {
	now := time.Now()
	created := now
	if existing, err := cm.LoadIndex(); err == nil && existing.Metadata.BaseURL == baseURL {
		created = existing.Metadata.CreatedAt
	}

	return cm.SaveIndex(&SessionIndex{
		Sessions: sessions,
		Metadata: CacheMetadata{
			BaseURL:      baseURL,
			CacheVersion: cacheVersion,
			CreatedAt:    created,
			UpdatedAt:    now,
		},
	})
}

// LoadSessions returns the cached session list
func (cm *CacheManager) LoadSessions() ([]AgentSession, error) {
	index, err := cm.LoadIndex()
	if err != nil {
		return nil, err
	}
	return index.Sessions, nil
}

// SaveTranscript saves a single transcript to its cache file
func (cm *CacheManager) SaveTranscript(t *Transcript) error {
	if err := cm.EnsureCacheDir(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	return os.WriteFile(cm.GetTranscriptPath(t.ID), data, 0644)
}

// LoadTranscript loads a single transcript from its cache file
func (cm *CacheManager) LoadTranscript(sessionID string) (*Transcript, error) {
	data, err := os.ReadFile(cm.GetTranscriptPath(sessionID))
	if err != nil {
		return nil, err
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}

	return &t, nil
}

// ClearCache removes the index and every cached transcript
func (cm *CacheManager) ClearCache() error {
	matches, _ := filepath.Glob(filepath.Join(cm.cacheDir, "session_*.json"))
	for _, path := range matches {
		_ = os.Remove(path)
	}

	if err := os.Remove(cm.GetIndexPath()); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}
