package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iksnae/wize-panels/testutil"
)

func TestNewCacheManager(t *testing.T) {
	cacheDir := testutil.CreateTempDir(t)
	cm := NewCacheManager(cacheDir)
	if cm == nil {
		t.Fatal("NewCacheManager() returned nil")
	}
	if cm.GetCacheDir() != cacheDir {
		t.Errorf("GetCacheDir() = %q, want %q", cm.GetCacheDir(), cacheDir)
	}
}

func TestCacheManager_EnsureCacheDir(t *testing.T) {
	cacheDir := filepath.Join(testutil.CreateTempDir(t), "nested", "cache")
	cm := NewCacheManager(cacheDir)

	if err := cm.EnsureCacheDir(); err != nil {
		t.Errorf("EnsureCacheDir() error = %v", err)
	}

	// Verify directory exists
	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		t.Error("Cache directory was not created")
	}
}

func TestCacheManager_Paths(t *testing.T) {
	cacheDir := testutil.CreateTempDir(t)
	cm := NewCacheManager(cacheDir)

	if got, want := cm.GetIndexPath(), filepath.Join(cacheDir, "sessions.yaml"); got != want {
		t.Errorf("GetIndexPath() = %q, want %q", got, want)
	}
	if got, want := cm.GetTranscriptPath("s-123"), filepath.Join(cacheDir, "session_s-123.json"); got != want {
		t.Errorf("GetTranscriptPath() = %q, want %q", got, want)
	}
}

func TestCacheManager_SaveAndLoadSessions(t *testing.T) {
	cm := NewCacheManager(testutil.CreateTempDir(t))
	sessions := []AgentSession{
		{ID: "s1", SessionID: "s1", AgentID: "a1", Meta: &AgentMeta{Name: "Research"}},
		{ID: "s2", SessionID: "m-s2", Model: &ModelRef{ID: "m1", Temperature: Float64(0.2)}},
	}

	if err := cm.SaveSessions(sessions, "https://api.example"); err != nil {
		t.Fatalf("SaveSessions() error = %v", err)
	}

	loaded, err := cm.LoadSessions()
	if err != nil {
		t.Fatalf("LoadSessions() error = %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("LoadSessions() returned %d sessions, want 2", len(loaded))
	}
	if loaded[0].Label() != "s1 Research" {
		t.Errorf("first label = %q", loaded[0].Label())
	}
	if loaded[1].Model == nil || loaded[1].Model.TemperatureOr(-1) != 0.2 || loaded[1].SessionID != "m-s2" {
		t.Errorf("second session = %+v", loaded[1])
	}
}

func TestCacheManager_IsCacheValid(t *testing.T) {
	cm := NewCacheManager(testutil.CreateTempDir(t))

	valid, err := cm.IsCacheValid("https://api.example", time.Hour)
	if err != nil || valid {
		t.Errorf("IsCacheValid() without index = %v, %v", valid, err)
	}

	if err := cm.SaveSessions([]AgentSession{{ID: "s1"}}, "https://api.example"); err != nil {
		t.Fatalf("SaveSessions() error = %v", err)
	}

	tests := []struct {
		name    string
		baseURL string
		maxAge  time.Duration
		want    bool
	}{
		{"same backend", "https://api.example", time.Hour, true},
		{"no age limit", "https://api.example", 0, true},
		{"other backend", "https://other.example", time.Hour, false},
		{"expired", "https://api.example", time.Nanosecond, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.maxAge == time.Nanosecond {
				time.Sleep(time.Millisecond)
			}
			valid, err := cm.IsCacheValid(tt.baseURL, tt.maxAge)
			if err != nil {
				t.Fatalf("IsCacheValid() error = %v", err)
			}
			if valid != tt.want {
				t.Errorf("IsCacheValid() = %v, want %v", valid, tt.want)
			}
		})
	}
}

func TestCacheManager_SaveAndLoadTranscript(t *testing.T) {
	cm := NewCacheManager(testutil.CreateTempDir(t))
	transcript := &Transcript{
		ID:    "s1",
		Label: "s1 Research",
		Messages: []Message{
			{ID: "u-1", Sender: SenderUser, Content: "Hello"},
			{ID: "a-1", Sender: SenderAssistant, Content: "Hi"},
		},
	}

	if err := cm.SaveTranscript(transcript); err != nil {
		t.Fatalf("SaveTranscript() error = %v", err)
	}
	loaded, err := cm.LoadTranscript("s1")
	if err != nil {
		t.Fatalf("LoadTranscript() error = %v", err)
	}
	if loaded.Label != "s1 Research" || len(loaded.Messages) != 2 || loaded.Messages[1].Content != "Hi" {
		t.Errorf("LoadTranscript() = %+v", loaded)
	}

	if _, err := cm.LoadTranscript("missing"); err == nil {
		t.Error("LoadTranscript() for an unknown session should fail")
	}
}

func TestCacheManager_ClearCache(t *testing.T) {
	cm := NewCacheManager(testutil.CreateTempDir(t))
	_ = cm.SaveSessions([]AgentSession{{ID: "s1"}}, "u")
	_ = cm.SaveTranscript(&Transcript{ID: "s1"})

	if err := cm.ClearCache(); err != nil {
		t.Fatalf("ClearCache() error = %v", err)
	}
	if _, err := os.Stat(cm.GetIndexPath()); !os.IsNotExist(err) {
		t.Error("index should be removed")
	}
	if _, err := os.Stat(cm.GetTranscriptPath("s1")); !os.IsNotExist(err) {
		t.Error("transcript should be removed")
	}

	// Clearing an empty cache is fine.
	if err := cm.ClearCache(); err != nil {
		t.Errorf("ClearCache() on empty cache error = %v", err)
	}
}
