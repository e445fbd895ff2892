package internal

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// TokenFileName is the token file the modules server writes into its files directory
const TokenFileName = "aiwize-token.txt"

// ErrModulesUnavailable is reported when the token file cannot be read
var ErrModulesUnavailable = errors.New("modules server is not available now")

// FileTokenStore reads the bearer token from the modules files directory
type FileTokenStore struct {
	path string
}

// NewFileTokenStore creates a store for filesDir/aiwize-token.txt
func NewFileTokenStore(filesDir string) *FileTokenStore {
	return &FileTokenStore{path: filepath.Join(filesDir, TokenFileName)}
}

// Path returns the token file path
func (s *FileTokenStore) Path() string {
	return s.path
}

// Token returns the stored token. A missing file means "not logged in yet" and is not an error.
func (s *FileTokenStore) Token(ctx context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", &TransportError{Op: "read", URL: s.path, Err: err}
	}
	return strings.TrimSpace(string(data)), nil
}

// Logout clears the stored token
func (s *FileTokenStore) Logout() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return &TransportError{Op: "write", URL: s.path, Err: err}
	}
	if err := os.WriteFile(s.path, nil, 0600); err != nil {
		return &TransportError{Op: "write", URL: s.path, Err: err}
	}
	return nil
}

// StaticToken is a TokenSource with a fixed token
type StaticToken string

// Token returns the fixed token
func (t StaticToken) Token(ctx context.Context) (string, error) {
	return string(t), nil
}

// TokenWatcher signals when a token becomes available or changes
type TokenWatcher struct {
	store   *FileTokenStore
	onReady func(token string)

	mu   sync.Mutex
	last string
}

// NewTokenWatcher creates a watcher calling onReady with every new non-empty token
func NewTokenWatcher(store *FileTokenStore, onReady func(token string)) *TokenWatcher {
	return &TokenWatcher{store: store, onReady: onReady}
}

// Run checks the token once, then watches its directory until ctx is done
func (w *TokenWatcher) Run(ctx context.Context) error {
	dir := filepath.Dir(w.store.Path())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	w.check(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.store.Path()) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.check(ctx)
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.reset()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			LogWarn("token watcher error: %v", err)
		}
	}
}

func (w *TokenWatcher) check(ctx context.Context) {
	token, err := w.store.Token(ctx)
	if err != nil {
		LogWarn("failed to read token: %v", err)
		return
	}

	w.mu.Lock()
	changed := token != "" && token != w.last
	w.last = token
	w.mu.Unlock()

	if changed && w.onReady != nil {
		w.onReady(token)
	}
}

func (w *TokenWatcher) reset() {
	w.mu.Lock()
	w.last = ""
	w.mu.Unlock()
}
