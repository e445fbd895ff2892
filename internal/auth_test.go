package internal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iksnae/wize-panels/testutil"
)

func TestFileTokenStore_Token(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, dir string)
		want    string
		wantErr bool
	}{
		{
			name:  "missing file is not logged in",
			setup: func(t *testing.T, dir string) {},
			want:  "",
		},
		{
			name: "token is trimmed",
			setup: func(t *testing.T, dir string) {
				testutil.CreateTokenFixture(t, dir, "  tok-123\n")
			},
			want: "tok-123",
		},
		{
			name: "unreadable path",
			setup: func(t *testing.T, dir string) {
				if err := os.MkdirAll(filepath.Join(dir, TokenFileName), 0755); err != nil {
					t.Fatal(err)
				}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := testutil.CreateTempDir(t)
			tt.setup(t, dir)

			got, err := NewFileTokenStore(dir).Token(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Token() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var transportErr *TransportError
				if !errors.As(err, &transportErr) {
					t.Errorf("Token() error = %T, want *TransportError", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Token() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileTokenStore_Logout(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	testutil.CreateTokenFixture(t, dir, "tok")
	store := NewFileTokenStore(dir)

	if err := store.Logout(); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	got, err := store.Token(context.Background())
	if err != nil || got != "" {
		t.Errorf("Token() after logout = %q, %v", got, err)
	}
}

func TestStaticToken(t *testing.T) {
	got, err := StaticToken("abc").Token(context.Background())
	if err != nil || got != "abc" {
		t.Errorf("Token() = %q, %v", got, err)
	}
}

func TestTokenWatcher_FiresWhenTokenAppears(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	store := NewFileTokenStore(dir)

	ready := make(chan string, 4)
	watcher := NewTokenWatcher(store, func(token string) { ready <- token })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	testutil.CreateTokenFixture(t, dir, "fresh-token")

	select {
	case got := <-ready:
		if got != "fresh-token" {
			t.Errorf("onReady token = %q, want fresh-token", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("token watcher did not fire")
	}
}

func TestTokenWatcher_ExistingTokenFiresOnce(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	testutil.CreateTokenFixture(t, dir, "existing")

	var calls []string
	watcher := NewTokenWatcher(NewFileTokenStore(dir), func(token string) { calls = append(calls, token) })
	watcher.check(context.Background())
	watcher.check(context.Background())

	if len(calls) != 1 || calls[0] != "existing" {
		t.Errorf("onReady calls = %v, want [existing]", calls)
	}
}
