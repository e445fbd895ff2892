package internal

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// PageBridge is the host browser collaborator. Every call may fail; BestEffortBridge hides that.
type PageBridge interface {
	PageContent(ctx context.Context) (string, error)
	PageInfo(ctx context.Context) ([]string, error)
	PageScreenshots(ctx context.Context) ([]string, error)
	OpenLink(ctx context.Context, url string) error
}

// BestEffortBridge swallows bridge errors and substitutes fallback values
type BestEffortBridge struct {
	bridge PageBridge
}

// NewBestEffortBridge wraps bridge. A nil bridge yields only fallbacks.
func NewBestEffortBridge(bridge PageBridge) *BestEffortBridge {
	return &BestEffortBridge{bridge: bridge}
}

// PageContent returns the current page text, or "" when unavailable
func (b *BestEffortBridge) PageContent(ctx context.Context) string {
	if b.bridge == nil {
		return ""
	}
	content, err := b.bridge.PageContent(ctx)
	if err != nil {
		LogDebug("Page content unavailable: %v", err)
		return ""
	}
	return content
}

// PageInfo returns [url, title], or two empty strings when unavailable
func (b *BestEffortBridge) PageInfo(ctx context.Context) []string {
	fallback := []string{"", ""}
	if b.bridge == nil {
		return fallback
	}
	info, err := b.bridge.PageInfo(ctx)
	if err != nil {
		LogDebug("Page info unavailable: %v", err)
		return fallback
	}
	for len(info) < 2 {
		info = append(info, "")
	}
	return info
}

// PageScreenshots returns base64 screenshots, empty when unavailable
func (b *BestEffortBridge) PageScreenshots(ctx context.Context) []string {
	if b.bridge == nil {
		return nil
	}
	shots, err := b.bridge.PageScreenshots(ctx)
	if err != nil {
		LogDebug("Page screenshots unavailable: %v", err)
		return nil
	}
	return shots
}

// OpenLink asks the host to open url and ignores failures
func (b *BestEffortBridge) OpenLink(ctx context.Context, url string) {
	if b.bridge == nil {
		return
	}
	if err := b.bridge.OpenLink(ctx, url); err != nil {
		LogWarn("Failed to open %s: %v", url, err)
	}
}

// SystemBridge opens links with the platform opener. There is no page to read outside the host browser.
type SystemBridge struct {
	// opener overrides the platform command, used by tests
	opener func(ctx context.Context, url string) error
}

// NewSystemBridge creates a bridge using xdg-open or open
func NewSystemBridge() *SystemBridge {
	return &SystemBridge{opener: openWithSystem}
}

func (b *SystemBridge) PageContent(ctx context.Context) (string, error) {
	return "", ErrBridgeUnavailable
}

func (b *SystemBridge) PageInfo(ctx context.Context) ([]string, error) {
	return nil, ErrBridgeUnavailable
}

func (b *SystemBridge) PageScreenshots(ctx context.Context) ([]string, error) {
	return nil, ErrBridgeUnavailable
}

func (b *SystemBridge) OpenLink(ctx context.Context, url string) error {
	if b.opener == nil {
		return ErrBridgeUnavailable
	}
	return b.opener(ctx, url)
}

func openWithSystem(ctx context.Context, url string) error {
	var name string
	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "linux":
		name = "xdg-open"
	default:
		return fmt.Errorf("%w on %s", ErrBridgeUnavailable, runtime.GOOS)
	}
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%w: %s not found", ErrBridgeUnavailable, name)
	}
	return exec.CommandContext(ctx, name, url).Start()
}

// DocumentURL is the UI address of a document
func DocumentURL(uiBaseURL, documentID string) string {
	return NormalizeURL(uiBaseURL) + "documents?documentId=" + documentID
}

// NormalizeURL guarantees a trailing slash
func NormalizeURL(url string) string {
	if url == "" || url[len(url)-1] != '/' {
		return url + "/"
	}
	return url
}
