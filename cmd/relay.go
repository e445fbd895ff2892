package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/iksnae/wize-panels/internal"
	"github.com/iksnae/wize-panels/internal/bus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var relayAddr string

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the cross-panel relay",
	Long: `Run the WebSocket relay both panels connect to.

Every frame a panel sends is forwarded to the other panels of the same module.
Frames are not stored: a panel that is not connected misses them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, path, err := relayListenAddr(cfg.RelayURL)
		if err != nil {
			return err
		}
		if relayAddr != "" {
			addr = relayAddr
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		internal.PrintSuccess(fmt.Sprintf("Relay listening on ws://%s%s", listener.Addr(), path))
		return serveRelay(ctx, listener, path)
	},
}

// serveRelay serves the hub on path until ctx is done
func serveRelay(ctx context.Context, listener net.Listener, path string) error {
	hub := bus.NewHub()
	mux := http.NewServeMux()
	mux.Handle(path, hub)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		internal.LogInfo("Relay shutting down")
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// relayListenAddr derives the listen address and handler path from the relay URL
func relayListenAddr(relayURL string) (addr, path string, err error) {
	u, err := url.Parse(relayURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid relay URL %q: %w", relayURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", "", fmt.Errorf("relay URL must use ws or wss, got %q", relayURL)
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "wss" {
			port = "443"
		}
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	return net.JoinHostPort(host, port), path, nil
}

func init() {
	rootCmd.AddCommand(relayCmd)
	relayCmd.Flags().StringVar(&relayAddr, "addr", "", "Listen address (default: host and port of the relay URL)")
}
