package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/wize-panels/internal"
	"github.com/iksnae/wize-panels/internal/bus"
	"github.com/spf13/cobra"
)

var (
	sessionsClearCache bool
	sessionsLimit      int
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"list"},
	Short:   "List agent sessions",
	Long: `List the agent sessions of the logged-in user.

When the backend cannot be reached the last fetched list is shown from the cache.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		dir, err := newDirectory(nil, newSurface())
		if err != nil {
			return err
		}

		var sessions []internal.AgentSession
		err = internal.ShowProgress(ctx, "Loading sessions...", func() error {
			var loadErr error
			sessions, loadErr = dir.Load(ctx)
			return loadErr
		})
		if err != nil {
			return fmt.Errorf("failed to load sessions: %w", err)
		}

		displaySessions(cmd.OutOrStdout(), sessions, "", time.Now())
		return nil
	},
}

var sessionsOpenCmd = &cobra.Command{
	Use:   "open <session-id|number>",
	Short: "Announce a session to the chat panel",
	Long: `Send OPEN_SESSION for a session through the relay.

The argument is a session id or its number in the session list.
The chat panel adopts the session and answers with SESSION_ACTIVE.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		surface := newSurface()
		dir, conn, err := newDirectoryPanel(surface)
		if err != nil {
			return err
		}
		openBus(ctx, conn)
		defer conn.Disconnect()

		sessions, err := dir.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load sessions: %w", err)
		}

		session, err := pickSession(sessions, args[0])
		if err != nil {
			return err
		}
		if !conn.Connected() {
			internal.PrintWarning("Relay is not connected, the chat panel will not see this session")
		}
		dir.Open(session)
		internal.PrintSuccess(fmt.Sprintf("Opened %s", session.Label()))
		return nil
	},
}

var sessionsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the session panel",
	Long: `Keep the session list on screen and follow the chat panel.

The list is loaded as soon as a token is available and redrawn whenever the
chat panel reports another active session. Type a number or a session id and
press enter to open it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		surface := newSurface()
		dir, conn, err := newDirectoryPanel(surface)
		if err != nil {
			return err
		}
		handleFrames(conn, dir.HandleFrame)
		openBus(ctx, conn)
		defer conn.Disconnect()

		out := cmd.OutOrStdout()
		dir.OnChange(func() {
			displaySessions(out, dir.Sessions(), dir.Current(), time.Now())
		})

		watcher := internal.NewTokenWatcher(newTokenStore(), func(string) {
			if _, err := dir.Load(ctx); err != nil {
				internal.LogWarn("Session list not loaded: %v", err)
			}
		})
		go func() {
			if err := watcher.Run(ctx); err != nil {
				internal.LogWarn("Token watcher stopped: %v", err)
			}
		}()

		lines := readLines(ctx, cmd.InOrStdin())
		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if line == "" {
					continue
				}
				session, err := pickSession(dir.Sessions(), line)
				if err != nil {
					internal.PrintWarning(err.Error())
					continue
				}
				dir.Open(session)
			}
		}
	},
}

// newDirectory wires a Directory to the backend and the session cache
func newDirectory(pub internal.Publisher, reporter internal.ErrorReporter) (*internal.Directory, error) {
	api, err := newAPI()
	if err != nil {
		return nil, err
	}

	cache := internal.NewCacheManager(cfg.CacheDir)
	if sessionsClearCache {
		if err := cache.ClearCache(); err != nil {
			internal.LogWarn("Failed to clear cache: %v", err)
		} else {
			internal.LogInfo("Cache cleared")
		}
	}

	limit := cfg.SessionLimit
	if sessionsLimit > 0 {
		limit = sessionsLimit
	}
	return internal.NewDirectory(api, pub, reporter, cache, cfg.BaseURL, limit), nil
}

// newDirectoryPanel creates the left panel's directory publishing on a not yet connected relay conn
func newDirectoryPanel(reporter internal.ErrorReporter) (*internal.Directory, *bus.Conn, error) {
	conn := dialBus("left", reporter)
	dir, err := newDirectory(conn, reporter)
	if err != nil {
		return nil, nil, err
	}
	return dir, conn, nil
}

// pickSession resolves a 1-based list number or a session id
func pickSession(sessions []internal.AgentSession, arg string) (internal.AgentSession, error) {
	arg = strings.TrimSpace(arg)
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(sessions) {
			return internal.AgentSession{}, fmt.Errorf("no session number %d (1-%d)", n, len(sessions))
		}
		return sessions[n-1], nil
	}
	for _, s := range sessions {
		if s.ID == arg || s.SessionID == arg {
			return s, nil
		}
	}
	return internal.AgentSession{}, fmt.Errorf("session %q not found", arg)
}

func displaySessions(w io.Writer, sessions []internal.AgentSession, current string, now time.Time) {
	if len(sessions) == 0 {
		_, _ = fmt.Fprintln(w, headerStyle.Render("📋 No sessions found"))
		return
	}

	_, _ = fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("📋 Found %d session(s)", len(sessions))))
	_, _ = fmt.Fprintln(w)

	for i, s := range sessions {
		line := internal.RenderSessionLine(i+1, s, current != "" && (s.ID == current || s.SessionID == current))
		if updated := s.GetUpdatedAt(); !updated.IsZero() {
			line += "  " + dateStyle.Render(formatWhen(updated, now))
		}
		_, _ = fmt.Fprintln(w, line)
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, idStyle.Render("💡 Tip: `wize-panels sessions open <number>` opens a session in the chat panel"))
}

// formatWhen shortens timestamps the closer they are to now
func formatWhen(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < 24*time.Hour:
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsOpenCmd)
	sessionsCmd.AddCommand(sessionsWatchCmd)
	sessionsCmd.PersistentFlags().BoolVar(&sessionsClearCache, "clear-cache", false, "Clear the session cache before loading")
	sessionsCmd.PersistentFlags().IntVar(&sessionsLimit, "limit", 0, "Maximum number of sessions to fetch (default from config)")
}
