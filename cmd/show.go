package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/wize-panels/internal"
	"github.com/spf13/cobra"
)

var (
	showLimit   int
	showOffline bool
)

var (
	sessionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginBottom(1)

	sessionMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243"))
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show the messages of a session",
	Long: `Fetch and display the message history of a session.

The transcript is cached; --offline shows the cached copy without contacting the backend.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		cache := internal.NewCacheManager(cfg.CacheDir)
		if showOffline {
			t, err := cache.LoadTranscript(args[0])
			if err != nil {
				return fmt.Errorf("no cached transcript for %s: %w", args[0], err)
			}
			displayTranscript(cmd.OutOrStdout(), t)
			return nil
		}

		api, err := newAPI()
		if err != nil {
			return err
		}

		var t *internal.Transcript
		err = internal.ShowProgress(ctx, "Fetching messages...", func() error {
			var fetchErr error
			t, fetchErr = fetchTranscript(ctx, api, args[0], cfg.SessionLimit)
			return fetchErr
		})
		if err != nil {
			return err
		}

		if err := cache.SaveTranscript(t); err != nil {
			internal.LogWarn("Failed to cache transcript: %v", err)
		}

		if showLimit > 0 && len(t.Messages) > showLimit {
			t.Messages = t.Messages[len(t.Messages)-showLimit:]
		}
		displayTranscript(cmd.OutOrStdout(), t)
		return nil
	},
}

func displayTranscript(w io.Writer, t *internal.Transcript) {
	_, _ = fmt.Fprintln(w, sessionHeaderStyle.Render("Session "+t.ID))

	meta := fmt.Sprintf("%d message(s)", len(t.Messages))
	switch {
	case t.AgentID != "":
		meta = "agent " + t.AgentID + " · " + meta
	case t.Model != nil:
		meta = fmt.Sprintf("model %s @%.1f · %s", t.Model.ID, t.Model.TemperatureOr(internal.DefaultTemperature), meta)
	}
	if t.FetchedAt != "" {
		meta += " · fetched " + t.FetchedAt
	}
	_, _ = fmt.Fprintln(w, sessionMetaStyle.Render(meta))
	_, _ = fmt.Fprintln(w)

	if len(t.Messages) == 0 {
		_, _ = fmt.Fprintln(w, sessionMetaStyle.Render("No messages"))
		return
	}
	_, _ = fmt.Fprintln(w, internal.RenderTranscript(t.Messages))
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVarP(&showLimit, "limit", "n", 0, "Show only the last N messages")
	showCmd.Flags().BoolVar(&showOffline, "offline", false, "Show the cached transcript")
}
