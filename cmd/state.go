package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/iksnae/wize-panels/internal"
	"github.com/spf13/cobra"
)

var (
	stateFormat     string
	stateCollection string
	stateAll        bool
)

// stateCmd represents the state command
var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the chat state mirrored in the local database",
	Long: `Show what the chat panel restores on startup.

Examples:
  wize-panels state                         # Summary of the restored chat state
  wize-panels state --format json           # The stored document as JSON
  wize-panels state --all                   # Every document of the collection`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfg.StateDB); err != nil {
			internal.PrintWarning(fmt.Sprintf("No state database at %s yet", cfg.StateDB))
			return nil
		}
		db, err := internal.OpenDatabase(cfg.StateDB)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		store := internal.NewStorage(db)
		if stateAll {
			return listStateDocuments(cmd.Context(), cmd.OutOrStdout(), store, stateCollection)
		}
		return showChatState(cmd.Context(), cmd.OutOrStdout(), internal.NewStateMirror(store), stateFormat)
	},
}

func showChatState(ctx context.Context, w io.Writer, mirror *internal.StateMirror, format string) error {
	state, found, err := mirror.Load(ctx)
	if err != nil {
		return err
	}
	if !found {
		_, _ = fmt.Fprintln(w, "⚠️  No chat state stored")
		return nil
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}

	restored := internal.NewChatState()
	restored.SelectedAgent = state.SelectedAgent
	restored.SelectedModel = state.SelectedModel
	if state.Temperature != nil {
		restored.Temperature = *state.Temperature
	}
	_, _ = fmt.Fprintf(w, "📋 Document: %s\n", mirror.DocumentID())
	_, _ = fmt.Fprintf(w, "🎯 Target: %s\n", internal.RenderTarget(restored))
	_, _ = fmt.Fprintf(w, "🔗 Session: %s (messages %s)\n", orDash(state.AgentSessionID), orDash(state.MsgSessionID))
	_, _ = fmt.Fprintf(w, "💬 Messages: %d\n", len(state.Messages))
	if len(state.Messages) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, internal.RenderTranscript(state.Messages))
	}
	return nil
}

func listStateDocuments(ctx context.Context, w io.Writer, store internal.DocumentStore, collection string) error {
	docs, err := store.List(ctx, collection)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "📦 Collection: %s\n", collection)
	_, _ = fmt.Fprintf(w, "📊 Documents: %d\n\n", len(docs))
	for i, d := range docs {
		marker := " "
		if i == len(docs)-1 {
			marker = "▶"
		}
		_, _ = fmt.Fprintf(w, "%s %s  %d bytes\n", marker, d.ID, len(d.Body))
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.Flags().StringVar(&stateFormat, "format", "text", "Output format (text, json)")
	stateCmd.Flags().StringVar(&stateCollection, "collection", internal.ChatStateCollection, "Collection listed by --all")
	stateCmd.Flags().BoolVar(&stateAll, "all", false, "List every document of the collection")
}
