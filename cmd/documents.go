package cmd

import (
	"fmt"

	"github.com/iksnae/wize-panels/internal"
	"github.com/spf13/cobra"
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "List documents usable as @title references",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		api, err := newAPI()
		if err != nil {
			return err
		}
		docs, err := api.Documents(ctx, cfg.DocumentLimit)
		if err != nil {
			return fmt.Errorf("failed to load documents: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(docs) == 0 {
			_, _ = fmt.Fprintln(out, headerStyle.Render("📄 No documents found"))
			return nil
		}
		_, _ = fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("📄 Found %d document(s)", len(docs))))
		_, _ = fmt.Fprintln(out)
		for _, d := range docs {
			_, _ = fmt.Fprintf(out, "  %s  @%s\n", idStyle.Render(d.ID), d.Title)
		}
		return nil
	},
}

var documentsOpenCmd = &cobra.Command{
	Use:   "open <document-id>",
	Short: "Open a document in the browser",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.UIBaseURL == "" {
			return fmt.Errorf("UI base URL is not set (WIZE_UI_BASE_URL)")
		}
		link := internal.DocumentURL(cfg.UIBaseURL, args[0])
		internal.NewBestEffortBridge(internal.NewSystemBridge()).OpenLink(cmd.Context(), link)
		internal.PrintInfo("Opening " + link)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(documentsCmd)
	documentsCmd.AddCommand(documentsOpenCmd)
}
