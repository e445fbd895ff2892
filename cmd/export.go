package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/iksnae/wize-panels/internal"
	"github.com/iksnae/wize-panels/internal/export"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	format       string
	outputDir    string
	exportAll    bool
	fetchWorkers int
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export [session-id...]",
	Short: "Export session transcripts to files",
	Long: `Export session transcripts to various formats (jsonl, md, yaml, json).

Pass session ids to export those sessions, or --all to export every listed session.
Use 'wize-panels sessions' to see available session ids.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !exportAll {
			return fmt.Errorf("pass session ids or --all")
		}

		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}
		api, err := newAPI()
		if err != nil {
			return err
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		var (
			sessions    []internal.AgentSession
			transcripts []*internal.Transcript
		)
		steps := []internal.ProgressStep{
			{
				Message: "Loading sessions",
				Fn: func() error {
					listed, err := api.Sessions(ctx, cfg.SessionLimit)
					if err != nil {
						return fmt.Errorf("failed to load sessions: %w", err)
					}
					listed = internal.NewDeduplicator().Deduplicate(listed)
					sessions, err = selectSessions(listed, args)
					return err
				},
			},
			{
				Message: "Fetching transcripts",
				Fn: func() error {
					var fetchErr error
					transcripts, fetchErr = fetchTranscripts(ctx, api, sessions, fetchWorkers)
					return fetchErr
				},
			},
		}
		if err := internal.ShowProgressWithSteps(ctx, steps); err != nil {
			return err
		}

		cache := internal.NewCacheManager(cfg.CacheDir)
		for _, t := range transcripts {
			if err := cache.SaveTranscript(t); err != nil {
				internal.LogWarn("Failed to cache transcript %s: %v", t.ID, err)
			}
		}

		written, err := writeTranscripts(outputDir, exporter, transcripts)
		if err != nil {
			return err
		}
		internal.PrintSuccess(fmt.Sprintf("Export complete: %d session(s) exported to %s", written, outputDir))
		return nil
	},
}

// selectSessions keeps the sessions named by ids, in the order given. No ids keeps everything.
func selectSessions(listed []internal.AgentSession, ids []string) ([]internal.AgentSession, error) {
	if len(ids) == 0 {
		return listed, nil
	}
	selected := make([]internal.AgentSession, 0, len(ids))
	for _, id := range ids {
		s, err := pickSession(listed, id)
		if err != nil {
			return nil, fmt.Errorf("%w (use 'wize-panels sessions' to see available sessions)", err)
		}
		selected = append(selected, s)
	}
	return selected, nil
}

// fetchTranscripts loads every history with at most workers requests in flight.
// Failed sessions are logged and skipped.
func fetchTranscripts(ctx context.Context, api historySource, sessions []internal.AgentSession, workers int) ([]*internal.Transcript, error) {
	if workers <= 0 {
		workers = 4
	}
	results := make([]*internal.Transcript, len(sessions))

	var (
		mu     sync.Mutex
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range sessions {
		i, s := i, s
		g.Go(func() error {
			t, err := transcriptFor(gctx, api, s)
			if err != nil {
				internal.LogError("%v", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			results[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	transcripts := make([]*internal.Transcript, 0, len(results))
	for _, t := range results {
		if t != nil {
			transcripts = append(transcripts, t)
		}
	}
	if len(transcripts) == 0 && failed > 0 {
		return nil, fmt.Errorf("failed to fetch %d transcript(s)", failed)
	}
	return transcripts, nil
}

// writeTranscripts writes one file per transcript and returns how many were written
func writeTranscripts(dir string, exporter export.Exporter, transcripts []*internal.Transcript) (int, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	written := 0
	for _, t := range transcripts {
		path := filepath.Join(dir, fmt.Sprintf("session_%s.%s", t.ID, exporter.Extension()))
		file, err := os.Create(path)
		if err != nil {
			internal.LogError("Failed to create file %s: %v", path, err)
			continue
		}
		if err := exporter.Export(t, file); err != nil {
			_ = file.Close()
			internal.LogError("Failed to export session %s: %v", t.ID, err)
			continue
		}
		if err := file.Close(); err != nil {
			internal.LogWarn("Failed to close file %s: %v", path, err)
			continue
		}
		written++
	}
	return written, nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&outputDir, "out", "o", "./exports", "Output directory")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "Export every listed session")
	exportCmd.Flags().IntVar(&fetchWorkers, "workers", 4, "Concurrent history requests")
}
