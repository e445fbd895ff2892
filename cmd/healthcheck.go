package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/wize-panels/internal"
	"github.com/iksnae/wize-panels/internal/bus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	healthcheckVerbose bool
	healthcheckTimeout time.Duration
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

type healthStatus int

const (
	healthOK healthStatus = iota
	healthWarn
	healthFail
)

type healthResult struct {
	Name   string
	Status healthStatus
	Detail string
}

// healthAPI is the part of the backend the health check calls
type healthAPI interface {
	Token(ctx context.Context) (string, error)
	CurrentUser(ctx context.Context) (internal.User, error)
	Models(ctx context.Context) ([]internal.Model, error)
	Agents(ctx context.Context) ([]internal.Agent, error)
	Sessions(ctx context.Context, limit int) ([]internal.AgentSession, error)
}

type healthTarget struct {
	api      healthAPI // nil when no base URL is configured
	stateDB  string
	relayURL string
	moduleID string
}

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that the panels can reach everything they need",
	Long: `Check the health of wize-panels by verifying:
  • The auth token in the modules files directory
  • The assistant backend (user, models, agents, sessions)
  • The local state database
  • The cross-panel relay`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), healthcheckTimeout)
		defer cancel()

		target := healthTarget{stateDB: cfg.StateDB, relayURL: cfg.RelayURL, moduleID: cfg.ModuleID}
		if api, err := newAPI(); err == nil {
			target.api = api
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(out, sectionStyle.Render("🔍 wize-panels Health Check"))
		_, _ = fmt.Fprintln(out)
		if healthcheckVerbose {
			_, _ = fmt.Fprintf(out, "   Files dir: %s\n   State DB: %s\n   Relay: %s\n   Module: %s\n\n",
				cfg.FilesDir, cfg.StateDB, cfg.RelayURL, cfg.ModuleID)
		}

		results := runHealthChecks(ctx, target)
		failed := printHealth(out, results)

		_, _ = fmt.Fprintln(out)
		_, _ = fmt.Fprintln(out, sectionStyle.Render("📊 Summary"))
		if failed > 0 {
			_, _ = fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("❌ %d check(s) failed", failed)))
			return fmt.Errorf("health check failed")
		}
		_, _ = fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
		return nil
	},
}

func runHealthChecks(ctx context.Context, target healthTarget) []healthResult {
	results := []healthResult{checkToken(ctx, target.api)}
	results = append(results, checkBackend(ctx, target.api)...)
	results = append(results, checkStateDB(ctx, target.stateDB), checkRelay(ctx, target.relayURL, target.moduleID))
	return results
}

func checkToken(ctx context.Context, api healthAPI) healthResult {
	r := healthResult{Name: "Auth token"}
	if api == nil {
		r.Status, r.Detail = healthFail, internal.ErrBaseURLNotSet.Error()
		return r
	}
	token, err := api.Token(ctx)
	switch {
	case err != nil:
		r.Status, r.Detail = healthFail, internal.ErrModulesUnavailable.Error()
	case token == "":
		r.Status, r.Detail = healthWarn, "not logged in"
	default:
		r.Detail = "present"
	}
	return r
}

// checkBackend calls the backend endpoints concurrently
func checkBackend(ctx context.Context, api healthAPI) []healthResult {
	if api == nil {
		return []healthResult{{Name: "Backend", Status: healthFail, Detail: internal.ErrBaseURLNotSet.Error()}}
	}

	checks := []struct {
		name string
		fn   func() (string, error)
	}{
		{"Backend user", func() (string, error) {
			u, err := api.CurrentUser(ctx)
			return u.UserName, err
		}},
		{"Backend models", func() (string, error) {
			m, err := api.Models(ctx)
			return fmt.Sprintf("%d model(s)", len(m)), err
		}},
		{"Backend agents", func() (string, error) {
			a, err := api.Agents(ctx)
			return fmt.Sprintf("%d agent(s)", len(a)), err
		}},
		{"Backend sessions", func() (string, error) {
			s, err := api.Sessions(ctx, 1)
			return fmt.Sprintf("reachable (%d shown)", len(s)), err
		}},
	}

	results := make([]healthResult, len(checks))
	var g errgroup.Group
	for i, p := range checks {
		i, p := i, p
		g.Go(func() error {
			detail, err := p.fn()
			results[i] = healthResult{Name: p.name, Detail: detail}
			if err != nil {
				results[i].Status, results[i].Detail = healthFail, err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func checkStateDB(ctx context.Context, path string) healthResult {
	r := healthResult{Name: "State database"}
	if _, err := os.Stat(path); err != nil {
		r.Status, r.Detail = healthWarn, "not created yet ("+path+")"
		return r
	}
	db, err := internal.OpenDatabase(path)
	if err != nil {
		r.Status, r.Detail = healthWarn, err.Error()
		return r
	}
	defer func() { _ = db.Close() }()

	docs, err := internal.NewStorage(db).List(ctx, internal.ChatStateCollection)
	if err != nil {
		r.Status, r.Detail = healthFail, err.Error()
		return r
	}
	r.Detail = fmt.Sprintf("%d chat state document(s)", len(docs))
	return r
}

func checkRelay(ctx context.Context, relayURL, moduleID string) healthResult {
	r := healthResult{Name: "Relay"}
	conn := bus.Dial(relayURL, moduleID, "healthcheck", nil)
	if err := conn.Connect(ctx); err != nil {
		r.Status, r.Detail = healthWarn, err.Error()
		return r
	}
	conn.Disconnect()
	r.Detail = relayURL
	return r
}

// printHealth prints every result and returns the number of failures
func printHealth(w io.Writer, results []healthResult) int {
	failed := 0
	for _, r := range results {
		var mark string
		switch r.Status {
		case healthOK:
			mark = successStyle.Render("✅ " + r.Name)
		case healthWarn:
			mark = warningStyle.Render("⚠️  " + r.Name)
		default:
			mark = errorStyle.Render("❌ " + r.Name)
			failed++
		}
		_, _ = fmt.Fprintf(w, "%s: %s\n", mark, r.Detail)
	}
	return failed
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVar(&healthcheckVerbose, "details", false, "Show detailed diagnostic information")
	healthcheckCmd.Flags().DurationVar(&healthcheckTimeout, "timeout", 10*time.Second, "Overall time limit")
}
