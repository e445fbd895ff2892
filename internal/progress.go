package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

var (
	progressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Destinations of the Print helpers
var (
	printOut io.Writer = os.Stdout
	printErr io.Writer = os.Stderr
)

// ProgressStep is one backend round trip of a multi-step command
type ProgressStep struct {
	Message string
	Fn      func() error
}

// progressView draws a spinner on a terminal and logs through zap otherwise
type progressView struct {
	out  io.Writer
	tty  bool
	tick time.Duration
}

func stderrProgress() progressView {
	return progressView{out: os.Stderr, tty: isTerminal(os.Stderr), tick: 100 * time.Millisecond}
}

// ShowProgress runs fn while showing message. It returns fn's error, or ctx's error when
// ctx ends first; fn is then left to finish on its own.
func ShowProgress(ctx context.Context, message string, fn func() error) error {
	return stderrProgress().run(ctx, message, fn)
}

// ShowProgressWithSteps runs steps in order and stops at the first failure, which is
// returned prefixed with the step message.
func ShowProgressWithSteps(ctx context.Context, steps []ProgressStep) error {
	return stderrProgress().runSteps(ctx, steps)
}

func (v progressView) runSteps(ctx context.Context, steps []ProgressStep) error {
	for i, step := range steps {
		label := step.Message
		if len(steps) > 1 {
			label = fmt.Sprintf("[%d/%d] %s", i+1, len(steps), step.Message)
		}
		if err := v.run(ctx, label, step.Fn); err != nil {
			return fmt.Errorf("%s: %w", step.Message, err)
		}
	}
	return nil
}

func (v progressView) run(ctx context.Context, message string, fn func() error) error {
	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- fn() }()

	stop := func() {}
	if v.tty {
		stop = v.spin(message)
	}

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	stop()
	v.finish(message, time.Since(start), err)
	return err
}

// spin animates message until the returned function is called
func (v progressView) spin(message string) func() {
	quit := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(v.tick)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-quit:
				return
			case <-ticker.C:
				_, _ = fmt.Fprintf(v.out, "\r%s %s", progressStyle.Render(spinnerFrames[i%len(spinnerFrames)]), message)
			}
		}
	}()
	return func() {
		close(quit)
		<-exited
	}
}

func (v progressView) finish(message string, elapsed time.Duration, err error) {
	if v.tty {
		mark := successStyle.Render("✓")
		if err != nil {
			mark = errorStyle.Render("✗")
		}
		_, _ = fmt.Fprintf(v.out, "\r%s %s\n", mark, message)
		return
	}

	log := Logger().Named("progress")
	if err != nil {
		log.Warn(message, zap.Duration("elapsed", elapsed), zap.Error(err))
		return
	}
	log.Info(message, zap.Duration("elapsed", elapsed))
}

// isTerminal checks if the writer is a terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}

// printLine writes a styled mark on terminals and plainPrefix elsewhere
func printLine(w io.Writer, style lipgloss.Style, mark, plainPrefix, message string) {
	if isTerminal(w) {
		_, _ = fmt.Fprintf(w, "%s %s\n", style.Render(mark), message)
		return
	}
	_, _ = fmt.Fprintf(w, "%s%s\n", plainPrefix, message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	printLine(printOut, successStyle, "✓", "", message)
}

// PrintError prints an error message
func PrintError(message string) {
	printLine(printErr, errorStyle, "✗", "", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	printLine(printOut, progressStyle, "ℹ", "", message)
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	printLine(printErr, warningStyle, "⚠", "WARNING: ", message)
}
