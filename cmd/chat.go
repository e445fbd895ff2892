package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/iksnae/wize-panels/internal"
	"github.com/spf13/cobra"
)

const chatHelp = `Type a message and press enter to send it. Commands:
  /agent <id|name>   chat with an agent
  /model <id>        chat with a raw model
  /none              clear the agent and model
  /temp <value>      set the model temperature
  /agents /models    list the catalog
  /docs              list documents
  /doc <title>       reference a document in the next message
  /page              add the current page content to the next message
  /draft             show the pending message
  /new               start a new session (clears agent, model and temperature)
  /reset             start a new conversation with the same agent or model
  /status            show the current target and session
  /history           print the conversation
  /dismiss           clear the last error
  /quit              leave`

var chatLogFile string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run the chat panel",
	Long: `Run the chat panel.

The panel restores its last conversation from the local state database, adopts
sessions announced by the session panel, and streams replies into the terminal.
` + chatHelp,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		if chatLogFile != "" {
			f, err := os.OpenFile(chatLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			defer func() { _ = f.Close() }()
			internal.SetLogOutput(f)
			defer internal.SetLogOutput(os.Stderr)
		}

		api, err := newAPI()
		if err != nil {
			return err
		}
		surface := newSurface()

		var opts []internal.EngineOption
		if mirror, closeDB := openMirror(); mirror != nil {
			defer closeDB()
			opts = append(opts, internal.WithMirror(mirror))
		}

		docs := internal.NewDocumentCache(api, surface, cfg.DocumentLimit)
		conn := dialBus("right", surface)
		opts = append(opts, internal.WithDocuments(docs), internal.WithPublisher(conn))
		engine := internal.NewEngine(api, surface, opts...)

		out := cmd.OutOrStdout()
		panel := newChatPanel(engine, docs, surface, internal.NewBestEffortBridge(internal.NewSystemBridge()), out)
		engine.Subscribe(panel.printer.Observe)

		handleFrames(conn, engine.HandleFrame)
		openBus(ctx, conn)
		defer conn.Disconnect()

		engine.Restore(ctx)

		watcher := internal.NewTokenWatcher(newTokenStore(), func(string) {
			if err := engine.LoadCatalog(ctx); err != nil {
				internal.LogWarn("Catalog incomplete: %v", err)
			}
			if _, err := docs.Refresh(ctx); err != nil {
				internal.LogWarn("Documents not loaded: %v", err)
			}
		})
		go func() {
			if err := watcher.Run(ctx); err != nil {
				internal.LogWarn("Token watcher stopped: %v", err)
			}
		}()

		_, _ = fmt.Fprintln(out, headerStyle.Render("💬 AI Wize Chat"))
		_, _ = fmt.Fprintln(out, idStyle.Render(internal.RenderTarget(engine.State())+" · /help for commands"))

		lines := readLines(ctx, cmd.InOrStdin())
		for {
			select {
			case <-ctx.Done():
				engine.Wait()
				return nil
			case line, ok := <-lines:
				if !ok || panel.Handle(ctx, line) {
					engine.Wait()
					return nil
				}
			}
		}
	},
}

// openMirror opens the state database. Without it the panel runs without persistence.
func openMirror() (*internal.StateMirror, func()) {
	if err := os.MkdirAll(filepath.Dir(cfg.StateDB), 0755); err != nil {
		internal.LogWarn("State directory unavailable, chat state will not be saved: %v", err)
		return nil, func() {}
	}
	db, err := internal.OpenDatabase(cfg.StateDB)
	if err != nil {
		internal.LogWarn("State database unavailable, chat state will not be saved: %v", err)
		return nil, func() {}
	}
	return internal.NewStateMirror(internal.NewStorage(db)), func() { _ = db.Close() }
}

// chatPanel turns input lines into engine operations
type chatPanel struct {
	engine   *internal.Engine
	docs     *internal.DocumentCache
	surface  *internal.ErrorSurface
	bridge   *internal.BestEffortBridge
	composer *internal.Composer
	printer  *transcriptPrinter
	out      io.Writer
}

func newChatPanel(engine *internal.Engine, docs *internal.DocumentCache, surface *internal.ErrorSurface, bridge *internal.BestEffortBridge, out io.Writer) *chatPanel {
	return &chatPanel{
		engine:   engine,
		docs:     docs,
		surface:  surface,
		bridge:   bridge,
		composer: internal.NewComposer(),
		printer:  newTranscriptPrinter(out),
		out:      out,
	}
}

// Handle runs one input line and reports whether the panel should quit
func (p *chatPanel) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		p.send(ctx, line)
		return false
	}

	command := strings.Fields(line)[0]
	arg := strings.TrimSpace(strings.TrimPrefix(line, command))

	switch command {
	case "/quit", "/exit":
		return true
	case "/help":
		p.println(chatHelp)
	case "/new":
		p.engine.StartNewSession()
		p.println("New session")
	case "/reset":
		p.engine.ResetConversation()
		p.println("Conversation cleared")
	case "/agent":
		p.selectTarget(internal.TargetAgent, arg)
	case "/model":
		p.selectTarget(internal.TargetModel, arg)
	case "/none":
		p.engine.SelectTarget(internal.Target{Kind: internal.TargetNone})
		p.println(internal.RenderTarget(p.engine.State()))
	case "/temp":
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil || v < 0 || v > 2 {
			internal.PrintWarning("temperature must be a number between 0 and 2")
			return false
		}
		p.engine.SetTemperature(v)
		p.println(internal.RenderTarget(p.engine.State()))
	case "/agents":
		for _, a := range p.engine.State().Agents {
			p.println(fmt.Sprintf("  %s  %s", a.ID, a.DisplayName()))
		}
	case "/models":
		for _, m := range p.engine.State().Models {
			p.println("  " + m.ID)
		}
	case "/docs":
		for _, d := range p.docs.Documents() {
			p.println(fmt.Sprintf("  %s  @%s", d.ID, d.Title))
		}
	case "/doc":
		if _, ok := p.docs.Lookup(arg); !ok {
			internal.PrintWarning(fmt.Sprintf("no document titled %q", arg))
			return false
		}
		p.composer.InsertDocument(arg)
		p.println("Draft: " + p.composer.Text())
	case "/page":
		content := p.bridge.PageContent(ctx)
		if content == "" {
			internal.PrintWarning("page content is not available")
			return false
		}
		p.composer.InsertAtCaret(content + " ")
		p.println("Page content added to the draft")
	case "/draft":
		p.println("Draft: " + p.composer.Text())
	case "/status":
		s := p.engine.State()
		p.println(internal.RenderTarget(s))
		if s.AgentSessionID != "" || s.MsgSessionID != "" {
			p.println(fmt.Sprintf("session %s (messages %s)", s.AgentSessionID, s.MsgSessionID))
		}
		if last := p.surface.Last(); last != "" {
			p.println("last error: " + last)
		}
	case "/history":
		p.println(internal.RenderTranscript(p.engine.State().Messages))
	case "/dismiss":
		p.surface.Dismiss()
	default:
		internal.PrintWarning(fmt.Sprintf("unknown command %s, see /help", command))
	}
	return false
}

// send submits the draft followed by text. A refused message goes back to the draft.
func (p *chatPanel) send(ctx context.Context, text string) {
	p.composer.SetCaret(len([]rune(p.composer.Text())))
	p.composer.InsertAtCaret(text)
	message := p.composer.Text()
	p.composer.Clear()

	err := p.engine.Send(ctx, message)
	p.printer.EndStream()

	var refused *internal.PreconditionError
	if errors.As(err, &refused) {
		p.composer.SetText(message)
	}
	if err != nil {
		internal.LogDebug("Send failed: %v", err)
	}
}

// selectTarget resolves arg against the catalog by id or name. Unknown ids are used as is.
func (p *chatPanel) selectTarget(kind internal.TargetKind, arg string) {
	if arg == "" {
		internal.PrintWarning("missing id")
		return
	}
	id := arg
	s := p.engine.State()
	switch kind {
	case internal.TargetAgent:
		for _, a := range s.Agents {
			if a.ID == arg || strings.EqualFold(a.DisplayName(), arg) {
				id = a.ID
				break
			}
		}
	case internal.TargetModel:
		for _, m := range s.Models {
			if strings.EqualFold(m.ID, arg) {
				id = m.ID
				break
			}
		}
	}
	p.engine.SelectTarget(internal.Target{Kind: kind, ID: id})
	p.println(internal.RenderTarget(p.engine.State()))
}

func (p *chatPanel) println(s string) {
	_, _ = fmt.Fprintln(p.out, s)
}

// transcriptPrinter prints new messages and streams the growing reply of the current placeholder
type transcriptPrinter struct {
	mu        sync.Mutex
	out       io.Writer
	seen      map[string]bool
	streaming string
	printed   string
}

func newTranscriptPrinter(out io.Writer) *transcriptPrinter {
	return &transcriptPrinter{out: out, seen: make(map[string]bool)}
}

// Observe is registered with Engine.Subscribe; it may be called from several goroutines
func (p *transcriptPrinter) Observe(s internal.ChatState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(s.Messages) == 0 {
		p.endLocked()
		p.seen = make(map[string]bool)
		return
	}

	for i, m := range s.Messages {
		if m.ID == p.streaming {
			p.continueLocked(m)
			continue
		}
		if p.seen[m.ID] {
			continue
		}
		p.seen[m.ID] = true

		last := i == len(s.Messages)-1
		if last && m.Sender == internal.SenderAssistant && m.Content == "" && !m.Failed {
			p.endLocked()
			_, _ = fmt.Fprint(p.out, internal.RenderMessage(internal.Message{Sender: internal.SenderAssistant, Content: " "}))
			p.streaming = m.ID
			p.printed = ""
			continue
		}
		p.endLocked()
		_, _ = fmt.Fprintln(p.out, internal.RenderMessage(m))
	}
}

func (p *transcriptPrinter) continueLocked(m internal.Message) {
	switch {
	case strings.HasPrefix(m.Content, p.printed):
		_, _ = fmt.Fprint(p.out, m.Content[len(p.printed):])
		p.printed = m.Content
	default:
		// The final message replaced what was streamed.
		_, _ = fmt.Fprint(p.out, "\n"+internal.RenderMessage(internal.Message{Sender: m.Sender, Content: m.Content}))
		p.printed = m.Content
	}
	if m.Failed {
		_, _ = fmt.Fprint(p.out, " (incomplete)")
		p.endLocked()
	}
}

// EndStream terminates the line of the reply being streamed
func (p *transcriptPrinter) EndStream() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLocked()
}

func (p *transcriptPrinter) endLocked() {
	if p.streaming == "" {
		return
	}
	_, _ = fmt.Fprintln(p.out)
	p.streaming = ""
	p.printed = ""
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatLogFile, "log-file", "", "Write logs to this file instead of stderr")
}
