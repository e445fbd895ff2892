package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/wize-panels/internal"
)

// MarkdownExporter writes a readable transcript. Document blocks are collapsed to @title.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(t *internal.Transcript, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# Session %s\n\n", t.ID)

	if t.Label != "" && t.Label != t.ID {
		_, _ = fmt.Fprintf(w, "**Name:** %s  \n", strings.TrimSpace(strings.TrimPrefix(t.Label, t.ID)))
	}
	switch {
	case t.AgentID != "":
		_, _ = fmt.Fprintf(w, "**Agent:** %s  \n", t.AgentID)
	case t.Model != nil:
		_, _ = fmt.Fprintf(w, "**Model:** %s (temperature %.1f)  \n", t.Model.ID, t.Model.TemperatureOr(internal.DefaultTemperature))
	}
	if t.FetchedAt != "" {
		_, _ = fmt.Fprintf(w, "**Fetched:** %s  \n", t.FetchedAt)
	}
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(t.Messages))

	_, _ = fmt.Fprintf(w, "---\n\n")

	for i, msg := range t.Messages {
		content := escapeMarkdown(internal.FormatMessageContent(msg.Content))
		marker := ""
		if msg.Failed {
			marker = " _(incomplete)_"
		}
		_, _ = fmt.Fprintf(w, "**%s:**%s\n\n%s\n\n", msg.Sender, marker, content)

		if i < len(t.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}
	return nil
}

// escapeMarkdown escapes emphasis markers outside fenced code blocks
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	inCode := false
	for i, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCode = !inCode
			continue
		}
		if inCode {
			continue
		}
		line = strings.ReplaceAll(line, "**", "\\*\\*")
		lines[i] = strings.ReplaceAll(line, "__", "\\_\\_")
	}
	return strings.Join(lines, "\n")
}

func (e *MarkdownExporter) Extension() string {
	return "md"
}
