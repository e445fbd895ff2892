package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iksnae/wize-panels/internal"
)

// JSONLExporter writes one message per line
type JSONLExporter struct{}

type jsonlLine struct {
	Session string          `json:"session"`
	ID      string          `json:"id,omitempty"`
	Sender  internal.Sender `json:"sender"`
	Content string          `json:"content"`
	Failed  bool            `json:"failed,omitempty"`
}

func (e *JSONLExporter) Export(t *internal.Transcript, w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, msg := range t.Messages {
		line := jsonlLine{
			Session: t.ID,
			ID:      msg.ID,
			Sender:  msg.Sender,
			Content: msg.Content,
			Failed:  msg.Failed,
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to encode message %s: %w", msg.ID, err)
		}
	}
	return nil
}

func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
