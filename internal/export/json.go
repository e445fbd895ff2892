package export

import (
	"encoding/json"
	"io"

	"github.com/iksnae/wize-panels/internal"
)

// JSONExporter writes the whole transcript as indented JSON
type JSONExporter struct{}

func (e *JSONExporter) Export(t *internal.Transcript, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

func (e *JSONExporter) Extension() string {
	return "json"
}
