package export

import (
	"io"

	"github.com/iksnae/wize-panels/internal"
	"gopkg.in/yaml.v3"
)

// YAMLExporter writes the transcript as YAML
type YAMLExporter struct{}

func (e *YAMLExporter) Export(t *internal.Transcript, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()

	return enc.Encode(t)
}

func (e *YAMLExporter) Extension() string {
	return "yaml"
}
