package export

import (
	"encoding/json"

	"github.com/DIRACGrid/diracci/internal/matrix"
)

type JSONExporter struct{}

func (e *JSONExporter) Name() string {
	return "json"
}

func (e *JSONExporter) Export(env matrix.Environment) ([]byte, error) {
	out, err := json.MarshalIndent(env.Map(), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

func NewJSONExporter() Exporter {
	return &JSONExporter{}
}
