package export

import (
	"bytes"
	"fmt"

	"github.com/DIRACGrid/diracci/internal/matrix"
	"github.com/DIRACGrid/diracci/internal/wrapper"
)

// ShellExporter writes export statements in resolution order, for eval.
type ShellExporter struct{}

func (e *ShellExporter) Name() string {
	return "shell"
}

func (e *ShellExporter) Export(env matrix.Environment) ([]byte, error) {
	var buf bytes.Buffer
	for _, v := range env {
		fmt.Fprintf(&buf, "export %s=%s\n", v.Name, wrapper.Quote(v.Value))
	}
	return buf.Bytes(), nil
}

func NewShellExporter() Exporter {
	return &ShellExporter{}
}
