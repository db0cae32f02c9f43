package export

import (
	"github.com/DIRACGrid/diracci/internal/matrix"
	"github.com/joho/godotenv"
)

type DotenvExporter struct{}

func (e *DotenvExporter) Name() string {
	return "dotenv"
}

func (e *DotenvExporter) Export(env matrix.Environment) ([]byte, error) {
	content, err := godotenv.Marshal(env.Map())
	if err != nil {
		return nil, err
	}
	return []byte(content + "\n"), nil
}

func NewDotenvExporter() Exporter {
	return &DotenvExporter{}
}
