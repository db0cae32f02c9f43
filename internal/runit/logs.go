package runit

import (
	"bytes"
	"io"
	"regexp"
	"sync"

	"github.com/jedib0t/go-pretty/v6/text"
)

var logPattern = regexp.MustCompile(`^[\d\-]{10} [\d:]{8} UTC [^\s]+ ([A-Z]+):`)

var levelColors = map[string]text.Colors{
	"ALWAYS":  {text.BgBlack, text.FgWhite},
	"NOTICE":  {text.FgMagenta},
	"INFO":    {text.FgGreen},
	"VERBOSE": {text.FgCyan},
	"DEBUG":   {text.FgBlue},
	"WARN":    {text.FgYellow},
	"ERROR":   {text.FgRed},
	"FATAL":   {text.BgRed, text.FgBlack},
}

// Level extracts the level of a DIRAC log line.
func Level(line string) (string, bool) {
	m := logPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Colorize colours line by its level. Lines without a known level are
// returned unchanged.
func Colorize(line string) string {
	level, ok := Level(line)
	if !ok {
		return line
	}
	colors, ok := levelColors[level]
	if !ok {
		return line
	}
	return colors.Sprint(line)
}

// LineWriter colours complete lines and writes them to an output shared by
// several writers. Blank lines are dropped.
type LineWriter struct {
	out io.Writer
	mu  *sync.Mutex
	buf bytes.Buffer
}

// NewLineWriter returns a writer serialising whole lines to out under mu.
func NewLineWriter(out io.Writer, mu *sync.Mutex) *LineWriter {
	return &LineWriter{out: out, mu: mu}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			return len(p), nil
		}
		line := string(bytes.TrimRight(w.buf.Next(i+1), "\r\n"))
		if err := w.emit(line); err != nil {
			return len(p), err
		}
	}
}

// Flush writes a trailing partial line.
func (w *LineWriter) Flush() error {
	if w.buf.Len() == 0 {
		return nil
	}
	line := w.buf.String()
	w.buf.Reset()
	return w.emit(line)
}

func (w *LineWriter) emit(line string) error {
	if line == "" {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := io.WriteString(w.out, Colorize(line)+"\n")
	return err
}
