package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Result is the outcome of one phase.
type Result struct {
	Phase    Phase
	Status   Status
	ExitCode int
	Duration time.Duration
	Err      error
}

// Report collects the results of one run.
type Report struct {
	Results []Result
	// Err is the first failure, nil when every phase passed.
	Err error
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
}

// Result returns the result of phase.
func (r *Report) Result(phase Phase) (Result, bool) {
	for _, res := range r.Results {
		if res.Phase == phase {
			return res, true
		}
	}
	return Result{}, false
}

// Passed reports the run verdict. Only a run whose check-errors phase ran
// and passed has passed.
func (r *Report) Passed() bool {
	res, ok := r.Result(PhaseCheckErrors)
	return ok && res.Status == StatusPassed && r.Err == nil
}

var statusColors = map[Status]text.Colors{
	StatusPassed:  {text.FgGreen},
	StatusFailed:  {text.FgRed},
	StatusSkipped: {text.FgHiBlack},
}

// Render writes the report as a table.
func (r *Report) Render(w io.Writer, title string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if title != "" {
		t.SetTitle(title)
	}
	t.AppendHeader(table.Row{"Phase", "Status", "Exit", "Duration"})
	for _, res := range r.Results {
		exit := ""
		if res.Status != StatusSkipped && res.ExitCode >= 0 {
			exit = fmt.Sprint(res.ExitCode)
		}
		duration := ""
		if res.Duration > 0 {
			duration = res.Duration.Round(time.Second).String()
		}
		t.AppendRow(table.Row{res.Phase, statusColors[res.Status].Sprint(res.Status), exit, duration})
	}
	t.Render()
}
