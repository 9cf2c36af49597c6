package harness

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/catwalk/internal/peer"
)

// TextReporter prints human-readable progress in the form
//
//	Testing transfer of a 1000 byte file... Success!
//
// On failure it prints each peer's diagnostics before the error.
type TextReporter struct {
	W io.Writer
}

// NewTextReporter creates a reporter writing to w.
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{W: w}
}

func (r *TextReporter) ScenarioStarted(s Scenario) {
	fmt.Fprintf(r.W, "Testing %s...", s.Description())
}

func (r *TextReporter) ScenarioFinished(res *Result, err error) {
	if err == nil {
		fmt.Fprintln(r.W, " Success!")
		return
	}

	fmt.Fprintln(r.W)
	for _, o := range []struct {
		name string
		diag string
	}{
		{"listener", diagnostics(res.Listener)},
		{"connector", diagnostics(res.Connector)},
	} {
		if o.diag == "" {
			continue
		}
		fmt.Fprintf(r.W, "--- %s stderr ---\n", o.name)
		fmt.Fprint(r.W, o.diag)
		if !strings.HasSuffix(o.diag, "\n") {
			fmt.Fprintln(r.W)
		}
	}
	var serr *ScenarioError
	if errors.As(err, &serr) {
		fmt.Fprintf(r.W, "FAIL %s: %s failure after %s: %v\n", res.Name, serr.Kind, serr.Phase, serr.Err)
		return
	}
	fmt.Fprintf(r.W, "FAIL %s: %v\n", res.Name, err)
}

// WriteSummary prints the run totals.
func WriteSummary(w io.Writer, s *Summary) {
	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d not run, %d total\n",
		s.Passed, s.Failed, s.NotRun, s.Total)
}

func diagnostics(o *peer.Outcome) string {
	if o == nil {
		return ""
	}
	return o.Diagnostics
}
