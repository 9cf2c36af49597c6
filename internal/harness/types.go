package harness

import (
	"time"

	"github.com/roach88/catwalk/internal/peer"
)

// Result is the outcome of one scenario.
type Result struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// Pass is true when every check of the scenario held.
	Pass bool `json:"pass"`

	// Phase is the last lifecycle step completed.
	Phase Phase `json:"phase"`

	// Failure is set when Pass is false.
	Failure FailureKind `json:"failure,omitempty"`

	Duration time.Duration `json:"duration_ns"`

	// Listener and Connector are nil if the pair never launched.
	Listener  *peer.Outcome `json:"listener,omitempty"`
	Connector *peer.Outcome `json:"connector,omitempty"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result for a scenario.
func NewResult(s Scenario) *Result {
	return &Result{
		Name:        s.Name(),
		Description: s.Description(),
		Pass:        true,
		Phase:       PhaseCreated,
		Errors:      []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Summary is the outcome of a whole run.
type Summary struct {
	RunID   string    `json:"run_id"`
	Results []*Result `json:"results"`
	Passed  int       `json:"passed"`
	Failed  int       `json:"failed"`

	// NotRun counts scenarios skipped after the first failure.
	NotRun int `json:"not_run"`
	Total  int `json:"total"`

	Duration time.Duration `json:"duration_ns"`
}
