package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the run-independent view of a summary. Run ids, durations
// and peer outcomes are dropped so that identical runs compare equal.
type Snapshot struct {
	Passed  int              `json:"passed"`
	Failed  int              `json:"failed"`
	NotRun  int              `json:"not_run"`
	Total   int              `json:"total"`
	Results []ResultSnapshot `json:"results"`
}

// ResultSnapshot is the run-independent view of one result.
type ResultSnapshot struct {
	Name    string      `json:"name"`
	Pass    bool        `json:"pass"`
	Phase   Phase       `json:"phase"`
	Failure FailureKind `json:"failure,omitempty"`
}

// NewSnapshot builds a snapshot of s.
func NewSnapshot(s *Summary) Snapshot {
	snap := Snapshot{
		Passed:  s.Passed,
		Failed:  s.Failed,
		NotRun:  s.NotRun,
		Total:   s.Total,
		Results: make([]ResultSnapshot, 0, len(s.Results)),
	}
	for _, r := range s.Results {
		snap.Results = append(snap.Results, ResultSnapshot{
			Name:    r.Name,
			Pass:    r.Pass,
			Phase:   r.Phase,
			Failure: r.Failure,
		})
	}
	return snap
}

// AssertGolden compares a summary's snapshot against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, s *Summary) {
	t.Helper()

	data, err := json.MarshalIndent(NewSnapshot(s), "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal snapshot: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
