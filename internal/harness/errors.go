package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/catwalk/internal/compare"
	"github.com/roach88/catwalk/internal/handshake"
	"github.com/roach88/catwalk/internal/peer"
)

// FailureKind classifies why a scenario failed.
type FailureKind string

const (
	FailureLaunch    FailureKind = "launch"
	FailureHandshake FailureKind = "handshake"
	FailureExit      FailureKind = "exit"
	FailureIntegrity FailureKind = "integrity"
	FailureTimeout   FailureKind = "timeout"
	FailureInternal  FailureKind = "internal"
)

// Phase is the last lifecycle step a scenario completed.
type Phase string

const (
	PhaseCreated   Phase = "created"
	PhaseLaunched  Phase = "launched"
	PhaseConnected Phase = "connected"
	PhaseExchanged Phase = "exchanged"
	PhaseVerified  Phase = "verified"
	PhaseTornDown  Phase = "torn_down"
)

// ErrStalled means a peer stopped producing or consuming data before an
// exchange completed.
var ErrStalled = errors.New("data exchange stalled")

// ScenarioError is the failure of one scenario.
type ScenarioError struct {
	Kind     FailureKind
	Scenario string
	Phase    Phase
	Err      error
}

func (e *ScenarioError) Error() string {
	return fmt.Sprintf("%s: %s failure after %s: %v", e.Scenario, e.Kind, e.Phase, e.Err)
}

func (e *ScenarioError) Unwrap() error {
	return e.Err
}

// Classify maps an error from a scenario step to its failure kind.
func Classify(err error) FailureKind {
	var (
		hsErr      *handshake.Error
		launchErr  *peer.LaunchError
		timeoutErr *peer.TimeoutError
		exitErr    *peer.ExitError
		mismatch   *compare.MismatchError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &hsErr):
		return FailureHandshake
	case errors.As(err, &launchErr):
		return FailureLaunch
	case errors.As(err, &timeoutErr):
		return FailureTimeout
	case errors.As(err, &exitErr):
		return FailureExit
	case errors.As(err, &mismatch):
		return FailureIntegrity
	case errors.Is(err, ErrStalled), errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	default:
		return FailureInternal
	}
}
