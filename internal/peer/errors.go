package peer

import (
	"fmt"
	"time"
)

// LaunchError means a peer process could not be started or never became
// ready.
type LaunchError struct {
	Role Role
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Role, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// ExitError means a peer exited with a non-zero status.
type ExitError struct {
	Role Role
	Code int

	// Diagnostics is the peer's captured stderr.
	Diagnostics string
}

func (e *ExitError) Error() string {
	if e.Code < 0 {
		return fmt.Sprintf("%s was terminated by a signal", e.Role)
	}
	return fmt.Sprintf("%s exited with status %d", e.Role, e.Code)
}

// TimeoutError means a peer did not exit within the allowed time. The
// process has been killed by the time the error is returned.
type TimeoutError struct {
	Role  Role
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not exit within %s", e.Role, e.After)
}
