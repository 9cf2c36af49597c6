package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// diagGrace bounds how long reporting waits for a peer's stderr to reach
// EOF after the peer has exited.
const diagGrace = 2 * time.Second

// Process is one running peer. It is owned by the scenario that started it
// and must be released with Close.
type Process struct {
	Role Role

	// Stdin is set for interactive wiring and for the listener under
	// redirect wiring. Stdout is set only for interactive wiring.
	Stdin  io.WriteCloser
	Stdout io.ReadCloser

	// Diag is the peer's captured stderr.
	Diag *DiagStream

	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error

	stdinOnce sync.Once
	stdinErr  error
	closeOnce sync.Once
}

// Outcome is what a scenario reports about a peer.
type Outcome struct {
	Role        Role   `json:"role"`
	ExitCode    int    `json:"exit_code"`
	Exited      bool   `json:"exited"`
	Diagnostics string `json:"diagnostics,omitempty"`
}

// start launches the tool for one role.
func start(tool Tool, role Role, ep Endpoint, w Wiring) (*Process, error) {
	args := tool.Args(role, ep, w.ioArgs(role))
	cmd := exec.Command(tool.Path, args...)
	if len(tool.Env) > 0 {
		cmd.Env = append(os.Environ(), tool.Env...)
	}

	p := &Process{Role: role, cmd: cmd, done: make(chan struct{})}

	childEnds, err := w.attach(role, cmd, p)
	if err != nil {
		return nil, &LaunchError{Role: role, Err: err}
	}

	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeFiles(childEnds)
		p.closeHandles()
		return nil, &LaunchError{Role: role, Err: fmt.Errorf("failed to create stderr pipe: %w", err)}
	}
	cmd.Stderr = stderrW
	childEnds = append(childEnds, stderrW)

	err = cmd.Start()
	// The child holds its own copies now; dropping ours lets EOF propagate.
	closeFiles(childEnds)
	if err != nil {
		stderrR.Close()
		p.closeHandles()
		return nil, &LaunchError{Role: role, Err: err}
	}

	p.Diag = newDiagStream(stderrR)
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

func closeFiles(files []*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

// Args returns the arguments the process was started with.
func (p *Process) Args() []string {
	return p.cmd.Args[1:]
}

// Pid returns the OS process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Exited reports whether the process has been reaped.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitCode returns the exit status, or -1 if the process has not exited or
// was killed by a signal.
func (p *Process) ExitCode() int {
	if !p.Exited() {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

// Wait blocks until the process exits, ctx ends, or timeout elapses.
// timeout <= 0 means no bound. On timeout or cancellation the process is
// killed before Wait returns. A non-zero exit status is an *ExitError.
func (p *Process) Wait(ctx context.Context, timeout time.Duration) error {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-p.done:
	case <-timer:
		p.Kill()
		return &TimeoutError{Role: p.Role, After: timeout}
	case <-ctx.Done():
		p.Kill()
		return fmt.Errorf("waiting for %s: %w", p.Role, ctx.Err())
	}

	return p.exitError()
}

func (p *Process) exitError() error {
	if p.waitErr == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(p.waitErr, &exitErr) {
		return &ExitError{Role: p.Role, Code: exitErr.ExitCode(), Diagnostics: p.Diagnostics()}
	}
	return fmt.Errorf("waiting for %s: %w", p.Role, p.waitErr)
}

// Kill terminates the process if it is still running and waits for it to
// be reaped.
func (p *Process) Kill() {
	if p.Exited() {
		return
	}
	_ = p.cmd.Process.Kill()
	<-p.done
}

// CloseStdin closes the harness end of the peer's stdin. It is safe to call
// more than once and is a no-op when stdin is not wired.
func (p *Process) CloseStdin() error {
	p.stdinOnce.Do(func() {
		if p.Stdin != nil {
			p.stdinErr = p.Stdin.Close()
		}
	})
	return p.stdinErr
}

// Diagnostics returns the captured stderr. If the process has exited it
// first gives the stream a short grace period to reach EOF.
func (p *Process) Diagnostics() string {
	if p.Diag == nil {
		return ""
	}
	if p.Exited() {
		select {
		case <-p.Diag.Done():
		case <-time.After(diagGrace):
		}
	}
	return p.Diag.String()
}

// Outcome summarises the process for reporting.
func (p *Process) Outcome() Outcome {
	return Outcome{
		Role:        p.Role,
		ExitCode:    p.ExitCode(),
		Exited:      p.Exited(),
		Diagnostics: p.Diagnostics(),
	}
}

// Close kills the process if needed, reaps it, and releases every handle.
func (p *Process) Close() {
	p.closeOnce.Do(func() {
		_ = p.CloseStdin()
		p.Kill()
		if p.Diag != nil {
			select {
			case <-p.Diag.Done():
			case <-time.After(diagGrace):
				_ = p.Diag.Close()
			}
		}
		if p.Stdout != nil {
			_ = p.Stdout.Close()
		}
	})
}

// closeHandles releases harness-side pipe ends of a process that never
// started.
func (p *Process) closeHandles() {
	if p.Stdin != nil {
		_ = p.Stdin.Close()
	}
	if p.Stdout != nil {
		_ = p.Stdout.Close()
	}
}
