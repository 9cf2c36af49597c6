// Package peer launches and supervises the two transport tool processes of
// a scenario: one listener and one connector.
//
// The controller always starts the listener first, waits for it to be ready
// (either a fixed settle delay or an explicit readiness marker on its
// diagnostic stream), and only then starts the connector. A Pair owns both
// processes; Close kills and reaps whatever is still running and releases
// every pipe, and is safe to defer on every path.
package peer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/catwalk/internal/logging"
)

// Readiness decides when the listener may be considered bound.
type Readiness struct {
	// Settle is the fixed delay used when Marker is empty.
	Settle time.Duration

	// Marker, when set, is text the listener prints once it is ready.
	Marker string

	// Timeout bounds the wait for Marker. Zero means no bound.
	Timeout time.Duration
}

// Controller starts peer pairs for one tool/endpoint configuration.
type Controller struct {
	Tool      Tool
	Endpoint  Endpoint
	Readiness Readiness
	Logger    *slog.Logger
}

// Pair is exactly one listener and one connector.
type Pair struct {
	Listener  *Process
	Connector *Process
	Mode      Mode
}

// Start launches a listener, waits for readiness, then launches a
// connector. On any failure every process already started is killed and
// reaped before the error is returned.
func (c *Controller) Start(ctx context.Context, w Wiring) (*Pair, error) {
	logger := c.logger().With("mode", string(w.Mode()))

	listener, err := start(c.Tool, Listener, c.Endpoint, w)
	if err != nil {
		return nil, err
	}
	logger.Debug("peer started", "role", Listener.String(), "pid", listener.Pid(), "args", listener.Args())

	if err := c.awaitReady(ctx, listener); err != nil {
		listener.Close()
		return nil, err
	}

	connector, err := start(c.Tool, Connector, c.Endpoint, w)
	if err != nil {
		listener.Close()
		return nil, err
	}
	logger.Debug("peer started", "role", Connector.String(), "pid", connector.Pid(), "args", connector.Args())

	return &Pair{Listener: listener, Connector: connector, Mode: w.Mode()}, nil
}

func (c *Controller) awaitReady(ctx context.Context, listener *Process) error {
	r := c.Readiness
	if r.Marker == "" {
		if r.Settle <= 0 {
			return nil
		}
		t := time.NewTimer(r.Settle)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return &LaunchError{Role: Listener, Err: ctx.Err()}
		}
	}

	waitCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	if err := listener.Diag.WaitFor(waitCtx, r.Marker); err != nil {
		return &LaunchError{Role: Listener, Err: fmt.Errorf("readiness marker %q not seen: %w", r.Marker, err)}
	}
	c.logger().Debug("listener ready", "marker", r.Marker)
	return nil
}

func (c *Controller) logger() *slog.Logger {
	if c.Logger == nil {
		return logging.Discard()
	}
	return c.Logger
}

// Process returns the pair member with the given role.
func (p *Pair) Process(role Role) *Process {
	if role == Listener {
		return p.Listener
	}
	return p.Connector
}

// Wait waits for both peers to exit within timeout (<= 0 means unbounded).
// The first non-zero exit is returned as soon as it happens, whichever peer
// it is; the other process is left for Close. On timeout or cancellation
// the peers still running are killed and the first of them is named.
func (p *Pair) Wait(ctx context.Context, timeout time.Duration) error {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	procs := []*Process{p.Listener, p.Connector}
	listenerDone, connectorDone := p.Listener.Done(), p.Connector.Done()
	for {
		var running []*Process
		for _, proc := range procs {
			if !proc.Exited() {
				running = append(running, proc)
				continue
			}
			if err := proc.exitError(); err != nil {
				return err
			}
		}
		if len(running) == 0 {
			return nil
		}

		select {
		case <-listenerDone:
			listenerDone = nil
		case <-connectorDone:
			connectorDone = nil
		case <-timer:
			for _, proc := range running {
				proc.Kill()
			}
			return &TimeoutError{Role: running[0].Role, After: timeout}
		case <-ctx.Done():
			for _, proc := range running {
				proc.Kill()
			}
			return fmt.Errorf("waiting for %s: %w", running[0].Role, ctx.Err())
		}
	}
}

// Outcomes reports both peers, listener first.
func (p *Pair) Outcomes() (Outcome, Outcome) {
	return p.Listener.Outcome(), p.Connector.Outcome()
}

// Close releases both processes. Safe to call more than once.
func (p *Pair) Close() {
	p.Connector.Close()
	p.Listener.Close()
}
