package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/catwalk/internal/compare"
	"github.com/roach88/catwalk/internal/handshake"
	"github.com/roach88/catwalk/internal/payload"
	"github.com/roach88/catwalk/internal/peer"
)

// exitGrace is how long a short read waits for the peer behind it to be
// reaped.
const exitGrace = time.Second

// RunScenario runs one scenario in its own workspace. The workspace is
// removed and both peers are reaped before it returns, whatever the
// outcome. A failure is returned as a *ScenarioError and also recorded on
// the result.
func (h *Harness) RunScenario(ctx context.Context, s Scenario) (*Result, error) {
	start := time.Now()
	ex := &execution{
		h:      h,
		s:      s,
		res:    NewResult(s),
		logger: h.logger.With("scenario", s.Name()),
	}
	defer func() { ex.res.Duration = time.Since(start) }()

	if err := s.Validate(); err != nil {
		return ex.res, ex.failAs(FailureInternal, err)
	}

	ws, err := NewWorkspace(h.opts.TempDir, s.Name())
	if err != nil {
		return ex.res, ex.failAs(FailureInternal, err)
	}
	defer func() {
		if err := ws.Remove(); err != nil {
			ex.logger.Warn("failed to remove workspace", "dir", ws.Dir, "error", err)
		}
	}()
	ex.logger.Debug("scenario started", "workspace", ws.Dir)

	switch s.Kind {
	case KindFileTransfer:
		err = ex.fileTransfer(ctx, ws)
	case KindStreamTransfer:
		err = ex.streamTransfer(ctx, ws)
	case KindInteractive:
		err = ex.interactive(ctx)
	case KindHalfClose:
		err = ex.halfClose(ctx)
	}
	if err != nil {
		return ex.res, err
	}
	ex.logger.Debug("scenario passed", "duration", time.Since(start))
	return ex.res, nil
}

// execution tracks one running scenario.
type execution struct {
	h      *Harness
	s      Scenario
	res    *Result
	logger *slog.Logger
}

func (ex *execution) advance(p Phase) {
	ex.res.Phase = p
	ex.logger.Debug("phase reached", "phase", string(p))
}

func (ex *execution) fail(err error) error {
	return ex.failAs(Classify(err), err)
}

func (ex *execution) failAs(kind FailureKind, err error) error {
	serr := &ScenarioError{Kind: kind, Scenario: ex.s.Name(), Phase: ex.res.Phase, Err: err}
	ex.res.Failure = kind
	ex.res.AddError(err.Error())
	ex.logger.Debug("scenario failed", "kind", string(kind), "phase", string(ex.res.Phase), "error", err)
	return serr
}

func (ex *execution) start(ctx context.Context, w peer.Wiring) (*peer.Pair, error) {
	pair, err := ex.h.controller.Start(ctx, w)
	if err != nil {
		return nil, ex.fail(err)
	}
	ex.advance(PhaseLaunched)
	return pair, nil
}

// release kills and reaps whatever is still running and records both
// peers' outcomes.
func (ex *execution) release(pair *peer.Pair) {
	pair.Close()
	l, c := pair.Outcomes()
	ex.res.Listener, ex.res.Connector = &l, &c
	if ex.res.Pass {
		ex.advance(PhaseTornDown)
	}
}

func (ex *execution) handshake(ctx context.Context, pair *peer.Pair) error {
	if err := handshake.AwaitMarker(ctx, pair, ex.h.opts.Marker, ex.h.opts.Timeouts.Handshake); err != nil {
		return ex.fail(err)
	}
	ex.advance(PhaseConnected)
	return nil
}

func (ex *execution) fileTransfer(ctx context.Context, ws *Workspace) error {
	src, err := ws.Mkdir("src")
	if err != nil {
		return ex.failAs(FailureInternal, err)
	}
	dest, err := ws.Mkdir("dest")
	if err != nil {
		return ex.failAs(FailureInternal, err)
	}

	name := fmt.Sprintf("Test_%d.tmp", ex.s.Size)
	srcPath := filepath.Join(src, name)
	if _, err := payload.WriteFile(srcPath, ex.s.Size); err != nil {
		return ex.failAs(FailureInternal, err)
	}

	pair, err := ex.start(ctx, peer.FileWiring{Source: srcPath, DestinationDir: dest})
	if err != nil {
		return err
	}
	defer ex.release(pair)

	if err := pair.Wait(ctx, ex.h.opts.Timeouts.Transfer); err != nil {
		return ex.fail(err)
	}
	ex.advance(PhaseExchanged)

	return ex.verifyFile(srcPath, filepath.Join(dest, name))
}

func (ex *execution) streamTransfer(ctx context.Context, ws *Workspace) error {
	srcPath := ws.Path(fmt.Sprintf("Src_%d.tmp", ex.s.Size))
	destPath := ws.Path(fmt.Sprintf("Dest_%d.tmp", ex.s.Size))
	if _, err := payload.WriteFile(srcPath, ex.s.Size); err != nil {
		return ex.failAs(FailureInternal, err)
	}

	pair, err := ex.start(ctx, peer.RedirectWiring{Source: srcPath, Destination: destPath})
	if err != nil {
		return err
	}
	defer ex.release(pair)

	if err := pair.Wait(ctx, ex.h.opts.Timeouts.Transfer); err != nil {
		return ex.fail(err)
	}
	ex.advance(PhaseExchanged)

	return ex.verifyFile(srcPath, destPath)
}

func (ex *execution) verifyFile(srcPath, destPath string) error {
	st, err := os.Stat(destPath)
	if err != nil {
		return ex.failAs(FailureIntegrity, fmt.Errorf("destination file missing: %w", err))
	}
	if st.Size() != ex.s.Size {
		return ex.fail(&compare.MismatchError{
			Kind:   compare.SizeMismatch,
			Offset: min(st.Size(), ex.s.Size),
			Want:   srcPath,
			Got:    destPath,
		})
	}
	if err := compare.Files(srcPath, destPath); err != nil {
		return ex.failAs(FailureIntegrity, err)
	}
	ex.advance(PhaseVerified)
	return nil
}

func (ex *execution) interactive(ctx context.Context) error {
	pair, err := ex.start(ctx, peer.InteractiveWiring{})
	if err != nil {
		return err
	}
	defer ex.release(pair)

	if err := ex.handshake(ctx, pair); err != nil {
		return err
	}

	for _, dir := range []struct{ from, to *peer.Process }{
		{pair.Connector, pair.Listener},
		{pair.Listener, pair.Connector},
	} {
		block, err := payload.Block(payload.MaxBlock)
		if err != nil {
			return ex.failAs(FailureInternal, err)
		}
		if err := ex.exchange(ctx, dir.from, dir.to, block); err != nil {
			return err
		}
	}
	ex.advance(PhaseExchanged)

	if err := pair.Connector.CloseStdin(); err != nil {
		return ex.failAs(FailureInternal, fmt.Errorf("failed to close connector stdin: %w", err))
	}
	if err := pair.Wait(ctx, ex.h.opts.Timeouts.Transfer); err != nil {
		return ex.fail(err)
	}
	ex.advance(PhaseVerified)
	return nil
}

// exchange writes data into from's stdin while reading the same number of
// bytes from to's stdout, then compares them.
func (ex *execution) exchange(ctx context.Context, from, to *peer.Process, data []byte) error {
	type readResult struct {
		got []byte
		err error
	}
	written := make(chan error, 1)
	read := make(chan readResult, 1)

	go func() {
		_, err := from.Stdin.Write(data)
		written <- err
	}()
	go func() {
		got := make([]byte, len(data))
		n, err := io.ReadFull(to.Stdout, got)
		read <- readResult{got: got[:n], err: err}
	}()

	var timer <-chan time.Time
	if d := ex.h.opts.Timeouts.Transfer; d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		timer = t.C
	}
	stalled := func() error {
		return ex.fail(fmt.Errorf("%w: %s -> %s after %s", ErrStalled, from.Role, to.Role, ex.h.opts.Timeouts.Transfer))
	}

	// A peer that dies mid-exchange ends the wait with its exit status.
	fromDone, toDone := from.Done(), to.Done()
	var r readResult
wait:
	for {
		select {
		case r = <-read:
			break wait
		case <-fromDone:
			fromDone = nil
			if err := from.Wait(ctx, 0); err != nil {
				return ex.fail(err)
			}
		case <-toDone:
			toDone = nil
			if err := to.Wait(ctx, 0); err != nil {
				return ex.fail(err)
			}
		case <-timer:
			return stalled()
		case <-ctx.Done():
			return ex.failAs(FailureInternal, ctx.Err())
		}
	}

	if r.err != nil {
		// A short read usually means a peer died; report its exit status
		// rather than the truncated data.
		if err := ex.exitedWithError(ctx, to, from); err != nil {
			return ex.fail(err)
		}
	} else {
		select {
		case err := <-written:
			if err != nil {
				return ex.failAs(FailureInternal, fmt.Errorf("failed to write to %s stdin: %w", from.Role, err))
			}
		case <-timer:
			return stalled()
		}
	}

	if err := compare.Bytes(data, r.got); err != nil {
		return ex.failAs(FailureIntegrity, fmt.Errorf("%s -> %s: %w", from.Role, to.Role, err))
	}
	return nil
}

// exitedWithError returns the first non-clean exit among peers that have
// exited or exit within exitGrace.
func (ex *execution) exitedWithError(ctx context.Context, peers ...*peer.Process) error {
	grace := time.NewTimer(exitGrace)
	defer grace.Stop()
	for _, p := range peers {
		select {
		case <-p.Done():
			if err := p.Wait(ctx, 0); err != nil {
				return err
			}
		case <-grace.C:
			return nil
		}
	}
	return nil
}

func (ex *execution) halfClose(ctx context.Context) error {
	pair, err := ex.start(ctx, peer.InteractiveWiring{})
	if err != nil {
		return err
	}
	defer ex.release(pair)

	if err := ex.handshake(ctx, pair); err != nil {
		return err
	}

	closer := pair.Process(ex.s.Closer)
	survivor := pair.Process(ex.s.Closer.Peer())
	if err := closer.CloseStdin(); err != nil {
		return ex.failAs(FailureInternal, fmt.Errorf("failed to close %s stdin: %w", closer.Role, err))
	}
	ex.advance(PhaseExchanged)

	if err := survivor.Wait(ctx, ex.h.opts.Timeouts.Teardown); err != nil {
		return ex.fail(err)
	}
	if err := closer.Wait(ctx, ex.h.opts.Timeouts.Teardown); err != nil {
		return ex.fail(err)
	}
	ex.advance(PhaseVerified)
	return nil
}
