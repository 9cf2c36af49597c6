package peer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
)

// DiagStream captures a peer's diagnostic (stderr) output.
//
// A background reader drains the pipe for the life of the process, so a
// chatty peer never blocks on a full pipe. Consumers read from a cursor:
// ReadPrefix and WaitFor advance it, while String always returns
// everything captured so far for failure reports.
type DiagStream struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	pos    int
	eof    bool
	err    error
	notify chan struct{}
	done   chan struct{}
	r      io.ReadCloser
}

// newDiagStream starts draining r. r is closed when it reaches EOF or on
// Close.
func newDiagStream(r io.ReadCloser) *DiagStream {
	d := &DiagStream{
		notify: make(chan struct{}),
		done:   make(chan struct{}),
		r:      r,
	}
	go d.drain()
	return d
}

func (d *DiagStream) drain() {
	chunk := make([]byte, 4096)
	for {
		n, err := d.r.Read(chunk)
		d.mu.Lock()
		if n > 0 {
			d.buf.Write(chunk[:n])
		}
		if err != nil {
			d.eof = true
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				d.err = err
			}
		}
		close(d.notify)
		d.notify = make(chan struct{})
		finished := d.eof
		d.mu.Unlock()

		if finished {
			_ = d.r.Close()
			close(d.done)
			return
		}
	}
}

// wait blocks until ready reports true (called with d.mu held), the stream
// ends, or ctx is done.
func (d *DiagStream) wait(ctx context.Context, ready func() bool) error {
	for {
		d.mu.Lock()
		if ready() {
			d.mu.Unlock()
			return nil
		}
		if d.eof {
			d.mu.Unlock()
			return io.EOF
		}
		ch := d.notify
		d.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ReadPrefix returns the next n unread bytes. If the stream ends first it
// returns what is available with io.ErrUnexpectedEOF (or io.EOF when
// nothing was available). If ctx ends first it returns what is available
// with ctx.Err().
func (d *DiagStream) ReadPrefix(ctx context.Context, n int) ([]byte, error) {
	err := d.wait(ctx, func() bool { return d.buf.Len()-d.pos >= n })

	d.mu.Lock()
	defer d.mu.Unlock()
	avail := d.buf.Bytes()[d.pos:]
	if len(avail) > n {
		avail = avail[:n]
	}
	out := append([]byte(nil), avail...)
	d.pos += len(out)

	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, io.EOF) && len(out) > 0:
		return out, io.ErrUnexpectedEOF
	default:
		return out, err
	}
}

// WaitFor blocks until marker appears in the unread output, then advances
// the cursor past the end of the line containing it.
func (d *DiagStream) WaitFor(ctx context.Context, marker string) error {
	m := []byte(marker)
	end := -1
	err := d.wait(ctx, func() bool {
		unread := d.buf.Bytes()[d.pos:]
		i := bytes.Index(unread, m)
		if i < 0 {
			return false
		}
		nl := bytes.IndexByte(unread[i+len(m):], '\n')
		if nl < 0 {
			return false
		}
		end = d.pos + i + len(m) + nl + 1
		return true
	})

	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		d.pos = end
		return nil
	}
	// The stream ended with the marker on an unterminated last line.
	if errors.Is(err, io.EOF) {
		if i := bytes.Index(d.buf.Bytes()[d.pos:], m); i >= 0 {
			d.pos = d.buf.Len()
			return nil
		}
	}
	return err
}

// String returns everything captured so far.
func (d *DiagStream) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.String()
}

// Err returns a read error other than EOF, if one occurred.
func (d *DiagStream) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Done is closed when the stream reaches EOF.
func (d *DiagStream) Done() <-chan struct{} {
	return d.done
}

// Close stops capturing. Output already captured stays readable.
func (d *DiagStream) Close() error {
	return d.r.Close()
}
