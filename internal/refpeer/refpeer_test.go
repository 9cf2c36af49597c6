package refpeer

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/catwalk/internal/testutil"
)

// syncBuffer is a bytes.Buffer safe for concurrent writes and reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type result struct {
	err    error
	stderr *syncBuffer
}

// startListener runs a listener in the background and waits until it has
// bound its port.
func startListener(t *testing.T, opts Options, stdio Stdio) <-chan result {
	t.Helper()
	opts.Announce = true
	stderr := &syncBuffer{}
	stdio.Err = stderr

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	done := make(chan result, 1)
	go func() {
		done <- result{err: Run(ctx, opts, stdio), stderr: stderr}
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(stderr.String(), "Listening on")
	}, 10*time.Second, 10*time.Millisecond)
	return done
}

func runConnectorSync(t *testing.T, opts Options, stdio Stdio) result {
	t.Helper()
	stderr := &syncBuffer{}
	stdio.Err = stderr

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return result{err: Run(ctx, opts, stdio), stderr: stderr}
}

func await(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(30 * time.Second):
		t.Fatal("listener did not finish")
		return result{}
	}
}

func TestRun_FileTransfer(t *testing.T) {
	port := testutil.FreeUDPPort(t)
	src := t.TempDir()
	dest := t.TempDir()

	data := bytes.Repeat([]byte("0123456789"), 50_000)
	srcPath := filepath.Join(src, "Test_500000.tmp")
	require.NoError(t, os.WriteFile(srcPath, data, 0o644))

	listener := startListener(t,
		Options{Listen: "127.0.0.1", Port: port, Destination: dest},
		Stdio{In: strings.NewReader(""), Out: io.Discard})

	conn := runConnectorSync(t,
		Options{Target: "127.0.0.1", Port: port, File: srcPath},
		Stdio{In: strings.NewReader(""), Out: io.Discard})
	require.NoError(t, conn.err)
	assert.True(t, strings.HasPrefix(conn.stderr.String(), "Connected!\n"))

	l := await(t, listener)
	require.NoError(t, l.err)
	assert.Equal(t, "Listening on 127.0.0.1:"+strconv.Itoa(port)+"\nConnected!\n", l.stderr.String())

	got, err := os.ReadFile(filepath.Join(dest, "Test_500000.tmp"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got), "received file differs")
}

func TestRun_EmptyFile(t *testing.T) {
	port := testutil.FreeUDPPort(t)
	src := t.TempDir()
	dest := t.TempDir()
	srcPath := filepath.Join(src, "empty.tmp")
	require.NoError(t, os.WriteFile(srcPath, nil, 0o644))

	listener := startListener(t,
		Options{Listen: "127.0.0.1", Port: port, Destination: dest},
		Stdio{In: strings.NewReader(""), Out: io.Discard})
	conn := runConnectorSync(t,
		Options{Target: "127.0.0.1", Port: port, File: srcPath},
		Stdio{In: strings.NewReader(""), Out: io.Discard})
	require.NoError(t, conn.err)
	require.NoError(t, await(t, listener).err)

	st, err := os.Stat(filepath.Join(dest, "empty.tmp"))
	require.NoError(t, err)
	assert.Zero(t, st.Size())
}

func TestRun_StreamTransfer(t *testing.T) {
	port := testutil.FreeUDPPort(t)
	data := bytes.Repeat([]byte{0xab, 0x00, 0xff}, 100_000)

	// The listener's stdin stays open, as it would on a terminal.
	stdinR, stdinW := io.Pipe()
	t.Cleanup(func() { stdinW.Close() })
	out := &syncBuffer{}

	listener := startListener(t,
		Options{Listen: "127.0.0.1", Port: port},
		Stdio{In: stdinR, Out: out})
	conn := runConnectorSync(t,
		Options{Target: "127.0.0.1", Port: port},
		Stdio{In: bytes.NewReader(data), Out: io.Discard})
	require.NoError(t, conn.err)

	l := await(t, listener)
	require.NoError(t, l.err)
	assert.Equal(t, len(data), len(out.String()))
	assert.True(t, bytes.Equal(data, []byte(out.String())))
}

func TestRun_ListenerClosesStdin(t *testing.T) {
	port := testutil.FreeUDPPort(t)

	connStdinR, connStdinW := io.Pipe()
	t.Cleanup(func() { connStdinW.Close() })
	out := &syncBuffer{}

	listener := startListener(t,
		Options{Listen: "127.0.0.1", Port: port},
		Stdio{In: strings.NewReader("bye"), Out: io.Discard})
	conn := runConnectorSync(t,
		Options{Target: "127.0.0.1", Port: port},
		Stdio{In: connStdinR, Out: out})

	require.NoError(t, conn.err)
	assert.Equal(t, "bye", out.String())
	require.NoError(t, await(t, listener).err)
}

func TestRun_PasswordMismatch(t *testing.T) {
	port := testutil.FreeUDPPort(t)

	stdinR, stdinW := io.Pipe()
	t.Cleanup(func() { stdinW.Close() })

	listener := startListener(t,
		Options{Listen: "127.0.0.1", Port: port, Password: "right"},
		Stdio{In: stdinR, Out: io.Discard})
	conn := runConnectorSync(t,
		Options{Target: "127.0.0.1", Port: port, Password: "wrong"},
		Stdio{In: strings.NewReader("data"), Out: io.Discard})

	assert.ErrorIs(t, conn.err, errPasswordMismatch)
	l := await(t, listener)
	assert.ErrorIs(t, l.err, errPasswordMismatch)
	assert.Equal(t, "Peer password doesn't match!", l.err.Error())
}

func TestRun_ModeMismatch(t *testing.T) {
	port := testutil.FreeUDPPort(t)
	dest := t.TempDir()

	listener := startListener(t,
		Options{Listen: "127.0.0.1", Port: port, Destination: dest},
		Stdio{In: strings.NewReader(""), Out: io.Discard})
	conn := runConnectorSync(t,
		Options{Target: "127.0.0.1", Port: port},
		Stdio{In: strings.NewReader("data"), Out: io.Discard})

	require.Error(t, conn.err)
	assert.Contains(t, conn.err.Error(), "peer closed the connection")
	assert.ErrorIs(t, await(t, listener).err, errModeMismatch)
}

func TestRun_ContextCancel(t *testing.T) {
	port := testutil.FreeUDPPort(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{Listen: "127.0.0.1", Port: port},
			Stdio{In: strings.NewReader(""), Out: io.Discard, Err: io.Discard})
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("listener ignored cancellation")
	}
}
