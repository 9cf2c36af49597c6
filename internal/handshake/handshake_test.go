package handshake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/catwalk/internal/peer"
	"github.com/roach88/catwalk/internal/testutil"
)

func TestMain(m *testing.M) {
	testutil.MainWithHelpers(m, map[string]testutil.HelperFunc{
		"connected": func(args []string) int {
			fmt.Fprintln(os.Stderr, "Connected!")
			io.Copy(io.Discard, os.Stdin)
			return 0
		},
		// refuse connects as a listener but fails as a connector.
		"refuse": func(args []string) int {
			if len(args) > 0 && args[0] == "-listen:*" {
				fmt.Fprintln(os.Stderr, "Connected!")
			} else {
				fmt.Fprintln(os.Stderr, "Error: refused")
			}
			io.Copy(io.Discard, os.Stdin)
			return 0
		},
		"silent": func(args []string) int {
			io.Copy(io.Discard, os.Stdin)
			return 0
		},
		"short": func(args []string) int {
			fmt.Fprint(os.Stderr, "Conn")
			return 1
		},
	})
}

func startPair(t *testing.T, helper string) *peer.Pair {
	t.Helper()
	c := &peer.Controller{
		Tool: peer.Tool{
			Path: testutil.HelperPath(t),
			Env:  []string{testutil.HelperEnv(helper)},
		},
		Endpoint: peer.Endpoint{Listen: "*", Target: "127.0.0.1", Port: 8888},
	}
	pair, err := c.Start(context.Background(), peer.InteractiveWiring{})
	require.NoError(t, err)
	t.Cleanup(pair.Close)
	return pair
}

func TestAwait_BothConnected(t *testing.T) {
	pair := startPair(t, "connected")
	require.NoError(t, Await(context.Background(), pair, 10*time.Second))
}

func TestAwait_ConnectorWrongText(t *testing.T) {
	pair := startPair(t, "refuse")

	err := Await(context.Background(), pair, 10*time.Second)
	require.Error(t, err)

	var hsErr *Error
	require.ErrorAs(t, err, &hsErr)
	assert.Equal(t, peer.Connector, hsErr.Role)
	assert.Equal(t, "Error: ref", hsErr.Got)
	assert.NoError(t, hsErr.Err)
	assert.Contains(t, err.Error(), "peers did not connect")
}

func TestAwait_Timeout(t *testing.T) {
	pair := startPair(t, "silent")

	start := time.Now()
	err := Await(context.Background(), pair, 100*time.Millisecond)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var hsErr *Error
	require.ErrorAs(t, err, &hsErr)
	assert.Equal(t, peer.Listener, hsErr.Role)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestAwait_PeerExitsEarly(t *testing.T) {
	pair := startPair(t, "short")

	err := Await(context.Background(), pair, 10*time.Second)
	require.Error(t, err)

	var hsErr *Error
	require.ErrorAs(t, err, &hsErr)
	assert.Equal(t, peer.Listener, hsErr.Role)
	assert.Equal(t, "Conn", hsErr.Got)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestError_Message(t *testing.T) {
	err := &Error{Role: peer.Listener, Got: "Error: bin", Want: Marker}
	assert.Equal(t, `peers did not connect: listener printed "Error: bin", want "Connected!"`, err.Error())
}

func TestAwaitMarker_Custom(t *testing.T) {
	pair := startPair(t, "connected")

	err := AwaitMarker(context.Background(), pair, "Conn", 10*time.Second)
	require.NoError(t, err)

	// The cursor has moved past the custom marker.
	rest, err := pair.Listener.Diag.ReadPrefix(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, "ected!", string(rest))
}
