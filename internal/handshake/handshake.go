// Package handshake confirms that both peers of a pair report an
// established connection before any data is exchanged.
package handshake

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/catwalk/internal/peer"
)

const (
	// Marker is what the tool prints on its diagnostic stream once the
	// connection is up.
	Marker = "Connected!"

	// PrefixLen is the number of diagnostic bytes compared against Marker.
	PrefixLen = len(Marker)
)

// Error reports which peer failed to confirm the connection and what it
// printed instead.
type Error struct {
	Role peer.Role
	Got  string
	Want string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("peers did not connect: %s printed %q, want %q", e.Role, e.Got, e.Want)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Await reads PrefixLen bytes from the listener's diagnostic stream, then
// from the connector's, and requires both to equal Marker. Each read is
// bounded by timeout; timeout <= 0 means unbounded.
func Await(ctx context.Context, pair *peer.Pair, timeout time.Duration) error {
	return AwaitMarker(ctx, pair, Marker, timeout)
}

// AwaitMarker is Await for a tool that prints a different marker.
func AwaitMarker(ctx context.Context, pair *peer.Pair, marker string, timeout time.Duration) error {
	for _, role := range []peer.Role{peer.Listener, peer.Connector} {
		if err := confirm(ctx, pair.Process(role), marker, timeout); err != nil {
			return err
		}
	}
	return nil
}

func confirm(ctx context.Context, p *peer.Process, marker string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	got, err := p.Diag.ReadPrefix(ctx, len(marker))
	if err != nil {
		return &Error{Role: p.Role, Got: string(got), Want: marker, Err: err}
	}
	if string(got) != marker {
		return &Error{Role: p.Role, Got: string(got), Want: marker}
	}
	return nil
}
