package peer

import (
	"strconv"
)

// Role is the fixed part a peer process plays for its whole lifetime.
type Role int

const (
	// Listener binds the port and waits for the connector.
	Listener Role = iota + 1
	// Connector dials the listener.
	Connector
)

func (r Role) String() string {
	switch r {
	case Listener:
		return "listener"
	case Connector:
		return "connector"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Peer returns the opposite role.
func (r Role) Peer() Role {
	if r == Listener {
		return Connector
	}
	return Listener
}

// Tool is the transport tool binary under test.
type Tool struct {
	Path string

	// Env entries ("KEY=value") added to the inherited environment.
	Env []string

	// Extra arguments appended after the role arguments.
	ListenerArgs  []string
	ConnectorArgs []string
}

// Endpoint is the address both peers agree on.
type Endpoint struct {
	// Listen is the listener's bind address (e.g. "*").
	Listen string
	// Target is the host the connector dials.
	Target string
	Port   int
	// Password, if set, is passed to both peers.
	Password string
}

// Args builds the tool argument list for a role. ioArgs are the
// wiring-specific arguments (-file:, -destination:).
//
//	listener:  -listen:<bind> -port:<port> [io args] [-password:<pw>] [extra]
//	connector: -target:<host> -port:<port> [io args] [-password:<pw>] [extra]
func (t Tool) Args(role Role, ep Endpoint, ioArgs []string) []string {
	var args []string
	var extra []string
	switch role {
	case Listener:
		args = append(args, "-listen:"+ep.Listen)
		extra = t.ListenerArgs
	case Connector:
		args = append(args, "-target:"+ep.Target)
		extra = t.ConnectorArgs
	}
	args = append(args, "-port:"+strconv.Itoa(ep.Port))
	args = append(args, ioArgs...)
	if ep.Password != "" {
		args = append(args, "-password:"+ep.Password)
	}
	return append(args, extra...)
}
