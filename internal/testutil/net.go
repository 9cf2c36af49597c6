package testutil

import (
	"net"
	"testing"
)

// FreeUDPPort returns a loopback UDP port that was free at the time of the
// call. Packages run their tests in parallel, so peers must not share a
// fixed port.
func FreeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("allocate udp port: %v", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}
