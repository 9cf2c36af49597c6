// Command refcat is the reference transfer peer used to self-test catwalk.
//
//	refcat -listen:* -port:8888 [-destination:<dir>] [-password:<pw>] [-announce:1]
//	refcat -target:127.0.0.1 -port:8888 [-file:<path>] [-password:<pw>]
package main

import (
	"os"

	"github.com/roach88/catwalk/internal/refpeer"
)

func main() {
	os.Exit(refpeer.Main(os.Args[1:]))
}
