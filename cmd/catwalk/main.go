// Command catwalk runs conformance scenarios against a two-peer transfer
// tool.
//
//	catwalk run --tool ./quiccat
//	catwalk run --config catwalk.yaml --filter "half_close*" --format json
//	catwalk scenarios --config catwalk.yaml
//	catwalk validate catwalk.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/catwalk/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
