// Package harness runs conformance scenarios against a two-peer transfer
// tool.
//
// A scenario launches the tool twice, once as the listener and once as the
// connector, drives data through the pair, and checks what comes out the
// other side. Four kinds exist:
//
//   - half_close: both peers connect, one peer's stdin is closed, and both
//     must exit with status 0. Run once per direction.
//   - interactive: a random block is written into the connector's stdin and
//     must appear on the listener's stdout, then the reverse.
//   - file_transfer: the connector sends a generated file by path and the
//     listener stores it into a destination directory.
//   - stream_transfer: the same payload is fed to the connector's stdin and
//     captured from the listener's stdout.
//
// # Plans
//
// The default plan is built from the configured kinds and sizes. An explicit
// plan can be loaded from YAML:
//
//	scenarios:
//	  - kind: half_close
//	    closer: connector
//	  - kind: file_transfer
//	    size: 100KB
//
// # Failures
//
// A run stops at the first failing scenario. The returned *ScenarioError
// carries the failure kind (launch, handshake, exit, integrity, timeout or
// internal) and the last phase the scenario reached. Every scenario runs in
// a fresh workspace and leaves no processes or files behind.
//
// # Usage
//
//	h := harness.New(harness.OptionsFromConfig(cfg))
//	summary, err := h.Run(ctx, plan, harness.NewTextReporter(os.Stdout))
//	if err != nil {
//	    log.Fatal(err)
//	}
package harness
