// Package testutil provides helpers shared by catwalk's tests.
//
// Tests that need a real peer process re-execute the test binary itself as
// a helper, selected by an environment variable. A package opts in from
// TestMain:
//
//	func TestMain(m *testing.M) {
//	    testutil.MainWithHelpers(m, map[string]testutil.HelperFunc{
//	        "refcat": refpeer.Main,
//	    })
//	}
//
// and then launches os.Args[0] with HelperEnv("refcat") in its environment.
package testutil

import (
	"fmt"
	"os"
	"testing"
)

// HelperEnvVar selects the helper a re-executed test binary runs.
const HelperEnvVar = "CATWALK_TEST_HELPER"

// HelperFunc is a helper process entry point. It receives the arguments
// after the binary name and returns the process exit code.
type HelperFunc func(args []string) int

// MainWithHelpers runs the named helper and exits if the binary was
// started as one; otherwise it runs the tests.
func MainWithHelpers(m *testing.M, helpers map[string]HelperFunc) {
	if name := os.Getenv(HelperEnvVar); name != "" {
		fn, ok := helpers[name]
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown test helper %q\n", name)
			os.Exit(2)
		}
		os.Exit(fn(os.Args[1:]))
	}
	os.Exit(m.Run())
}

// HelperEnv returns the environment entry that selects helper name.
func HelperEnv(name string) string {
	return HelperEnvVar + "=" + name
}

// HelperPath returns the path of the running test binary.
func HelperPath(t *testing.T) string {
	t.Helper()
	path, err := os.Executable()
	if err != nil {
		t.Fatalf("resolve test binary: %v", err)
	}
	return path
}
