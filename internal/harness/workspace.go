package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var workspaceNamer = strings.NewReplacer("(", "-", ")", "", "/", "-")

// Workspace is a scenario's private temporary directory. Every scenario
// invocation gets a fresh one, removed when the scenario ends.
type Workspace struct {
	Dir string
}

// NewWorkspace creates a workspace under root (os.TempDir when empty).
func NewWorkspace(root, scenario string) (*Workspace, error) {
	dir, err := os.MkdirTemp(root, "catwalk-"+workspaceNamer.Replace(scenario)+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{Dir: dir}, nil
}

// Path joins elem onto the workspace directory.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.Dir}, elem...)...)
}

// Mkdir creates a subdirectory and returns its path.
func (w *Workspace) Mkdir(name string) (string, error) {
	dir := w.Path(name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	return dir, nil
}

// Remove deletes the workspace and everything in it.
func (w *Workspace) Remove() error {
	return os.RemoveAll(w.Dir)
}
