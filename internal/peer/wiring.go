package peer

import (
	"fmt"
	"os"
	"os/exec"
)

// Mode names how a pair's standard streams are connected.
type Mode string

const (
	ModeFile        Mode = "file"
	ModeRedirect    Mode = "redirect"
	ModeInteractive Mode = "interactive"
)

// Wiring decides a peer's I/O arguments and standard streams.
// Stderr is always captured by the controller and is not part of wiring.
type Wiring interface {
	Mode() Mode

	// ioArgs returns the role's file/destination arguments.
	ioArgs(role Role) []string

	// attach sets cmd.Stdin/cmd.Stdout and records harness-side handles on
	// p. The returned files are the child's ends, closed by the caller once
	// the process has started (or failed to start).
	attach(role Role, cmd *exec.Cmd, p *Process) (childEnds []*os.File, err error)
}

// FileWiring passes file paths as arguments. The tool writes the received
// file into DestinationDir under the source file's base name.
type FileWiring struct {
	Source         string
	DestinationDir string
}

func (FileWiring) Mode() Mode { return ModeFile }

func (w FileWiring) ioArgs(role Role) []string {
	if role == Listener {
		return []string{"-destination:" + w.DestinationDir}
	}
	return []string{"-file:" + w.Source}
}

func (FileWiring) attach(Role, *exec.Cmd, *Process) ([]*os.File, error) {
	// Stdin and stdout stay on the null device.
	return nil, nil
}

// RedirectWiring feeds Source into the connector's stdin and writes the
// listener's stdout to Destination. The files are handed to the child
// directly; no shell is involved. The listener's stdin is a pipe the
// harness holds open until the pair is closed, so the listener never sees
// end of input on its own side.
type RedirectWiring struct {
	Source      string
	Destination string
}

func (RedirectWiring) Mode() Mode { return ModeRedirect }

func (RedirectWiring) ioArgs(Role) []string { return nil }

func (w RedirectWiring) attach(role Role, cmd *exec.Cmd, p *Process) ([]*os.File, error) {
	if role == Listener {
		f, err := os.Create(w.Destination)
		if err != nil {
			return nil, fmt.Errorf("failed to create destination: %w", err)
		}
		stdinR, stdinW, err := os.Pipe()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
		}
		cmd.Stdin = stdinR
		cmd.Stdout = f
		p.Stdin = stdinW
		return []*os.File{f, stdinR}, nil
	}

	f, err := os.Open(w.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	cmd.Stdin = f
	return []*os.File{f}, nil
}

// InteractiveWiring gives the harness live pipes to both peers' stdin and
// stdout.
type InteractiveWiring struct{}

func (InteractiveWiring) Mode() Mode { return ModeInteractive }

func (InteractiveWiring) ioArgs(Role) []string { return nil }

func (InteractiveWiring) attach(_ Role, cmd *exec.Cmd, p *Process) ([]*os.File, error) {
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	p.Stdin = stdinW
	p.Stdout = stdoutR
	return []*os.File{stdinR, stdoutW}, nil
}
