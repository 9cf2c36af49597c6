package harness

import (
	"bytes"
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/roach88/catwalk/internal/config"
	"github.com/roach88/catwalk/internal/peer"
)

// Kind identifies one of the four scenario types.
type Kind string

const (
	KindHalfClose      Kind = config.KindHalfClose
	KindInteractive    Kind = config.KindInteractive
	KindFileTransfer   Kind = config.KindFileTransfer
	KindStreamTransfer Kind = config.KindStreamTransfer
)

// Scenario is one planned scenario invocation.
type Scenario struct {
	Kind Kind

	// Size is the payload size of file_transfer and stream_transfer.
	Size int64

	// Closer is the peer whose stdin half_close closes.
	Closer peer.Role
}

// Name returns the scenario's stable identifier, e.g. "file_transfer(1000)"
// or "half_close(connector)". Filters match against it.
func (s Scenario) Name() string {
	switch s.Kind {
	case KindFileTransfer, KindStreamTransfer:
		return fmt.Sprintf("%s(%d)", s.Kind, s.Size)
	case KindHalfClose:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Closer)
	default:
		return string(s.Kind)
	}
}

// Description is the progress text printed while the scenario runs.
func (s Scenario) Description() string {
	switch s.Kind {
	case KindFileTransfer:
		return fmt.Sprintf("transfer of a %d byte file", s.Size)
	case KindStreamTransfer:
		return fmt.Sprintf("transfer of a %d byte file via stdout", s.Size)
	case KindInteractive:
		return "transfer using stdin/stdout file handles"
	case KindHalfClose:
		return fmt.Sprintf("closing connection when %s closes stdin", s.Closer)
	default:
		return string(s.Kind)
	}
}

// Validate checks the fields the scenario's kind requires.
func (s Scenario) Validate() error {
	switch s.Kind {
	case KindFileTransfer, KindStreamTransfer:
		if s.Size < 0 {
			return fmt.Errorf("%s: size must be non-negative", s.Kind)
		}
		if s.Closer != 0 {
			return fmt.Errorf("%s: closer applies only to half_close", s.Kind)
		}
	case KindHalfClose, KindInteractive:
		if s.Size != 0 {
			return fmt.Errorf("%s: size applies only to transfer scenarios", s.Kind)
		}
		if s.Kind == KindInteractive && s.Closer != 0 {
			return fmt.Errorf("%s: closer applies only to half_close", s.Kind)
		}
		if s.Kind == KindHalfClose && s.Closer != peer.Listener && s.Closer != peer.Connector {
			return fmt.Errorf("%s: closer must be listener or connector", s.Kind)
		}
	default:
		return fmt.Errorf("unknown scenario kind %q", s.Kind)
	}
	return nil
}

// Plan is an ordered list of scenarios.
type Plan []Scenario

// DefaultPlan is the full run: both half-close directions, the interactive
// exchange, then a file and a stream transfer for every size.
func DefaultPlan(sizes []int64) Plan {
	plan, _ := BuildPlan(config.Kinds, sizes)
	return plan
}

// BuildPlan expands scenario kinds into a plan. half_close yields the
// connector-closes case then the listener-closes case. Transfer kinds are
// grouped by size, so the selected transfer kinds run back to back for
// each size in turn.
func BuildPlan(kinds []string, sizes []int64) (Plan, error) {
	var plan Plan
	var transfers []Kind
	transfersAt := -1

	for _, k := range kinds {
		switch kind := Kind(k); kind {
		case KindHalfClose:
			plan = append(plan,
				Scenario{Kind: KindHalfClose, Closer: peer.Connector},
				Scenario{Kind: KindHalfClose, Closer: peer.Listener})
		case KindInteractive:
			plan = append(plan, Scenario{Kind: KindInteractive})
		case KindFileTransfer, KindStreamTransfer:
			if transfersAt < 0 {
				transfersAt = len(plan)
			}
			transfers = append(transfers, kind)
		default:
			return nil, fmt.Errorf("unknown scenario kind %q", k)
		}
	}

	if len(transfers) == 0 {
		return plan, nil
	}

	var expanded Plan
	for _, size := range sizes {
		for _, kind := range transfers {
			expanded = append(expanded, Scenario{Kind: kind, Size: size})
		}
	}
	tail := append(Plan(nil), plan[transfersAt:]...)
	return append(append(plan[:transfersAt], expanded...), tail...), nil
}

// Filter keeps the scenarios whose name or kind matches a path.Match glob.
// An empty pattern keeps everything.
func (p Plan) Filter(pattern string) (Plan, error) {
	if pattern == "" {
		return p, nil
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid filter pattern %q: %w", pattern, err)
	}

	var out Plan
	for _, s := range p {
		byName, _ := path.Match(pattern, s.Name())
		byKind, _ := path.Match(pattern, string(s.Kind))
		if byName || byKind {
			out = append(out, s)
		}
	}
	return out, nil
}

// Names returns the scenario names in plan order.
func (p Plan) Names() []string {
	names := make([]string, len(p))
	for i, s := range p {
		names[i] = s.Name()
	}
	return names
}

// PlanFile is the on-disk form of an explicit plan.
//
//	scenarios:
//	  - kind: half_close
//	    closer: listener
//	  - kind: stream_transfer
//	    size: 1MB
type PlanFile struct {
	Scenarios []PlanEntry `yaml:"scenarios"`
}

// PlanEntry is one scenario in a plan file.
type PlanEntry struct {
	Kind   string           `yaml:"kind"`
	Size   *config.ByteSize `yaml:"size,omitempty"`
	Closer string           `yaml:"closer,omitempty"`
}

// LoadPlan reads a plan file. Unknown fields are rejected, as are a size
// on a non-transfer entry and a closer on anything but half_close.
func LoadPlan(file string) (Plan, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var pf PlanFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&pf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(pf.Scenarios) == 0 {
		return nil, fmt.Errorf("invalid plan: scenarios list is required and must be non-empty")
	}

	plan := make(Plan, 0, len(pf.Scenarios))
	for i, e := range pf.Scenarios {
		s := Scenario{Kind: Kind(e.Kind)}
		switch s.Kind {
		case KindFileTransfer, KindStreamTransfer:
			if e.Size == nil {
				return nil, fmt.Errorf("invalid plan: scenarios[%d]: %s requires size", i, s.Kind)
			}
			s.Size = int64(*e.Size)
		default:
			if e.Size != nil {
				return nil, fmt.Errorf("invalid plan: scenarios[%d]: size applies only to transfer scenarios", i)
			}
		}
		if e.Closer != "" && s.Kind != KindHalfClose {
			return nil, fmt.Errorf("invalid plan: scenarios[%d]: closer applies only to half_close", i)
		}
		switch e.Closer {
		case "":
		case "listener":
			s.Closer = peer.Listener
		case "connector":
			s.Closer = peer.Connector
		default:
			return nil, fmt.Errorf("invalid plan: scenarios[%d]: unknown closer %q", i, e.Closer)
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("invalid plan: scenarios[%d]: %w", i, err)
		}
		plan = append(plan, s)
	}
	return plan, nil
}
