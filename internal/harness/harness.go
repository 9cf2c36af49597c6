package harness

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/catwalk/internal/config"
	"github.com/roach88/catwalk/internal/logging"
	"github.com/roach88/catwalk/internal/peer"
)

// Timeouts is the single timeout policy. Zero means unbounded.
type Timeouts struct {
	// Handshake bounds each peer's connected-marker read.
	Handshake time.Duration
	// Transfer bounds waits for exits and reads during data scenarios.
	Transfer time.Duration
	// Teardown bounds the surviving peer's exit in half_close.
	Teardown time.Duration
}

// Options configures a Harness.
type Options struct {
	Tool      peer.Tool
	Endpoint  peer.Endpoint
	Readiness peer.Readiness
	Timeouts  Timeouts

	// Marker is the connected text expected from both peers.
	Marker string

	// TempDir is where workspaces are created. Empty means os.TempDir.
	TempDir string

	Logger *slog.Logger
}

// OptionsFromConfig maps a loaded configuration to harness options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Tool: peer.Tool{
			Path:          cfg.Tool.Path,
			Env:           cfg.Tool.Env,
			ListenerArgs:  cfg.Tool.ListenerArgs,
			ConnectorArgs: cfg.Tool.ConnectorArgs,
		},
		Endpoint: peer.Endpoint{
			Listen:   cfg.Network.Listen,
			Target:   cfg.Network.Target,
			Port:     cfg.Network.Port,
			Password: cfg.Network.Password,
		},
		Readiness: peer.Readiness{
			Settle:  cfg.Readiness.Settle.Std(),
			Marker:  cfg.Readiness.Marker,
			Timeout: cfg.Readiness.Timeout.Std(),
		},
		Timeouts: Timeouts{
			Handshake: cfg.Timeouts.Handshake.Std(),
			Transfer:  cfg.Timeouts.Transfer.Std(),
			Teardown:  cfg.Timeouts.Teardown.Std(),
		},
		Marker: cfg.Marker,
	}
}

// PlanFromConfig builds the plan selected by the configuration.
func PlanFromConfig(cfg config.Config) (Plan, error) {
	sizes := make([]int64, len(cfg.Sizes))
	for i, s := range cfg.Sizes {
		sizes[i] = int64(s)
	}
	return BuildPlan(cfg.PlanKinds(), sizes)
}

// Reporter observes a run as it progresses.
type Reporter interface {
	ScenarioStarted(s Scenario)
	ScenarioFinished(r *Result, err error)
}

// Harness runs scenarios against one tool configuration. Scenarios run one
// at a time; a Harness must not be used by concurrent Run calls.
type Harness struct {
	opts       Options
	controller *peer.Controller
	logger     *slog.Logger
}

// New creates a harness.
func New(opts Options) *Harness {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.Marker == "" {
		opts.Marker = config.DefaultMarker
	}
	return &Harness{
		opts: opts,
		controller: &peer.Controller{
			Tool:      opts.Tool,
			Endpoint:  opts.Endpoint,
			Readiness: opts.Readiness,
			Logger:    logger,
		},
		logger: logger,
	}
}

// Run executes the plan in order and stops at the first failure, which is
// returned as a *ScenarioError. The summary covers every scenario that ran.
func (h *Harness) Run(ctx context.Context, plan Plan, reporter Reporter) (*Summary, error) {
	start := time.Now()
	summary := &Summary{
		RunID:   uuid.Must(uuid.NewV7()).String(),
		Results: make([]*Result, 0, len(plan)),
		Total:   len(plan),
	}
	logger := h.logger.With("run_id", summary.RunID)
	logger.Info("run started", "scenarios", len(plan), "tool", h.opts.Tool.Path)

	var runErr error
	for i, s := range plan {
		if reporter != nil {
			reporter.ScenarioStarted(s)
		}

		res, err := h.RunScenario(ctx, s)
		summary.Results = append(summary.Results, res)
		if reporter != nil {
			reporter.ScenarioFinished(res, err)
		}

		if err != nil {
			summary.Failed++
			summary.NotRun = len(plan) - i - 1
			runErr = err
			break
		}
		summary.Passed++
	}

	summary.Duration = time.Since(start)
	logger.Info("run finished",
		"passed", summary.Passed,
		"failed", summary.Failed,
		"not_run", summary.NotRun,
		"duration", summary.Duration)
	return summary, runErr
}
