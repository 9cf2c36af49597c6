package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/catwalk/internal/config"
	"github.com/roach88/catwalk/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Tool     string   // tool binary, overrides tool.path
	Port     int      // overrides network.port
	Password string   // overrides network.password
	Sizes    []string // overrides sizes
	Filter   string   // scenario filter (glob pattern)
	Plan     string   // explicit plan file
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the conformance scenarios against a tool",
		Long: `Run the conformance scenarios against a transfer tool.

Scenarios run one at a time in plan order and the run stops at the first
failure. Progress goes to stdout, logs go to stderr.

Exit codes:
  0 - All scenarios passed
  1 - Internal failure
  2 - Command error (bad flags, config or plan)
  3 - Launch failure
  4 - Handshake failure
  5 - A peer exited with a non-zero status
  6 - Data integrity failure
  7 - Timeout

Examples:
  catwalk run --tool ./quiccat
  catwalk run --config catwalk.yaml --filter "half_close*"
  catwalk run --tool ./quiccat --size 1kB --size 10MB --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHarness(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Tool, "tool", "", "path to the transfer tool (overrides tool.path)")
	cmd.Flags().IntVar(&opts.Port, "port", 0, "port both peers use (overrides network.port)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password passed to both peers")
	cmd.Flags().StringSliceVar(&opts.Sizes, "size", nil, "transfer payload size, repeatable (e.g. 1000, 100kB)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "run only scenarios whose name or kind matches this glob")
	cmd.Flags().StringVar(&opts.Plan, "plan", "", "YAML plan file listing the scenarios to run")

	return cmd
}

// resolveConfig loads the config file and applies flag overrides.
func (o *RunOptions) resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("tool") {
		cfg.Tool.Path = o.Tool
	}
	if flags.Changed("port") {
		cfg.Network.Port = o.Port
	}
	if flags.Changed("password") {
		cfg.Network.Password = o.Password
	}
	if flags.Changed("size") {
		cfg.Sizes = make([]config.ByteSize, len(o.Sizes))
		for i, s := range o.Sizes {
			if err := cfg.Sizes[i].UnmarshalText([]byte(s)); err != nil {
				return config.Config{}, WrapExitError(ExitCommandError, "invalid --size", err)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// selectPlan builds the plan from a plan file or the configuration, then
// applies the filter. An empty result is a command error.
func selectPlan(cfg config.Config, planFile, filter string) (harness.Plan, error) {
	var plan harness.Plan
	var err error
	if planFile != "" {
		plan, err = harness.LoadPlan(planFile)
	} else {
		plan, err = harness.PlanFromConfig(cfg)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build plan", err)
	}

	plan, err = plan.Filter(filter)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build plan", err)
	}
	if len(plan) == 0 {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("no scenarios match filter %q", filter))
	}
	return plan, nil
}

func runHarness(ctx context.Context, opts *RunOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	cfg, err := opts.resolveConfig(cmd)
	if err != nil {
		return reportCommandError(formatter, "E_CONFIG", err)
	}
	plan, err := selectPlan(cfg, opts.Plan, opts.Filter)
	if err != nil {
		return reportCommandError(formatter, "E_PLAN", err)
	}
	formatter.VerboseLog("Running %d scenario(s) against %s", len(plan), cfg.Tool.Path)

	hopts := harness.OptionsFromConfig(cfg)
	hopts.Logger = opts.logger(cmd.ErrOrStderr(), cfg.LogLevel)
	h := harness.New(hopts)

	var reporter harness.Reporter
	if opts.Format != "json" {
		reporter = harness.NewTextReporter(cmd.OutOrStdout())
	}

	summary, runErr := h.Run(ctx, plan, reporter)

	if opts.Format == "json" {
		if err := outputRunJSON(formatter, summary, runErr); err != nil {
			return err
		}
	} else {
		outputRunText(cmd, summary, runErr)
	}

	if runErr != nil {
		var serr *harness.ScenarioError
		if errors.As(runErr, &serr) {
			return WrapExitError(ExitCodeFor(serr.Kind), "conformance run failed", runErr)
		}
		return WrapExitError(ExitFailure, "conformance run failed", runErr)
	}
	return nil
}

// reportCommandError prints a JSON error envelope when JSON output was
// requested. Text mode leaves printing to main.
func reportCommandError(f *OutputFormatter, code string, err error) error {
	if f.Format == "json" {
		if encErr := f.Error(code, err.Error(), nil); encErr != nil {
			return encErr
		}
	}
	return err
}

// RunFailure is the JSON detail for a failed run.
type RunFailure struct {
	Scenario string              `json:"scenario"`
	Kind     harness.FailureKind `json:"kind"`
	Phase    harness.Phase       `json:"phase"`
	ExitCode int                 `json:"exit_code"`
}

func outputRunJSON(f *OutputFormatter, summary *harness.Summary, runErr error) error {
	resp := CLIResponse{
		Status:  "ok",
		Data:    summary,
		TraceID: summary.RunID,
	}
	if runErr != nil {
		resp.Status = "error"
		resp.Error = &CLIError{Code: ErrorCodeFor(harness.FailureInternal), Message: runErr.Error()}

		var serr *harness.ScenarioError
		if errors.As(runErr, &serr) {
			resp.Error.Code = ErrorCodeFor(serr.Kind)
			resp.Error.Details = RunFailure{
				Scenario: serr.Scenario,
				Kind:     serr.Kind,
				Phase:    serr.Phase,
				ExitCode: ExitCodeFor(serr.Kind),
			}
		}
	}
	return f.Response(resp)
}

func outputRunText(cmd *cobra.Command, summary *harness.Summary, runErr error) {
	w := cmd.OutOrStdout()
	harness.WriteSummary(w, summary)
	if runErr == nil {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}
