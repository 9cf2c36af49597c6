package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/catwalk/internal/config"
	"github.com/roach88/catwalk/internal/harness"
)

// ScenariosOptions holds flags for the scenarios command.
type ScenariosOptions struct {
	*RootOptions
	Filter string
	Plan   string
}

// ScenarioInfo describes one planned scenario.
type ScenarioInfo struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Size        int64  `json:"size,omitempty"`
	HumanSize   string `json:"human_size,omitempty"`
	Closer      string `json:"closer,omitempty"`
	Description string `json:"description"`
}

// NewScenariosCommand creates the scenarios command.
func NewScenariosCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenariosOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List the scenarios a run would execute",
		Long: `List the scenarios a run would execute, in order, without launching
anything. Accepts the same --config, --plan and --filter as run.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "list only scenarios whose name or kind matches this glob")
	cmd.Flags().StringVar(&opts.Plan, "plan", "", "YAML plan file listing the scenarios")

	return cmd
}

func runScenarios(opts *ScenariosOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return reportCommandError(formatter, "E_CONFIG", err)
	}
	plan, err := selectPlan(cfg, opts.Plan, opts.Filter)
	if err != nil {
		return reportCommandError(formatter, "E_PLAN", err)
	}

	infos := make([]ScenarioInfo, len(plan))
	for i, s := range plan {
		infos[i] = describe(s)
	}

	if opts.Format == "json" {
		return formatter.Success(infos)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, info := range infos {
		desc := info.Description
		if info.HumanSize != "" {
			desc = fmt.Sprintf("%s (%s)", desc, info.HumanSize)
		}
		fmt.Fprintf(tw, "%s\t%s\n", info.Name, desc)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d scenario(s)\n", len(infos))
	return nil
}

func describe(s harness.Scenario) ScenarioInfo {
	info := ScenarioInfo{
		Name:        s.Name(),
		Kind:        string(s.Kind),
		Description: s.Description(),
	}
	switch s.Kind {
	case harness.KindFileTransfer, harness.KindStreamTransfer:
		info.Size = s.Size
		info.HumanSize = config.ByteSize(s.Size).String()
	case harness.KindHalfClose:
		info.Closer = s.Closer.String()
	}
	return info
}
