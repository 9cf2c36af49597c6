package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/catwalk/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool     `json:"valid"`
	Config    string   `json:"config"`
	Tool      string   `json:"tool"`
	Scenarios []string `json:"scenarios,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var planFile string

	cmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a config file and plan without running anything",
		Long: `Validate a catwalk config file, and optionally a plan file, without
launching the tool. Checks that the file parses with no unknown fields,
that every value is in range, that a plan can be built from it and that
the tool binary exists.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], planFile, cmd)
		},
	}

	cmd.Flags().StringVar(&planFile, "plan", "", "YAML plan file to validate alongside the config")

	return cmd
}

func runValidate(opts *RootOptions, path, planFile string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	result := ValidationResult{Config: path}

	cfg, err := config.Load(path)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return outputValidation(formatter, result)
	}
	result.Tool = cfg.Tool.Path
	formatter.VerboseLog("Loaded config %s (tool %s)", path, cfg.Tool.Path)

	if _, err := os.Stat(cfg.Tool.Path); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("tool.path: %v", err))
	}

	plan, err := selectPlan(cfg, planFile, "")
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	} else {
		result.Scenarios = plan.Names()
	}

	return outputValidation(formatter, result)
}

func outputValidation(f *OutputFormatter, result ValidationResult) error {
	result.Valid = len(result.Errors) == 0

	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    "E_INVALID_CONFIG",
				Message: fmt.Sprintf("%d validation error(s)", len(result.Errors)),
				Details: result.Errors,
			}
		}
		if err := f.Response(resp); err != nil {
			return err
		}
	} else if result.Valid {
		fmt.Fprintf(f.Writer, "✓ %s is valid (%d scenarios)\n", result.Config, len(result.Scenarios))
	} else {
		fmt.Fprintf(f.Writer, "✗ %s\n", result.Config)
		for _, e := range result.Errors {
			fmt.Fprintf(f.Writer, "  %s\n", e)
		}
	}

	if !result.Valid {
		return NewExitError(ExitCommandError, fmt.Sprintf("%d validation error(s)", len(result.Errors)))
	}
	return nil
}
