package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fsmnet/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                       `json:"valid"`
	Namespaces []string                   `json:"namespaces,omitempty"`
	Warnings   []compiler.CycleWarning    `json:"warnings,omitempty"`
	Errors     []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <spec-path>",
		Short: "Validate specs without building decision graphs",
		Long: `Validate CUE namespace specs without building decision graphs.

Checks that every state, event, attribute and state variable a machine
refers to is declared and that every guard parses. Emission cycles are
reported as warnings. Faster than compile for development feedback.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	res, loadErrs := compiler.Load(specPath, compiler.LoadModeCollectAll)
	if len(loadErrs) > 0 {
		return outputLoadErrors(formatter, "Validation", loadErrs)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", res.FileCount, specPath)

	result := ValidationResult{Valid: true}
	for i := range res.Namespaces {
		spec := &res.Namespaces[i]
		formatter.VerboseLog("Validating namespace: %s", spec.Name)

		result.Namespaces = append(result.Namespaces, spec.Name)
		result.Errors = append(result.Errors, compiler.Validate(spec)...)
		result.Warnings = append(result.Warnings, compiler.AnalyzeCycles(spec)...)
	}

	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, "Validation", result.Errors)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ All specs valid (%d namespace(s))\n", len(result.Namespaces))
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "  %s: %s\n", warn.Level, warn.Message)
	}
	return nil
}
