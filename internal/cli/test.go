package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/fsmnet/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter  string // glob on scenario file names
	BaseDir string // resolves relative scenario paths
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test [scenario-path...]",
		Short: "Run conformance scenarios",
		Long: `Run YAML scenarios against their specs and check their assertions.

Each path is a scenario file or a directory searched for .yaml and .yml
files. Spec paths inside a scenario are relative to the scenario file.
Runs are deterministic: instance IDs and seqs are the same on every run.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  fsmnet test ./scenarios
  fsmnet test ./scenarios --filter "traffic*"
  fsmnet test ./scenarios/rally.yaml --format json`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenario files by glob pattern")
	cmd.Flags().StringVar(&opts.BaseDir, "base", "", "directory relative scenario paths are resolved against")

	return cmd
}

func runTests(opts *TestOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	files, err := harness.ResolveScenarios(opts.BaseDir, paths...)
	if err != nil {
		var notFound *harness.ScenarioNotFoundError
		if errors.As(err, &notFound) {
			return reportExit(formatter, WrapExitError(ExitCommandError, "scenario not found", err))
		}
		return reportExit(formatter, WrapExitError(ExitCommandError, "failed to find scenarios", err))
	}

	files, err = filterScenarios(files, opts.Filter)
	if err != nil {
		return reportExit(formatter, WrapExitError(ExitCommandError, "invalid filter pattern", err))
	}
	if len(files) == 0 {
		return reportExit(formatter, NewExitError(ExitCommandError, fmt.Sprintf("no scenario files found in %v", paths)))
	}
	formatter.VerboseLog("Running %d scenario(s)", len(files))

	var harnessOpts []harness.Option
	if opts.Verbose {
		harnessOpts = append(harnessOpts, harness.WithLogger(opts.Logger(cmd.ErrOrStderr())))
	}
	result := harness.RunSuite(ctx, files, harnessOpts...)

	if formatter.JSON() {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter, result)
}

// filterScenarios keeps the files whose base name matches pattern.
func filterScenarios(files []string, pattern string) ([]string, error) {
	if pattern == "" {
		return files, nil
	}
	var out []string
	for _, f := range files {
		matched, err := filepath.Match(pattern, filepath.Base(f))
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, f)
		}
	}
	return out, nil
}

func outputTestJSON(f *OutputFormatter, result *harness.SuiteResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}
	if err := f.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func outputTestText(f *OutputFormatter, result *harness.SuiteResult) error {
	w := f.Writer

	failures := make(map[string][]string, len(result.Failures))
	for _, fail := range result.Failures {
		failures[fail.ScenarioPath] = fail.Errors
	}

	for _, o := range result.Outcomes {
		name := o.Name
		if name == "" {
			name = filepath.Base(o.ScenarioPath)
		}
		if o.Pass {
			fmt.Fprintf(w, "✓ %s\n", name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", name)
		for _, e := range failures[o.ScenarioPath] {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
