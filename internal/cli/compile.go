package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/fsmnet/internal/compiler"
	"github.com/roach88/fsmnet/internal/graph"
	"github.com/roach88/fsmnet/internal/guard"
	"github.com/roach88/fsmnet/internal/ir"
	"github.com/roach88/fsmnet/internal/namespace"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output          string
	Dot             bool
	Namespace       string
	ExhaustiveLimit int
	Samples         int
	Seed            uint64
}

// CompilationResult holds one summary per compiled namespace.
type CompilationResult struct {
	Namespaces []NamespaceSummary `json:"namespaces"`
	Output     string             `json:"output,omitempty"`
}

// NamespaceSummary describes one compiled decision graph.
type NamespaceSummary struct {
	Name          string                  `json:"name"`
	Hash          string                  `json:"hash"`
	Machines      int                     `json:"machines"`
	Events        int                     `json:"events"`
	Registrations int                     `json:"registrations"`
	Conditions    int                     `json:"conditions"`
	Nodes         int                     `json:"nodes"`
	Stats         CompileStats            `json:"stats"`
	Cycles        []compiler.CycleWarning `json:"cycles,omitempty"`
	Graph         string                  `json:"graph,omitempty"`
}

// CompileStats reports the optimizer's search.
type CompileStats struct {
	Clauses    int  `json:"clauses"`
	Exhaustive bool `json:"exhaustive"`
	Orderings  int  `json:"orderings"`
	Merges     int  `json:"merges"`
	MemoHits   int  `json:"memo_hits"`
	Complexity int  `json:"complexity"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <spec-path>",
		Short: "Compile namespaces into decision graphs",
		Long: `Compile every namespace declared in a CUE file or directory into its
decision graph and report the optimizer's statistics.

The graph is printed in its debug form (one line per node followed by the
condition table) or, with --dot, as a Graphviz digraph.

Examples:
  fsmnet compile specs/
  fsmnet compile specs/traffic.cue --namespace traffic --dot | dot -Tpng > traffic.png
  fsmnet compile specs/ --output graphs.txt --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the graphs to this file instead of stdout")
	cmd.Flags().BoolVar(&opts.Dot, "dot", false, "render graphs as Graphviz dot")
	cmd.Flags().StringVarP(&opts.Namespace, "namespace", "n", "", "compile only this namespace")
	cmd.Flags().IntVar(&opts.ExhaustiveLimit, "exhaustive-limit", graph.DefaultExhaustiveLimit, "largest clause count searched exhaustively")
	cmd.Flags().IntVar(&opts.Samples, "samples", graph.DefaultSamples, "orderings sampled above the exhaustive limit")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", graph.DefaultSeed, "seed of the ordering sampler")

	return cmd
}

func runCompile(opts *CompileOptions, specPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.Logger(cmd.ErrOrStderr())

	res, loadErrs := compiler.Load(specPath, compiler.LoadModeCollectAll)
	if len(loadErrs) > 0 {
		return outputLoadErrors(formatter, "Compilation", loadErrs)
	}
	formatter.VerboseLog("Loaded %d namespace(s) from %d CUE file(s)", len(res.Namespaces), res.FileCount)

	specs, err := selectNamespace(res.Namespaces, opts.Namespace)
	if err != nil {
		_ = formatter.Error(compiler.ErrCodeNoNamespace, err.Error(), nil)
		return WrapExitError(ExitCommandError, "compilation failed", err)
	}

	var verrs []compiler.ValidationError
	for i := range specs {
		verrs = append(verrs, compiler.Validate(&specs[i])...)
	}
	if len(verrs) > 0 {
		return outputValidationErrors(formatter, "Compilation", verrs)
	}

	buildOpts := []graph.BuildOption{
		graph.WithExhaustiveLimit(opts.ExhaustiveLimit),
		graph.WithSamples(opts.Samples),
		graph.WithSeed(opts.Seed),
	}

	result := CompilationResult{Output: opts.Output}
	var artifact bytes.Buffer
	for i := range specs {
		spec := &specs[i]
		formatter.VerboseLog("Compiling namespace: %s", spec.Name)

		regs := compiler.Registrations(spec)
		ns, err := namespace.CompileNamespace(spec.Name, regs,
			namespace.WithLogger(logger),
			namespace.WithBuildOptions(buildOpts...),
		)
		if err != nil {
			return outputGuardError(formatter, spec.Name, err)
		}

		if err := writeArtifact(&artifact, ns, opts.Dot); err != nil {
			return WrapExitError(ExitCommandError, "rendering graph", err)
		}

		summary := summarize(spec, ns, len(regs))
		if opts.Output == "" && formatter.JSON() {
			var one bytes.Buffer
			_ = writeArtifact(&one, ns, opts.Dot)
			summary.Graph = one.String()
		}
		result.Namespaces = append(result.Namespaces, summary)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, artifact.Bytes(), 0644); err != nil {
			_ = formatter.Error(compiler.ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputCompileText(formatter.Writer, result, artifact.String())
}

// selectNamespace narrows specs to the named namespace, or returns all of
// them when name is empty.
func selectNamespace(specs []ir.NamespaceSpec, name string) ([]ir.NamespaceSpec, error) {
	if name == "" {
		return specs, nil
	}
	for _, s := range specs {
		if s.Name == name {
			return []ir.NamespaceSpec{s}, nil
		}
	}
	return nil, fmt.Errorf("namespace %q is not declared", name)
}

func summarize(spec *ir.NamespaceSpec, ns *namespace.Namespace, regs int) NamespaceSummary {
	stats := ns.Stats()
	return NamespaceSummary{
		Name:          spec.Name,
		Hash:          ns.Hash(),
		Machines:      len(spec.Machines),
		Events:        len(spec.Events),
		Registrations: regs,
		Conditions:    ns.Cache().Len(),
		Nodes:         len(ns.Graph().Nodes),
		Stats: CompileStats{
			Clauses:    stats.Clauses,
			Exhaustive: stats.Exhaustive,
			Orderings:  stats.Orderings,
			Merges:     stats.Merges,
			MemoHits:   stats.MemoHits,
			Complexity: stats.Complexity,
		},
		Cycles: compiler.AnalyzeCycles(spec),
	}
}

func writeArtifact(w io.Writer, ns *namespace.Namespace, dot bool) error {
	if dot {
		return graph.WriteDot(w, ns.Graph(), ns.Cache())
	}
	_, err := fmt.Fprintf(w, "# namespace %s\n%s", ns.Name(), ns.Debug())
	return err
}

// outputGuardError reports a guard that failed to compile. Validation
// catches syntax errors first, so this is mostly lowering failures.
func outputGuardError(f *OutputFormatter, ns string, err error) error {
	code := compiler.ErrCodeGeneric
	var perr *guard.ParseError
	if errors.As(err, &perr) {
		code = compiler.ErrGuardSyntax
	}
	message := fmt.Sprintf("namespace %s: %v", ns, err)
	_ = f.Error(code, message, nil)
	return WrapExitError(ExitFailure, "compilation failed", err)
}

func outputCompileText(w io.Writer, result CompilationResult, artifact string) error {
	fmt.Fprintf(w, "✓ Compiled %d namespace(s)\n\n", len(result.Namespaces))

	for _, s := range result.Namespaces {
		search := "sampled"
		if s.Stats.Exhaustive {
			search = "exhaustive"
		}
		fmt.Fprintf(w, "Namespace %s\n", s.Name)
		fmt.Fprintf(w, "  hash:          %s\n", s.Hash)
		fmt.Fprintf(w, "  machines:      %d\n", s.Machines)
		fmt.Fprintf(w, "  events:        %d\n", s.Events)
		fmt.Fprintf(w, "  registrations: %d\n", s.Registrations)
		fmt.Fprintf(w, "  conditions:    %d\n", s.Conditions)
		fmt.Fprintf(w, "  nodes:         %d\n", s.Nodes)
		fmt.Fprintf(w, "  complexity:    %d\n", s.Stats.Complexity)
		fmt.Fprintf(w, "  search:        %d clause(s), %d ordering(s) %s, %d merge(s), %d memo hit(s)\n",
			s.Stats.Clauses, s.Stats.Orderings, search, s.Stats.Merges, s.Stats.MemoHits)
		for _, c := range s.Cycles {
			fmt.Fprintf(w, "  %s: %s\n", c.Level, c.Message)
		}
		fmt.Fprintln(w)
	}

	if result.Output != "" {
		fmt.Fprintf(w, "Wrote graphs to %s\n", result.Output)
		return nil
	}
	_, err := io.WriteString(w, artifact)
	return err
}
