package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/fsmnet/internal/harness"
	"github.com/roach88/fsmnet/internal/ir"
	"github.com/roach88/fsmnet/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	Namespace string
	Root      string
	Instance  string
}

// Cascade is everything that followed from one external event.
type Cascade struct {
	Root     string               `json:"root"`
	Timeline []harness.TraceEvent `json:"timeline"`
	Stats    CascadeStats         `json:"stats"`
}

// CascadeStats holds summary statistics for a cascade.
type CascadeStats struct {
	Events      int `json:"events"`
	Transitions int `json:"transitions"`
}

// InstanceTrace is the history of one instance.
type InstanceTrace struct {
	Instance ir.InstanceRecord     `json:"instance"`
	History  []ir.TransitionRecord `json:"history"`
}

// TraceResult holds the complete trace output. Exactly one of the fields
// is set, depending on the query.
type TraceResult struct {
	Cascades []Cascade      `json:"cascades,omitempty"`
	Instance *InstanceTrace `json:"instance,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Read the transition log",
		Long: `Read the transition log written by run and post.

By default every cascade is shown: an externally posted event followed by
the events emitted on its behalf and the transitions they fired, in seq
order. --root selects one cascade, --instance shows the transitions one
instance took.

Examples:
  fsmnet trace --db ./fsmnet.db
  fsmnet trace --db ./fsmnet.db --namespace traffic
  fsmnet trace --db ./fsmnet.db --root 3f2a...
  fsmnet trace --db ./fsmnet.db --instance light --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVarP(&opts.Namespace, "namespace", "n", "", "only cascades posted to this namespace")
	cmd.Flags().StringVar(&opts.Root, "root", "", "ID of the root event of one cascade")
	cmd.Flags().StringVar(&opts.Instance, "instance", "", "history of one instance")
	cmd.MarkFlagsMutuallyExclusive("root", "instance")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return reportExit(formatter, err)
	}
	defer st.Close()

	var result TraceResult
	switch {
	case opts.Instance != "":
		result.Instance, err = instanceTrace(ctx, st, opts.Instance)
	case opts.Root != "":
		var c Cascade
		c, err = readCascade(ctx, st, opts.Root)
		result.Cascades = []Cascade{c}
	default:
		result.Cascades, err = readCascades(ctx, st, opts.Namespace)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reportExit(formatter, WrapExitError(ExitFailure, "not found in log", err))
		}
		return reportExit(formatter, WrapExitError(ExitCommandError, "failed to read log", err))
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	if result.Instance != nil {
		return outputInstanceText(formatter.Writer, result.Instance)
	}
	return outputCascadesText(formatter.Writer, result.Cascades)
}

// openExisting opens a log that must already exist; store.Open would
// create an empty one.
func openExisting(path string) (*store.Store, error) {
	if path != ":memory:" {
		if _, err := os.Stat(path); err != nil {
			return nil, WrapExitError(ExitCommandError, "database not found", err)
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func readCascades(ctx context.Context, st *store.Store, namespace string) ([]Cascade, error) {
	roots, err := st.ReadRoots(ctx, namespace)
	if err != nil {
		return nil, err
	}
	cascades := make([]Cascade, 0, len(roots))
	for _, root := range roots {
		c, err := readCascade(ctx, st, root.ID)
		if err != nil {
			return nil, err
		}
		cascades = append(cascades, c)
	}
	return cascades, nil
}

func readCascade(ctx context.Context, st *store.Store, root string) (Cascade, error) {
	tr, err := st.ReadTrace(ctx, root)
	if err != nil {
		return Cascade{}, err
	}
	return Cascade{
		Root:     root,
		Timeline: harness.Timeline(tr.Events, tr.Transitions),
		Stats:    CascadeStats{Events: len(tr.Events), Transitions: len(tr.Transitions)},
	}, nil
}

func instanceTrace(ctx context.Context, st *store.Store, id string) (*InstanceTrace, error) {
	rec, err := st.ReadInstance(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", id, err)
	}
	history, err := st.ReadInstanceHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []ir.TransitionRecord{}
	}
	return &InstanceTrace{Instance: rec, History: history}, nil
}

func outputCascadesText(w io.Writer, cascades []Cascade) error {
	if len(cascades) == 0 {
		fmt.Fprintln(w, "No events logged")
		return nil
	}
	for i, c := range cascades {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Cascade %s (%d event(s), %d transition(s))\n", c.Root, c.Stats.Events, c.Stats.Transitions)
		for _, e := range c.Timeline {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	return nil
}

func outputInstanceText(w io.Writer, it *InstanceTrace) error {
	vars, err := ir.MarshalCanonical(it.Instance.Vars)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Instance %s (%s/%s)\n", it.Instance.ID, it.Instance.Namespace, it.Instance.Machine)
	fmt.Fprintf(w, "  state: %s\n", it.Instance.State)
	fmt.Fprintf(w, "  vars:  %s\n", vars)
	fmt.Fprintf(w, "\nHistory (%d transition(s)):\n", len(it.History))
	for _, t := range it.History {
		fmt.Fprintf(w, "  %s\n", harness.FiredEntry(t))
	}
	return nil
}
