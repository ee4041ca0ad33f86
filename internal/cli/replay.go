package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/fsmnet/internal/compiler"
	"github.com/roach88/fsmnet/internal/ir"
	"github.com/roach88/fsmnet/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Instance string // optional, one instance only
}

// ReplayInstanceResult is the replay of one instance's history.
type ReplayInstanceResult struct {
	Instance    string   `json:"instance"`
	Namespace   string   `json:"namespace"`
	Machine     string   `json:"machine"`
	Transitions int      `json:"transitions"`
	State       string   `json:"state"`
	Consistent  bool     `json:"consistent"`
	Problems    []string `json:"problems,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Instances     []ReplayInstanceResult `json:"instances"`
	Total         int                    `json:"total"`
	AllConsistent bool                   `json:"all_consistent"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <spec-path>",
		Short: "Replay the transition log against the specs",
		Long: `Replay every instance's logged history against its machine definition.

The log must have been written by the same definition of each namespace
(its registration hash is checked first). Each instance is then walked
from its machine's initial state: every logged transition must leave the
state the previous one entered and must be declared for the event that
triggered it, and the walk must end in the state of the latest snapshot.

Exit codes:
  0 - Every history is consistent
  1 - Inconsistent history, or the log was written by other specs
  2 - Command error (database not found, specs do not load, etc.)

Examples:
  fsmnet replay specs/ --db ./fsmnet.db
  fsmnet replay specs/ --db ./fsmnet.db --instance light --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Instance, "instance", "", "replay one instance only")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(opts *ReplayOptions, specPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	specs, err := loadSpecs(specPath)
	if err != nil {
		return reportExit(formatter, err)
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return reportExit(formatter, err)
	}
	defer st.Close()

	r := &replayer{store: st, events: make(map[string]ir.Event)}
	result := ReplayResult{Instances: []ReplayInstanceResult{}, AllConsistent: true}

	for i := range specs {
		spec := &specs[i]
		hash, err := ir.NamespaceHash(compiler.Registrations(spec))
		if err != nil {
			return reportExit(formatter, WrapExitError(ExitCommandError, "hashing namespace", err))
		}
		if err := st.CheckNamespaceHash(ctx, spec.Name, hash); err != nil {
			if errors.Is(err, store.ErrHashMismatch) {
				return reportExit(formatter, WrapExitError(ExitFailure, "log was written by other specs", err))
			}
			return reportExit(formatter, WrapExitError(ExitCommandError, "failed to read log", err))
		}

		instances, err := st.ReadInstances(ctx, spec.Name)
		if err != nil {
			return reportExit(formatter, WrapExitError(ExitCommandError, "failed to read instances", err))
		}
		for _, rec := range instances {
			if opts.Instance != "" && rec.ID != opts.Instance {
				continue
			}
			formatter.VerboseLog("Replaying %s (%s/%s)", rec.ID, rec.Namespace, rec.Machine)

			res, err := r.replay(ctx, spec, rec)
			if err != nil {
				return reportExit(formatter, WrapExitError(ExitCommandError, "failed to read log", err))
			}
			result.Instances = append(result.Instances, res)
			result.AllConsistent = result.AllConsistent && res.Consistent
		}
	}
	result.Total = len(result.Instances)

	if opts.Instance != "" && result.Total == 0 {
		_ = formatter.Error(compiler.ErrCodeNotFound, fmt.Sprintf("instance %q is not in the log", opts.Instance), nil)
		return NewExitError(ExitFailure, fmt.Sprintf("instance %q not found", opts.Instance))
	}

	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter.Writer, result)
	}

	if !result.AllConsistent {
		return NewExitError(ExitFailure, "replay found inconsistent histories")
	}
	return nil
}

// replayer walks instance histories, caching the triggering events.
type replayer struct {
	store  *store.Store
	events map[string]ir.Event
}

func (r *replayer) event(ctx context.Context, id string) (ir.Event, error) {
	if ev, ok := r.events[id]; ok {
		return ev, nil
	}
	ev, err := r.store.ReadEvent(ctx, id)
	if err != nil {
		return ir.Event{}, fmt.Errorf("event %s: %w", id, err)
	}
	r.events[id] = ev
	return ev, nil
}

func (r *replayer) replay(ctx context.Context, spec *ir.NamespaceSpec, rec ir.InstanceRecord) (ReplayInstanceResult, error) {
	res := ReplayInstanceResult{
		Instance:  rec.ID,
		Namespace: rec.Namespace,
		Machine:   rec.Machine,
		State:     rec.State,
	}

	m, ok := spec.Machine(rec.Machine)
	if !ok {
		res.Problems = append(res.Problems, fmt.Sprintf("machine %s is not declared", rec.Machine))
		return res, nil
	}

	history, err := r.store.ReadInstanceHistory(ctx, rec.ID)
	if err != nil {
		return res, err
	}
	res.Transitions = len(history)

	state := m.Initial
	for _, t := range history {
		if t.From != state {
			res.Problems = append(res.Problems, fmt.Sprintf("seq %d: left %s but the instance was in %s", t.Seq, t.From, state))
		}
		ev, err := r.event(ctx, t.EventID)
		if err != nil {
			return res, err
		}
		if !declared(m, ev.Class, t) {
			res.Problems = append(res.Problems, fmt.Sprintf("seq %d: %s -> %s on %s is not declared", t.Seq, t.From, t.To, ev.Class))
		}
		state = t.To
	}
	if state != rec.State {
		res.Problems = append(res.Problems, fmt.Sprintf("history ends in %s but the snapshot is %s", state, rec.State))
	}

	res.Consistent = len(res.Problems) == 0
	return res, nil
}

// declared reports whether m has a transition on class matching the logged
// one, named action included.
func declared(m *ir.MachineSpec, class string, t ir.TransitionRecord) bool {
	for _, spec := range m.Transitions {
		if spec.On == class && spec.From == t.From && spec.To == t.To && spec.Action == t.Action {
			return true
		}
	}
	return false
}

func outputReplayText(w io.Writer, result ReplayResult) {
	for _, r := range result.Instances {
		mark := "✓"
		if !r.Consistent {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s (%s/%s): %d transition(s), now %s\n", mark, r.Instance, r.Namespace, r.Machine, r.Transitions, r.State)
		for _, p := range r.Problems {
			fmt.Fprintf(w, "    %s\n", p)
		}
	}
	fmt.Fprintln(w)
	if result.AllConsistent {
		fmt.Fprintf(w, "✓ All %d instance histories consistent\n", result.Total)
		return
	}
	fmt.Fprintln(w, "✗ Replay found inconsistent histories")
}
