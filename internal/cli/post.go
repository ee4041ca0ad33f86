package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fsmnet/internal/ir"
)

// PostOptions holds flags for the post command.
type PostOptions struct {
	*RootOptions
	Database  string
	Namespace string
	Attrs     string
	Priority  int
	MaxSteps  int
}

// NewPostCommand creates the post command.
func NewPostCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PostOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "post <spec-path> <event-class>",
		Short: "Post one event to the instances in a database",
		Long: `Restore the instances logged in a database, post one external event
and deliver it along with everything it emits.

Attributes are given as canonical JSON; symbols are written {"$sym": "name"}.
Instances are created with run; post continues from wherever the log left
them.

Example:
  fsmnet run specs/ --events setup.yaml --db ./fsmnet.db
  fsmnet post specs/ Tick --db ./fsmnet.db --attrs '{"count":5}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return postEvent(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVarP(&opts.Namespace, "namespace", "n", "", "namespace of the event (optional with a single namespace)")
	cmd.Flags().StringVar(&opts.Attrs, "attrs", "{}", "event attributes as JSON")
	cmd.Flags().IntVar(&opts.Priority, "priority", 0, "delivery priority, higher first")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", 0, "events per cascade before QUOTA_EXCEEDED (0 uses the engine default)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func postEvent(opts *PostOptions, specPath, class string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var attrs ir.Object
	if err := attrs.UnmarshalJSON([]byte(opts.Attrs)); err != nil {
		return reportExit(formatter, WrapExitError(ExitCommandError, "invalid --attrs JSON", err))
	}

	specs, err := loadSpecs(specPath)
	if err != nil {
		return reportExit(formatter, err)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	s, err := openSession(ctx, specs, sessionConfig{
		database: opts.Database,
		maxSteps: opts.MaxSteps,
		logger:   opts.Logger(cmd.ErrOrStderr()),
	})
	if err != nil {
		return reportExit(formatter, err)
	}
	defer s.close()

	result := &RunResult{}
	if result.Restored, err = s.restore(ctx); err != nil {
		return reportExit(formatter, err)
	}
	if result.Restored == 0 {
		formatter.VerboseLog("No instances in %s; the event will fire nothing", opts.Database)
	}

	ev := ir.Event{Namespace: opts.Namespace, Class: class, Attrs: attrs, Priority: opts.Priority}
	s.postEvent(fmt.Sprintf("post %s", class), ev, result)

	if err := s.drain(ctx, result); err != nil {
		return reportExit(formatter, err)
	}
	if err := s.collect(ctx, result); err != nil {
		return reportExit(formatter, err)
	}
	return outputRunResult(formatter, result)
}
