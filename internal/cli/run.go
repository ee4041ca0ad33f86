package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/fsmnet/internal/compiler"
	"github.com/roach88/fsmnet/internal/engine"
	"github.com/roach88/fsmnet/internal/ir"
	"github.com/roach88/fsmnet/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Events   string
	Resume   bool
	MaxSteps int

	// IDGenerator names instances the events file leaves unnamed. Tests
	// override it; nil means UUIDv7Generator.
	IDGenerator engine.IDGenerator
}

// RunScript is the events file read by the run command.
type RunScript struct {
	MaxSteps  int              `yaml:"max_steps"`
	Instances []ScriptInstance `yaml:"instances"`
	Events    []ScriptEvent    `yaml:"events"`
}

// ScriptInstance spawns one instance before any event is posted.
type ScriptInstance struct {
	ID        string         `yaml:"id"`
	Namespace string         `yaml:"namespace"`
	Machine   string         `yaml:"machine"`
	Vars      map[string]any `yaml:"vars"`
}

// ScriptEvent posts one external event.
type ScriptEvent struct {
	Namespace string         `yaml:"namespace"`
	Class     string         `yaml:"class"`
	Attrs     map[string]any `yaml:"attrs"`
	Priority  int            `yaml:"priority"`
}

// RunResult is what run and post report.
type RunResult struct {
	Restored  int                   `json:"restored"`
	Spawned   int                   `json:"spawned"`
	Posted    int                   `json:"posted"`
	Fired     []ir.TransitionRecord `json:"fired"`
	Instances []ir.InstanceRecord   `json:"instances"`
	Errors    []CLIError            `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <spec-path>",
		Short: "Run an events file against compiled specs",
		Long: `Compile the specs, spawn the instances an events file declares, post
its events and deliver them, including everything they emit.

Every delivered event, fired transition and instance snapshot is written
to the SQLite log given by --db (in memory by default). With --resume the
instances already in the log are restored first, so several runs can
continue the same network.

Events file:
  max_steps: 100
  instances:
    - {id: light, namespace: traffic, machine: Light}
  events:
    - {namespace: traffic, class: Tick, attrs: {count: 5}}

Examples:
  fsmnet run specs/ --events events.yaml
  fsmnet run specs/ --events more.yaml --db ./fsmnet.db --resume`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", ":memory:", "path to SQLite database")
	cmd.Flags().StringVarP(&opts.Events, "events", "e", "", "events file (YAML)")
	cmd.Flags().BoolVar(&opts.Resume, "resume", false, "restore instances from the database first")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", 0, "events per cascade before QUOTA_EXCEEDED (0 uses the events file or the engine default)")

	return cmd
}

func runEngine(opts *RunOptions, specPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	specs, err := loadSpecs(specPath)
	if err != nil {
		return reportExit(formatter, err)
	}

	var script RunScript
	if opts.Events != "" {
		script, err = loadScript(opts.Events)
		if err != nil {
			return reportExit(formatter, WrapExitError(ExitCommandError, "failed to load events file", err))
		}
	}
	maxSteps := script.MaxSteps
	if opts.MaxSteps > 0 {
		maxSteps = opts.MaxSteps
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	s, err := openSession(ctx, specs, sessionConfig{
		database: opts.Database,
		maxSteps: maxSteps,
		ids:      opts.IDGenerator,
		logger:   opts.Logger(cmd.ErrOrStderr()),
	})
	if err != nil {
		return reportExit(formatter, err)
	}
	defer s.close()

	result := &RunResult{}
	if opts.Resume {
		if result.Restored, err = s.restore(ctx); err != nil {
			return reportExit(formatter, err)
		}
	}
	if result.Spawned, err = s.spawn(ctx, script.Instances); err != nil {
		return reportExit(formatter, err)
	}
	s.post(script.Events, result)
	if err := s.drain(ctx, result); err != nil {
		return reportExit(formatter, err)
	}
	if err := s.collect(ctx, result); err != nil {
		return reportExit(formatter, err)
	}

	return outputRunResult(formatter, result)
}

func loadScript(path string) (RunScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunScript{}, fmt.Errorf("failed to read events file: %w", err)
	}

	var script RunScript
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&script); err != nil && !errors.Is(err, io.EOF) {
		return RunScript{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if script.MaxSteps < 0 {
		return RunScript{}, fmt.Errorf("max_steps must be non-negative")
	}
	for i, inst := range script.Instances {
		if inst.Machine == "" {
			return RunScript{}, fmt.Errorf("instances[%d]: machine is required", i)
		}
	}
	for i, ev := range script.Events {
		if ev.Class == "" {
			return RunScript{}, fmt.Errorf("events[%d]: class is required", i)
		}
	}
	return script, nil
}

// signalContext derives the command context, cancelled on SIGINT/SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

type sessionConfig struct {
	database string
	maxSteps int
	ids      engine.IDGenerator
	logger   *slog.Logger
}

// session is one compiled engine writing to one log.
type session struct {
	specs  []ir.NamespaceSpec
	store  *store.Store
	engine *engine.Engine
	ids    *presetIDs
	fired  []ir.TransitionRecord
	logger *slog.Logger
}

func openSession(ctx context.Context, specs []ir.NamespaceSpec, cfg sessionConfig) (*session, error) {
	cfg.logger.Info("opening database", "path", cfg.database)
	st, err := store.Open(cfg.database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	fallback := cfg.ids
	if fallback == nil {
		fallback = engine.UUIDv7Generator{}
	}
	s := &session{
		specs:  specs,
		store:  st,
		ids:    &presetIDs{fallback: fallback},
		logger: cfg.logger,
	}

	engOpts := []engine.EngineOption{
		engine.WithStore(st),
		engine.WithIDGenerator(s.ids),
		engine.WithLogger(cfg.logger),
		engine.WithFiringHook(func(rec ir.TransitionRecord) {
			s.fired = append(s.fired, rec)
		}),
	}
	if cfg.maxSteps > 0 {
		engOpts = append(engOpts, engine.WithMaxSteps(cfg.maxSteps))
	}
	s.engine = engine.New(specs, engOpts...)

	if err := s.engine.Compile(ctx); err != nil {
		s.close()
		return nil, WrapExitError(ExitCommandError, "failed to compile specs", err)
	}
	return s, nil
}

func (s *session) close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

func (s *session) restore(ctx context.Context) (int, error) {
	n, err := s.engine.Restore(ctx)
	if err != nil {
		return n, WrapExitError(ExitCommandError, "failed to restore from database", err)
	}
	s.logger.Info("instances restored", "count", n)
	return n, nil
}

// namespaceFor fills in the namespace when the specs declare only one.
func (s *session) namespaceFor(ns string) (string, error) {
	if ns != "" {
		return ns, nil
	}
	if len(s.specs) == 1 {
		return s.specs[0].Name, nil
	}
	return "", fmt.Errorf("namespace is required when specs declare %d namespaces", len(s.specs))
}

// spawn creates the script's instances. An instance whose ID is already
// registered, because it was restored, is left alone.
func (s *session) spawn(ctx context.Context, instances []ScriptInstance) (int, error) {
	spawned := 0
	for i, step := range instances {
		if step.ID != "" {
			if _, ok := s.engine.Instance(step.ID); ok {
				s.logger.Debug("instance already restored", "instance", step.ID)
				continue
			}
		}
		ns, err := s.namespaceFor(step.Namespace)
		if err != nil {
			return spawned, WrapExitError(ExitCommandError, fmt.Sprintf("instances[%d]", i), err)
		}
		vars, err := ir.ObjectFromGo(step.Vars)
		if err != nil {
			return spawned, WrapExitError(ExitCommandError, fmt.Sprintf("instances[%d]: vars", i), err)
		}

		s.ids.preset(step.ID)
		inst, err := s.engine.Spawn(ctx, ns, step.Machine, vars)
		if err != nil {
			return spawned, WrapExitError(ExitCommandError, fmt.Sprintf("instances[%d]", i), err)
		}
		spawned++
		s.logger.Info("instance spawned", "namespace", ns, "machine", step.Machine, "instance", inst.ID())
	}
	return spawned, nil
}

// post queues the script's events. An event the engine rejects is
// reported and skipped.
func (s *session) post(events []ScriptEvent, result *RunResult) {
	for i, step := range events {
		label := fmt.Sprintf("events[%d]", i)
		attrs, err := ir.ObjectFromGo(step.Attrs)
		if err != nil {
			result.Errors = append(result.Errors, CLIError{Code: compiler.ErrCodeGeneric, Message: fmt.Sprintf("%s: attrs: %v", label, err)})
			continue
		}
		s.postEvent(label, ir.Event{Namespace: step.Namespace, Class: step.Class, Attrs: attrs, Priority: step.Priority}, result)
	}
}

func (s *session) postEvent(label string, ev ir.Event, result *RunResult) {
	ns, err := s.namespaceFor(ev.Namespace)
	if err != nil {
		result.Errors = append(result.Errors, CLIError{Code: compiler.ErrCodeGeneric, Message: fmt.Sprintf("%s: %v", label, err)})
		return
	}
	ev.Namespace = ns

	posted, err := s.engine.Post(ev)
	if err != nil {
		result.Errors = append(result.Errors, runtimeError(label, err))
		return
	}
	result.Posted++
	s.logger.Debug("event posted", "namespace", ns, "class", ev.Class, "seq", posted.Seq, "id", posted.ID)
}

// drain delivers every queued event. Runtime errors are reported in the
// result; cancellation stops the run.
func (s *session) drain(ctx context.Context, result *RunResult) error {
	err := s.engine.Drain(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return WrapExitError(ExitCommandError, "run interrupted", ctxErr)
	}
	for _, e := range flattenErrors(err) {
		result.Errors = append(result.Errors, runtimeError("", e))
	}
	return nil
}

// collect fills in the fired transitions and the instance snapshots.
func (s *session) collect(ctx context.Context, result *RunResult) error {
	result.Fired = s.fired
	if result.Fired == nil {
		result.Fired = []ir.TransitionRecord{}
	}
	result.Instances = []ir.InstanceRecord{}
	for _, ns := range s.engine.Namespaces() {
		recs, err := s.store.ReadInstances(ctx, ns)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read instances", err)
		}
		result.Instances = append(result.Instances, recs...)
	}
	return nil
}

// presetIDs hands the next Spawn a chosen ID, or a generated one when none
// was chosen.
type presetIDs struct {
	next     string
	fallback engine.IDGenerator
}

func (p *presetIDs) preset(id string) { p.next = id }

func (p *presetIDs) Generate() string {
	if id := p.next; id != "" {
		p.next = ""
		return id
	}
	return p.fallback.Generate()
}

func runtimeError(prefix string, err error) CLIError {
	code := string(engine.CodeOf(err))
	if code == "" {
		code = compiler.ErrCodeGeneric
	}
	message := err.Error()
	if prefix != "" {
		message = prefix + ": " + message
	}
	return CLIError{Code: code, Message: message}
}

// flattenErrors unpacks errors.Join trees into their leaves.
func flattenErrors(err error) []error {
	if err == nil {
		return nil
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []error{err}
	}
	var out []error
	for _, e := range joined.Unwrap() {
		out = append(out, flattenErrors(e)...)
	}
	return out
}

// reportExit prints err in the configured format and returns it.
func reportExit(f *OutputFormatter, err error) error {
	code, message := loadErrorCode(err)
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err != nil {
		if rc := engine.CodeOf(exitErr.Err); rc != "" {
			code = string(rc)
		}
		message = exitErr.Error()
	}
	_ = f.Error(code, message, nil)
	return err
}

func outputRunResult(f *OutputFormatter, result *RunResult) error {
	var exit error
	if len(result.Errors) > 0 {
		exit = NewExitError(ExitFailure, fmt.Sprintf("%d runtime error(s)", len(result.Errors)))
	}

	if f.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if exit != nil {
			resp.Status = "error"
			resp.Error = &result.Errors[0]
		}
		if err := f.Encode(resp); err != nil {
			return err
		}
		return exit
	}

	w := f.Writer
	if result.Restored > 0 {
		fmt.Fprintf(w, "Restored %d instance(s)\n", result.Restored)
	}
	fmt.Fprintf(w, "Spawned %d instance(s), posted %d event(s)\n", result.Spawned, result.Posted)

	fmt.Fprintf(w, "\nFired %d transition(s):\n", len(result.Fired))
	for _, t := range result.Fired {
		line := fmt.Sprintf("  %d %s %s %s -> %s", t.Seq, t.InstanceID, t.Machine, t.From, t.To)
		if t.Action != "" {
			line += " /" + t.Action
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintf(w, "\nInstances:\n")
	for _, inst := range result.Instances {
		vars, err := ir.MarshalCanonical(inst.Vars)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %s %s/%s %s %s\n", inst.ID, inst.Namespace, inst.Machine, inst.State, vars)
	}

	if exit != nil {
		fmt.Fprintf(w, "\n✗ %d runtime error(s):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s: %s\n", e.Code, e.Message)
		}
	}
	return exit
}
