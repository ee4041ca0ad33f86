package harness

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/fsmnet/internal/compiler"
	"github.com/roach88/fsmnet/internal/engine"
	"github.com/roach88/fsmnet/internal/ir"
	"github.com/roach88/fsmnet/internal/store"
	"github.com/roach88/fsmnet/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios against the real engine with a deterministic clock and
// instance IDs, logging into a private in-memory store.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	logger *slog.Logger
	specs  []ir.NamespaceSpec
}

// Option configures a scenario run.
type Option func(*runConfig)

type runConfig struct {
	logger  *slog.Logger
	actions map[string]engine.Action
}

// WithLogger sets the logger handed to the engine. Runs are silent by
// default.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithAction registers a named Go action for the run.
func WithAction(name string, fn engine.Action) Option {
	return func(c *runConfig) {
		c.actions[name] = fn
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Load the CUE specs and compile every namespace
// 2. Spawn the instances in order
// 3. Post every event, then drain the queue
// 4. Read the trace and final state back from the store
// 5. Evaluate assertions
//
// The returned error reports a scenario that could not be executed at all
// (missing specs, compile failure). Assertion failures are reported in the
// result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{
		logger:  slog.New(slog.DiscardHandler),
		actions: make(map[string]engine.Action),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	specs, err := loadSpecs(scenario.Specs)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ids := resolveInstanceIDs(scenario.Instances)

	engOpts := []engine.EngineOption{
		engine.WithStore(st),
		engine.WithClock(testutil.NewClock()),
		engine.WithIDGenerator(engine.NewFixedGenerator(ids...)),
		engine.WithLogger(cfg.logger),
	}
	if scenario.MaxSteps > 0 {
		engOpts = append(engOpts, engine.WithMaxSteps(scenario.MaxSteps))
	}
	for name, fn := range cfg.actions {
		engOpts = append(engOpts, engine.WithAction(name, fn))
	}

	h := &Harness{
		store:  st,
		engine: engine.New(specs, engOpts...),
		logger: cfg.logger,
		specs:  specs,
	}

	if err := h.engine.Compile(ctx); err != nil {
		return nil, fmt.Errorf("failed to compile specs: %w", err)
	}

	result := NewResult()
	for _, name := range h.engine.Namespaces() {
		if ns, ok := h.engine.Namespace(name); ok {
			result.Graphs[name] = ns.Debug()
		}
	}

	if err := h.spawn(ctx, scenario.Instances); err != nil {
		return nil, fmt.Errorf("failed to spawn instances: %w", err)
	}
	if err := h.post(scenario.Events, result); err != nil {
		return nil, fmt.Errorf("failed to post events: %w", err)
	}

	if err := h.engine.Drain(ctx); err != nil {
		for _, e := range flatten(err) {
			code := engine.CodeOf(e)
			if code == "" {
				return nil, fmt.Errorf("drain: %w", e)
			}
			result.RuntimeErrors = append(result.RuntimeErrors, string(code))
		}
	}

	if err := h.collect(ctx, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	if !expectsRuntimeErrors(scenario.Assertions) {
		for _, code := range result.RuntimeErrors {
			result.AddError("unexpected runtime error: " + code)
		}
	}

	return result, nil
}

// RunFile loads a scenario file and runs it.
func RunFile(ctx context.Context, path string, opts ...Option) (*Scenario, *Result, error) {
	scenario, err := LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	result, err := Run(ctx, scenario, opts...)
	return scenario, result, err
}

func loadSpecs(paths []string) ([]ir.NamespaceSpec, error) {
	var specs []ir.NamespaceSpec
	for _, p := range paths {
		res, errs := compiler.Load(p, compiler.LoadModeCollectAll)
		if len(errs) > 0 {
			return nil, fmt.Errorf("failed to load %s: %w", p, errors.Join(errs...))
		}
		specs = append(specs, res.Namespaces...)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no namespaces declared in %v", paths)
	}
	return specs, nil
}

// resolveInstanceIDs fixes every instance ID up front: explicit IDs are
// kept and the rest are numbered in spawn order.
func resolveInstanceIDs(steps []InstanceStep) []string {
	taken := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s.ID != "" {
			taken[s.ID] = true
		}
	}

	gen := testutil.NewSequentialGenerator("inst")
	ids := make([]string, len(steps))
	for i, s := range steps {
		if s.ID != "" {
			ids[i] = s.ID
			continue
		}
		id := gen.Generate()
		for taken[id] {
			id = gen.Generate()
		}
		taken[id] = true
		ids[i] = id
	}
	return ids
}

// namespaceFor fills in the namespace when the specs declare only one.
func (h *Harness) namespaceFor(ns string) (string, error) {
	if ns != "" {
		return ns, nil
	}
	if len(h.specs) == 1 {
		return h.specs[0].Name, nil
	}
	return "", fmt.Errorf("namespace is required when specs declare %d namespaces", len(h.specs))
}

func (h *Harness) spawn(ctx context.Context, steps []InstanceStep) error {
	for i, step := range steps {
		ns, err := h.namespaceFor(step.Namespace)
		if err != nil {
			return fmt.Errorf("instances[%d]: %w", i, err)
		}
		vars, err := ir.ObjectFromGo(step.Vars)
		if err != nil {
			return fmt.Errorf("instances[%d]: vars: %w", i, err)
		}
		inst, err := h.engine.Spawn(ctx, ns, step.Machine, vars)
		if err != nil {
			return fmt.Errorf("instances[%d]: %w", i, err)
		}

		h.logger.Info("instance spawned",
			"step", i,
			"namespace", ns,
			"machine", step.Machine,
			"instance", inst.ID(),
		)
	}
	return nil
}

func (h *Harness) post(steps []EventStep, result *Result) error {
	for i, step := range steps {
		ns, err := h.namespaceFor(step.Namespace)
		if err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
		attrs, err := ir.ObjectFromGo(step.Attrs)
		if err != nil {
			return fmt.Errorf("events[%d]: attrs: %w", i, err)
		}

		ev, err := h.engine.Post(ir.Event{
			Namespace: ns,
			Class:     step.Class,
			Attrs:     attrs,
			Priority:  step.Priority,
		})
		code := string(engine.CodeOf(err))
		switch {
		case err != nil && code == "":
			return fmt.Errorf("events[%d]: %w", i, err)
		case step.ExpectError == "" && err != nil:
			result.AddError(fmt.Sprintf("events[%d]: post %s failed: %v", i, step.Class, err))
			continue
		case step.ExpectError != "" && code != step.ExpectError:
			got := "success"
			if err != nil {
				got = code
			}
			result.AddError(fmt.Sprintf("events[%d]: expected post to fail with %s, got %s", i, step.ExpectError, got))
			continue
		case err != nil:
			continue
		}

		h.logger.Info("event posted",
			"step", i,
			"namespace", ns,
			"class", step.Class,
			"seq", ev.Seq,
		)
	}
	return nil
}

// collect reads the trace and the final instance snapshots back from the
// store.
func (h *Harness) collect(ctx context.Context, result *Result) error {
	for _, ns := range h.engine.Namespaces() {
		events, err := h.store.ReadEvents(ctx, ns)
		if err != nil {
			return fmt.Errorf("read events: %w", err)
		}
		transitions, err := h.store.ReadTransitions(ctx, ns)
		if err != nil {
			return fmt.Errorf("read transitions: %w", err)
		}
		result.Trace = append(result.Trace, Timeline(events, transitions)...)

		instances, err := h.store.ReadInstances(ctx, ns)
		if err != nil {
			return fmt.Errorf("read instances: %w", err)
		}
		for _, rec := range instances {
			result.State[rec.ID] = rec
		}
	}

	slices.SortStableFunc(result.Trace, func(a, b TraceEvent) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return nil
}

// flatten unpacks joined errors into their leaves.
func flatten(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, flatten(e)...)
		}
		return out
	}
	return []error{err}
}

func expectsRuntimeErrors(assertions []Assertion) bool {
	return slices.ContainsFunc(assertions, func(a Assertion) bool {
		return a.Type == AssertRuntimeError
	})
}
