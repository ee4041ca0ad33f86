package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/fsmnet/internal/compiler"
	"github.com/roach88/fsmnet/internal/graph"
	"github.com/roach88/fsmnet/internal/ir"
	"github.com/roach88/fsmnet/internal/namespace"
	"github.com/roach88/fsmnet/internal/store"
)

// Engine is the single-writer FSM runtime.
//
// The engine delivers posted events in priority order, evaluates each
// event against its namespace's decision graph, and applies the concrete
// transitions that come out: state changes, variable sets, actions and
// emitted events.
//
// CRITICAL: All instance mutations happen in the single-writer Run loop
// goroutine (or in Drain, which must not run concurrently with Run).
// External callers use Post() to submit events for processing.
//
// Thread-safety model:
//   - Post(), Spawn(): safe from any goroutine once Compile has returned
//   - Run() or Drain(): must be called from exactly one goroutine
//   - Instance reads: safe from any goroutine
//
// INVARIANTS:
//   - Namespaces are compiled once and never change afterwards
//   - Event seq numbers are unique and increase in posting order
//   - An instance fires at most one transition per event
type Engine struct {
	store   *store.Store // nil disables the log
	clock   Sequencer
	ids     IDGenerator
	logger  *slog.Logger
	actions map[string]Action
	hooks   []func(ir.TransitionRecord)
	build   []graph.BuildOption
	strict  bool

	specs    []ir.NamespaceSpec
	runtimes map[string]*nsRuntime
	compiled atomic.Bool

	queue         *eventQueue
	cycleDetector *CycleDetector

	maxSteps int // Maximum events per cascade (default: 1000)

	mu       sync.Mutex // guards cascades and orders stamping with enqueueing
	cascades *cascades
}

// nsRuntime is the per-namespace state of the engine.
type nsRuntime struct {
	spec     *ir.NamespaceSpec
	ns       *namespace.Namespace // nil until Compile
	registry *Registry
	effects  map[string]effect
	ranks    map[rankKey]int
}

// DefaultMaxSteps is the default maximum number of events per cascade.
// This prevents runaway emit loops from consuming unbounded resources.
const DefaultMaxSteps = 1000

// ErrStopped is returned when posting to an engine whose queue is closed.
var ErrStopped = errors.New("engine stopped")

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithStore logs events, transitions and instance snapshots to s.
func WithStore(s *store.Store) EngineOption {
	return func(e *Engine) {
		e.store = s
	}
}

// WithClock sets the logical clock. Used by tests for deterministic seq
// numbers.
func WithClock(c Sequencer) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the instance ID generator.
//
// Default: UUIDv7Generator
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithAction registers Go code for a named action.
func WithAction(name string, fn Action) EngineOption {
	return func(e *Engine) {
		e.actions[name] = fn
	}
}

// WithStrictActions makes Compile fail when a transition names an action
// with no registered handler. By default such actions are only recorded.
func WithStrictActions() EngineOption {
	return func(e *Engine) {
		e.strict = true
	}
}

// WithMaxSteps sets the maximum number of events per cascade.
//
// Default: 1000 steps (DefaultMaxSteps)
// Use WithMaxSteps(10) for testing quota enforcement.
func WithMaxSteps(maxSteps int) EngineOption {
	return func(e *Engine) {
		e.maxSteps = maxSteps
	}
}

// WithLogger sets the logger. The namespace compiler logs through it too.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithBuildOptions passes options through to the decision graph optimizer.
func WithBuildOptions(opts ...graph.BuildOption) EngineOption {
	return func(e *Engine) {
		e.build = append(e.build, opts...)
	}
}

// WithFiringHook registers a function called after every fired
// transition, in the Run loop goroutine.
func WithFiringHook(fn func(ir.TransitionRecord)) EngineOption {
	return func(e *Engine) {
		e.hooks = append(e.hooks, fn)
	}
}

// New creates an Engine for the given namespaces.
//
// The specs slice is copied; declaration order is kept for Namespaces().
// Call Compile before posting events.
func New(specs []ir.NamespaceSpec, opts ...EngineOption) *Engine {
	e := &Engine{
		clock:         NewClock(),
		ids:           UUIDv7Generator{},
		logger:        slog.Default(),
		actions:       make(map[string]Action),
		specs:         make([]ir.NamespaceSpec, len(specs)),
		runtimes:      make(map[string]*nsRuntime, len(specs)),
		queue:         newEventQueue(),
		cycleDetector: NewCycleDetector(),
		maxSteps:      DefaultMaxSteps,
	}
	copy(e.specs, specs)

	for _, opt := range opts {
		opt(e)
	}
	e.cascades = newCascades(e.maxSteps)

	for i := range e.specs {
		spec := &e.specs[i]
		if _, dup := e.runtimes[spec.Name]; dup {
			continue
		}
		e.runtimes[spec.Name] = &nsRuntime{
			spec:     spec,
			registry: newRegistry(),
			effects:  buildEffects(spec),
			ranks:    buildRanks(spec),
		}
	}

	return e
}

// Compile validates every namespace and compiles their decision graphs in
// parallel. Validation errors of all namespaces are reported together.
// Compiling twice is a no-op.
func (e *Engine) Compile(ctx context.Context) error {
	if e.compiled.Load() {
		return nil
	}

	if err := e.validate(); err != nil {
		return err
	}

	compiled := make([]*namespace.Namespace, len(e.specs))
	g, ctx := errgroup.WithContext(ctx)
	for i := range e.specs {
		spec := &e.specs[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := namespace.CompileNamespace(spec.Name, compiler.Registrations(spec),
				namespace.WithLogger(e.logger),
				namespace.WithBuildOptions(e.build...),
			)
			if err != nil {
				return fmt.Errorf("compile namespace %s: %w", spec.Name, err)
			}
			compiled[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range e.specs {
		e.runtimes[e.specs[i].Name].ns = compiled[i]
	}
	e.compiled.Store(true)

	e.logger.Info("engine compiled", "namespaces", len(e.specs))
	return nil
}

func (e *Engine) validate() error {
	var errs []error
	seen := make(map[string]bool, len(e.specs))
	for i := range e.specs {
		spec := &e.specs[i]
		if seen[spec.Name] {
			errs = append(errs, fmt.Errorf("duplicate namespace %q", spec.Name))
		}
		seen[spec.Name] = true

		for _, ve := range compiler.Validate(spec) {
			errs = append(errs, fmt.Errorf("namespace %s: %w", spec.Name, ve))
		}

		if e.strict {
			for _, m := range spec.Machines {
				for _, t := range m.Transitions {
					if t.Action == "" {
						continue
					}
					if _, ok := e.actions[t.Action]; !ok {
						errs = append(errs, &RuntimeError{
							Code:      ErrCodeUnknownAction,
							Message:   fmt.Sprintf("machine %s names action %q with no handler", m.Name, t.Action),
							Namespace: spec.Name,
						})
					}
				}
			}
		}
	}
	return errors.Join(errs...)
}

// Compiled reports whether Compile has succeeded.
func (e *Engine) Compiled() bool {
	return e.compiled.Load()
}

// Spawn creates an instance of machine in its initial state. vars override
// the machine's declared initial variables.
// Thread-safe: may be called from any goroutine.
func (e *Engine) Spawn(ctx context.Context, ns, machine string, vars ir.Object) (*Instance, error) {
	rt, ok := e.runtimes[ns]
	if !ok {
		return nil, newUnknownNamespaceError(ns)
	}
	m, ok := rt.spec.Machine(machine)
	if !ok {
		return nil, &RuntimeError{
			Code:      ErrCodeUnknownMachine,
			Message:   fmt.Sprintf("machine %q is not declared in namespace %q", machine, ns),
			Namespace: ns,
		}
	}

	initial := maps.Clone(m.Vars)
	if initial == nil {
		initial = make(ir.Object, len(vars))
	}
	maps.Copy(initial, vars)

	inst := newInstance(e.ids.Generate(), ns, machine, m.Initial, initial, e.clock.Next())
	if !rt.registry.add(inst) {
		return nil, fmt.Errorf("spawn %s: instance id %s already in use", machine, inst.ID())
	}

	if e.store != nil {
		if err := e.store.UpsertInstance(ctx, inst.Record()); err != nil {
			return nil, fmt.Errorf("spawn %s: %w", machine, err)
		}
	}

	e.logger.Debug("instance spawned",
		"namespace", ns,
		"machine", machine,
		"instance", inst.ID(),
		"state", m.Initial,
	)
	return inst, nil
}

// Post validates an external event and queues it for delivery. The
// returned event carries its assigned seq and ID. Namespace and Class must
// be set; ID, Seq and Root are overwritten.
// Thread-safe: may be called from any goroutine.
func (e *Engine) Post(ev ir.Event) (ir.Event, error) {
	if !e.compiled.Load() {
		return ir.Event{}, &RuntimeError{
			Code:      ErrCodeNotCompiled,
			Message:   "post before Compile",
			Namespace: ev.Namespace,
		}
	}
	rt, ok := e.runtimes[ev.Namespace]
	if !ok {
		return ir.Event{}, newUnknownNamespaceError(ev.Namespace)
	}
	if err := checkEvent(rt.spec, &ev); err != nil {
		return ir.Event{}, err
	}
	ev.Attrs = maps.Clone(ev.Attrs)
	return e.enqueue(ev, "")
}

// enqueue stamps ev with the next seq and its content-addressed ID and
// queues it as part of the cascade rooted at root ("" starts a new one).
func (e *Engine) enqueue(ev ir.Event, root string) (ir.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ev.Attrs == nil {
		ev.Attrs = ir.Object{}
	}
	ev.Seq = e.clock.Next()
	id, err := ir.EventID(ev.Namespace, ev.Class, ev.Attrs, ev.Seq)
	if err != nil {
		return ir.Event{}, fmt.Errorf("post %s: %w", ev.Class, err)
	}
	ev.ID = id
	ev.Root = root

	if !e.queue.Enqueue(ev) {
		return ir.Event{}, ErrStopped
	}
	e.cascades.enqueued(rootOf(ev))
	return ev, nil
}

// rootOf returns the cascade an event belongs to.
func rootOf(ev ir.Event) string {
	if ev.Root != "" {
		return ev.Root
	}
	return ev.ID
}

// Run starts the single-writer event loop.
// Blocks until context is cancelled or Stop() is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: On event processing failure, the error is logged with full
// event context and processing continues. Other instances and later events
// are unaffected.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting")

	for {
		event, ok := e.queue.TryDequeue()
		if ok {
			if err := e.processEvent(ctx, event); err != nil {
				e.logEventError(event, err)
			}
			continue
		}

		// No event ready - wait for signal or context cancellation
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes when the queue is closed,
			// which will cause this case to fire immediately
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Drain processes queued events, including everything they emit, until the
// queue is empty. It returns every processing error joined together.
//
// CRITICAL: Must not be called while Run is running.
func (e *Engine) Drain(ctx context.Context) error {
	var errs []error
	for {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		event, ok := e.queue.TryDequeue()
		if !ok {
			return errors.Join(errs...)
		}
		if err := e.processEvent(ctx, event); err != nil {
			e.logEventError(event, err)
			errs = append(errs, err)
		}
	}
}

// Stop gracefully shuts down the engine.
// Closes the event queue, which will cause Run() to return once the
// queued events have been processed.
func (e *Engine) Stop() {
	e.queue.Close()
}

// processEvent delivers one event.
// CRITICAL: Called only from Run() or Drain() - single-writer guarantee.
//
// Every concrete transition is computed against the instance states before
// the event, then applied. If several transitions apply to one instance,
// the one whose registration was declared first fires and the rest are
// skipped.
func (e *Engine) processEvent(ctx context.Context, ev ir.Event) error {
	root := rootOf(ev)
	defer e.finish(root)

	e.logger.Debug("processing event",
		"namespace", ev.Namespace,
		"class", ev.Class,
		"id", ev.ID,
		"root", root,
		"priority", ev.Priority,
		"seq", ev.Seq,
	)

	if e.store != nil {
		if err := e.store.WriteEvent(ctx, ev); err != nil {
			return fmt.Errorf("write event %s: %w", ev.ID, err)
		}
	}

	e.mu.Lock()
	err := e.cascades.check(root)
	e.mu.Unlock()
	if err != nil {
		var se *StepsExceededError
		if errors.As(err, &se) {
			e.logger.Error("max steps quota exceeded",
				"root", root,
				"event_id", ev.ID,
				"limit", e.maxSteps,
				"event", "quota_exceeded",
			)
			return NewQuotaError(ev.Namespace, ev.ID, se)
		}
		return err
	}

	rt, ok := e.runtimes[ev.Namespace]
	if !ok {
		return newUnknownNamespaceError(ev.Namespace)
	}

	concretes, err := rt.ns.Execute(&ev, rt.registry)
	if err != nil {
		return &RuntimeError{
			Code:      ErrCodeEvaluationFailed,
			Message:   "guard evaluation failed",
			Namespace: ev.Namespace,
			EventID:   ev.ID,
			Err:       err,
		}
	}

	kept, skipped := resolveConflicts(rt, ev.Class, concretes)
	for _, c := range skipped {
		e.logger.Warn("conflicting transition skipped",
			"event_id", ev.ID,
			"instance", c.Instance.ID(),
			"next", c.Next,
		)
	}

	var errs []error
	for _, c := range kept {
		inst, ok := rt.registry.Get(c.Instance.ID())
		if !ok {
			continue
		}
		if err := e.fire(ctx, rt, &ev, root, inst, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// rankKey identifies the registrations a concrete transition can come from.
type rankKey struct {
	machine, from, to, class, ref string
}

// buildRanks maps every registration to its declaration index. Identical
// registrations keep the lowest index.
func buildRanks(spec *ir.NamespaceSpec) map[rankKey]int {
	ranks := make(map[rankKey]int)
	for i, r := range compiler.Registrations(spec) {
		k := rankKey{r.Machine, r.From, r.To, r.EventClass, r.Action}
		if _, ok := ranks[k]; !ok {
			ranks[k] = i
		}
	}
	return ranks
}

// resolveConflicts keeps one concrete transition per instance, the one
// with the lowest registration index. Kept transitions stay in the order
// their instances first appear in concretes. Must run before any of them
// fires, while instances are still in their pre-event states.
func resolveConflicts(rt *nsRuntime, class string, concretes []graph.Concrete) (kept, skipped []graph.Concrete) {
	rank := func(c graph.Concrete) int {
		inst, ok := rt.registry.Get(c.Instance.ID())
		if !ok {
			return math.MaxInt
		}
		r, ok := rt.ranks[rankKey{inst.Machine(), inst.State(), c.Next, class, c.Action}]
		if !ok {
			return math.MaxInt
		}
		return r
	}

	pos := make(map[string]int, len(concretes))
	for _, c := range concretes {
		id := c.Instance.ID()
		i, seen := pos[id]
		if !seen {
			pos[id] = len(kept)
			kept = append(kept, c)
			continue
		}
		if rank(c) < rank(kept[i]) {
			skipped = append(skipped, kept[i])
			kept[i] = c
			continue
		}
		skipped = append(skipped, c)
	}
	return kept, skipped
}

// finish marks one event of a cascade as processed and forgets the
// cascade once nothing of it is left in the queue.
func (e *Engine) finish(root string) {
	e.mu.Lock()
	complete := e.cascades.done(root)
	e.mu.Unlock()

	if complete {
		e.cycleDetector.Clear(root)
		e.logger.Debug("cascade complete", "root", root)
	}
}

// Namespaces returns the namespace names in declaration order.
func (e *Engine) Namespaces() []string {
	names := make([]string, 0, len(e.specs))
	for _, s := range e.specs {
		names = append(names, s.Name)
	}
	return names
}

// Namespace returns the compiled namespace, or false if it is unknown or
// Compile has not run.
func (e *Engine) Namespace(name string) (*namespace.Namespace, bool) {
	rt, ok := e.runtimes[name]
	if !ok || rt.ns == nil || !e.compiled.Load() {
		return nil, false
	}
	return rt.ns, true
}

// Registry returns the instance registry of a namespace.
func (e *Engine) Registry(name string) (*Registry, bool) {
	rt, ok := e.runtimes[name]
	if !ok {
		return nil, false
	}
	return rt.registry, true
}

// Instance finds an instance by ID in any namespace.
func (e *Engine) Instance(id string) (*Instance, bool) {
	for _, s := range e.specs {
		if inst, ok := e.runtimes[s.Name].registry.Get(id); ok {
			return inst, true
		}
	}
	return nil, false
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() Sequencer {
	return e.clock
}

// QueueLen returns the current number of pending events.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// LiveCascades returns the number of cascades with queued events.
func (e *Engine) LiveCascades() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cascades.live()
}

// MaxSteps returns the configured maximum steps per cascade.
func (e *Engine) MaxSteps() int {
	return e.maxSteps
}

// CycleDetectorForTesting returns the cycle detector for testing purposes.
// Not intended for production use.
func (e *Engine) CycleDetectorForTesting() *CycleDetector {
	return e.cycleDetector
}

// logEventError logs an event processing failure with full context.
func (e *Engine) logEventError(ev ir.Event, err error) {
	e.logger.Error("event processing failed",
		"error", err,
		"code", string(CodeOf(err)),
		"namespace", ev.Namespace,
		"class", ev.Class,
		"event_id", ev.ID,
		"root", rootOf(ev),
		"seq", ev.Seq,
	)
}
