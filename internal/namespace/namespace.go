package namespace

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/fsmnet/internal/compiler"
	"github.com/roach88/fsmnet/internal/cond"
	"github.com/roach88/fsmnet/internal/graph"
	"github.com/roach88/fsmnet/internal/ir"
)

// Namespace is an isolated group of guard registrations compiled into one
// decision graph.
//
// Thread-safety model:
//   - Register and Compile: serialized internally
//   - Execute, Graph, Cache, Stats, Debug: safe from any goroutine once
//     Compile has returned nil
type Namespace struct {
	name string

	mu       sync.Mutex
	regs     []ir.Registration
	compiled bool

	// Set once by Compile and read-only afterwards.
	cache *cond.Cache
	graph *graph.Graph
	stats graph.SearchStats
	hash  string
}

// New returns an empty namespace.
func New(name string) *Namespace {
	return &Namespace{name: name}
}

// Name returns the namespace name.
func (n *Namespace) Name() string { return n.name }

// Register adds a guard registration. Registrations are kept in the order
// they are added.
func (n *Namespace) Register(reg ir.Registration) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.compiled {
		return fmt.Errorf("register %s on %s: %w", reg.EventClass, reg.Machine, ErrTooLateToRegister)
	}
	n.regs = append(n.regs, reg)
	return nil
}

// Registrations returns a copy of the registrations in order.
func (n *Namespace) Registrations() []ir.Registration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ir.Registration(nil), n.regs...)
}

// CompileOption configures Compile.
type CompileOption func(*compileConfig)

type compileConfig struct {
	build  []graph.BuildOption
	logger *slog.Logger
}

// WithBuildOptions passes options through to the graph optimizer.
func WithBuildOptions(opts ...graph.BuildOption) CompileOption {
	return func(c *compileConfig) {
		c.build = append(c.build, opts...)
	}
}

// WithLogger sets the logger used during compilation. The optimizer logs
// through it too.
func WithLogger(l *slog.Logger) CompileOption {
	return func(c *compileConfig) {
		c.logger = l
	}
}

// Compile turns every registration into clauses and builds the decision
// graph. The first guard that fails to parse or lower aborts compilation
// with a *GuardError and leaves the namespace uncompiled. Compiling an
// already compiled namespace is a no-op.
func (n *Namespace) Compile(opts ...CompileOption) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.compiled {
		return nil
	}

	cfg := compileConfig{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}

	cache := cond.NewCache()
	var entries []graph.Entry
	for _, reg := range n.regs {
		clauses, err := compiler.ClausesFor(reg, cache)
		if err != nil {
			return &GuardError{Registration: reg, Err: err}
		}
		t := graph.Transition{Machine: reg.Machine, Next: reg.To, Action: reg.Action}
		for _, c := range clauses {
			entries = append(entries, graph.Entry{Clause: c, Transition: t})
		}
	}

	hash, err := ir.NamespaceHash(n.regs)
	if err != nil {
		return fmt.Errorf("namespace %s: %w", n.name, err)
	}

	buildOpts := append([]graph.BuildOption{graph.WithLogger(cfg.logger)}, cfg.build...)
	g, stats := graph.Build(entries, buildOpts...)

	n.cache = cache
	n.graph = g
	n.stats = stats
	n.hash = hash
	n.compiled = true

	cfg.logger.Info("namespace compiled",
		"namespace", n.name,
		"registrations", len(n.regs),
		"conditions", cache.Len(),
		"clauses", stats.Clauses,
		"nodes", len(g.Nodes),
		"complexity", stats.Complexity,
	)
	return nil
}

// CompileNamespace registers regs in a new namespace and compiles it.
func CompileNamespace(name string, regs []ir.Registration, opts ...CompileOption) (*Namespace, error) {
	n := New(name)
	for _, r := range regs {
		if err := n.Register(r); err != nil {
			return nil, err
		}
	}
	if err := n.Compile(opts...); err != nil {
		return nil, err
	}
	return n, nil
}

// Compiled reports whether Compile has succeeded.
func (n *Namespace) Compiled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.compiled
}

// Execute evaluates the decision graph for a delivered event. An error
// aborts this event only; the namespace keeps serving later events.
func (n *Namespace) Execute(ev cond.Event, reg cond.Registry) ([]graph.Concrete, error) {
	if !n.Compiled() {
		return nil, fmt.Errorf("execute %s in %s: %w", ev.EventClass(), n.name, ErrNotCompiled)
	}
	out, err := n.graph.Execute(ev, reg, n.cache)
	if err != nil {
		return nil, fmt.Errorf("execute %s in %s: %w", ev.EventClass(), n.name, err)
	}
	return out, nil
}

// Graph returns the compiled decision graph, or nil before Compile.
func (n *Namespace) Graph() *graph.Graph {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.graph
}

// Cache returns the condition cache, or nil before Compile.
func (n *Namespace) Cache() *cond.Cache {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cache
}

// Stats returns the optimizer statistics of the last Compile.
func (n *Namespace) Stats() graph.SearchStats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stats
}

// Hash identifies the registrations the graph was compiled from.
func (n *Namespace) Hash() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.hash
}

// Debug renders the compiled graph in its text form followed by the
// condition table:
//
//	start: 0
//	0: {0, 1} [Light:green] -> end
//	#0 event.class == "Tick"
//	#1 :red == Light@state
func (n *Namespace) Debug() string {
	g, cache := n.Graph(), n.Cache()
	if g == nil {
		return ""
	}
	out := g.String()
	for i, c := range cache.Conditions() {
		out += fmt.Sprintf("#%d %s\n", i, c)
	}
	return out
}
