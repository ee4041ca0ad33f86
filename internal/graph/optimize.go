package graph

import (
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/roach88/fsmnet/internal/intset"
)

const (
	// DefaultExhaustiveLimit is the largest number of distinct clauses for
	// which every insertion order is tried.
	DefaultExhaustiveLimit = 6

	// DefaultSamples is the number of random insertion orders tried above
	// the exhaustive limit.
	DefaultSamples = 40

	// DefaultSeed seeds the sampler so builds are reproducible.
	DefaultSeed uint64 = 0x5eed
)

// Entry is one clause with the transition it enables.
type Entry struct {
	Clause     intset.Set
	Transition Transition
}

// SearchStats describes one optimizer run.
type SearchStats struct {
	Clauses    int  // distinct clauses
	Exhaustive bool // every ordering was tried
	Orderings  int  // orderings evaluated
	Merges     int  // AddClause calls
	MemoHits   int  // merges answered from the search state
	Complexity int  // complexity of the chosen graph
}

type buildConfig struct {
	exhaustiveLimit int
	samples         int
	seed            uint64
	logger          *slog.Logger
}

// BuildOption configures Build.
type BuildOption func(*buildConfig)

// WithExhaustiveLimit sets the largest clause count searched exhaustively.
func WithExhaustiveLimit(n int) BuildOption {
	return func(c *buildConfig) {
		c.exhaustiveLimit = n
	}
}

// WithSamples sets the number of random orderings tried above the
// exhaustive limit.
func WithSamples(n int) BuildOption {
	return func(c *buildConfig) {
		if n > 0 {
			c.samples = n
		}
	}
}

// WithSeed seeds the random ordering sampler.
func WithSeed(seed uint64) BuildOption {
	return func(c *buildConfig) {
		c.seed = seed
	}
}

// WithLogger sets the logger for search progress.
func WithLogger(l *slog.Logger) BuildOption {
	return func(c *buildConfig) {
		c.logger = l
	}
}

// clauseGroup is a distinct clause and every transition registered for it.
type clauseGroup struct {
	clause      intset.Set
	transitions []Transition
}

// Build merges all entries into the decision graph with the lowest
// complexity over the insertion orders it tries.
//
// Entries are grouped by clause and the distinct clauses sorted. Up to the
// exhaustive limit every permutation is tried, in lexicographic order of
// the sorted clauses. Above it a fixed number of random permutations is
// sampled from a seeded source. The first graph found with the minimum
// complexity wins.
//
// Merges are memoized in a search state keyed by (graph fingerprint,
// clause), so orderings that reach equivalent graphs share further work.
func Build(entries []Entry, opts ...BuildOption) (*Graph, SearchStats) {
	cfg := buildConfig{
		exhaustiveLimit: DefaultExhaustiveLimit,
		samples:         DefaultSamples,
		seed:            DefaultSeed,
		logger:          slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	groups := groupEntries(entries)
	s := &search{
		groups: groups,
		memo:   make(map[memoKey]memoEntry),
		stats:  SearchStats{Clauses: len(groups)},
	}

	if len(groups) == 0 {
		return New(), s.stats
	}

	if len(groups) <= cfg.exhaustiveLimit {
		s.stats.Exhaustive = true
		used := make([]bool, len(groups))
		s.permute(New(), used, 0)
	} else {
		rng := rand.New(rand.NewPCG(cfg.seed, cfg.seed^0x9e3779b97f4a7c15))
		for i := 0; i < cfg.samples; i++ {
			s.run(rng.Perm(len(groups)))
		}
	}

	s.best.MustValidate()
	s.stats.Complexity = s.best.CountComplexity()

	cfg.logger.Debug("decision graph built",
		"clauses", s.stats.Clauses,
		"exhaustive", s.stats.Exhaustive,
		"orderings", s.stats.Orderings,
		"merges", s.stats.Merges,
		"memo_hits", s.stats.MemoHits,
		"complexity", s.stats.Complexity,
		"nodes", len(s.best.Nodes),
	)
	return s.best, s.stats
}

func groupEntries(entries []Entry) []clauseGroup {
	byKey := make(map[string]int)
	var groups []clauseGroup
	for _, e := range entries {
		key := e.Clause.Key()
		i, ok := byKey[key]
		if !ok {
			i = len(groups)
			byKey[key] = i
			groups = append(groups, clauseGroup{clause: e.Clause})
		}
		groups[i].transitions = append(groups[i].transitions, e.Transition)
	}
	slices.SortFunc(groups, func(a, b clauseGroup) int {
		return a.clause.Compare(b.clause)
	})
	return groups
}

type memoKey struct {
	graph  string
	clause int
}

type memoEntry struct {
	from, next *Graph
}

// search is the optimizer state. memo maps (graph, clause) to the graph
// that results from merging the clause.
type search struct {
	groups []clauseGroup
	memo   map[memoKey]memoEntry
	best   *Graph
	stats  SearchStats
}

// permute walks every ordering depth first, choosing unused clauses in
// index order, so prefixes are merged once.
func (s *search) permute(g *Graph, used []bool, depth int) {
	if depth == len(s.groups) {
		s.finish(g)
		return
	}
	for i := range s.groups {
		if used[i] {
			continue
		}
		used[i] = true
		s.permute(s.merge(g, i), used, depth+1)
		used[i] = false
	}
}

func (s *search) run(order []int) {
	g := New()
	for _, i := range order {
		g = s.merge(g, i)
	}
	s.finish(g)
}

func (s *search) merge(g *Graph, i int) *Graph {
	key := memoKey{graph: g.Fingerprint(), clause: i}
	if hit, ok := s.memo[key]; ok && (hit.from == g || !g.sharesChildren() || Equivalent(hit.from, g)) {
		s.stats.MemoHits++
		return hit.next
	}
	s.stats.Merges++
	group := s.groups[i]
	next := g.AddClause(group.clause, group.transitions...)
	s.memo[key] = memoEntry{from: g, next: next}
	return next
}

func (s *search) finish(g *Graph) {
	s.stats.Orderings++
	if s.best == nil || g.CountComplexity() < s.best.CountComplexity() {
		s.best = g
	}
}
