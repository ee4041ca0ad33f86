package compiler

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/fsmnet/internal/ir"
)

// CycleWarning reports an emission cycle: a chain of event classes in
// which each transition on one class emits the next, ending where it
// started.
//
// Cycles are warnings, not errors. Ping-pong protocols and self re-arming
// timers are cycles on purpose, and a guard may stop one at runtime. The
// engine's cycle detector and cascade quota bound the ones that do not
// stop.
type CycleWarning struct {
	Path     []string `json:"path"`     // e.g. ["Ping", "Pong", "Ping"]
	Machines []string `json:"machines"` // machines whose transitions emit along Path
	Message  string   `json:"message"`
	Level    string   `json:"level"` // always "warning" for now
}

// AnalyzeCycles finds the emission cycles of a namespace. Every strongly
// connected group of event classes is reported once, with the shortest
// cycle through its first class by name. Guards are ignored, so a cycle
// reported here may never run.
func AnalyzeCycles(spec *ir.NamespaceSpec) []CycleWarning {
	g := newEmitGraph(spec)

	warnings := []CycleWarning{}
	for _, group := range g.components() {
		path := g.shortestCycle(group)
		if path == nil {
			continue
		}
		warnings = append(warnings, g.warning(path))
	}
	return warnings
}

// emitGraph maps an event class to the classes its transitions emit, and
// each such edge to the machines that declare it.
type emitGraph map[string]map[string][]string

func newEmitGraph(spec *ir.NamespaceSpec) emitGraph {
	g := make(emitGraph)
	for _, m := range spec.Machines {
		for _, t := range m.Transitions {
			if g[t.On] == nil {
				g[t.On] = make(map[string][]string)
			}
			for _, target := range t.Emit {
				if !slices.Contains(g[t.On][target], m.Name) {
					g[t.On][target] = append(g[t.On][target], m.Name)
				}
			}
		}
	}
	return g
}

// next returns the classes emitted on from, sorted.
func (g emitGraph) next(from string) []string {
	return slices.Sorted(maps.Keys(g[from]))
}

// components returns the strongly connected components of g (Tarjan),
// visiting classes by name so the result does not depend on map order.
func (g emitGraph) components() [][]string {
	s := &sccSearch{
		g:       g,
		index:   make(map[string]int),
		low:     make(map[string]int),
		onStack: make(map[string]bool),
	}
	for _, v := range slices.Sorted(maps.Keys(g)) {
		if _, seen := s.index[v]; !seen {
			s.visit(v)
		}
	}
	return s.groups
}

type sccSearch struct {
	g       emitGraph
	counter int
	index   map[string]int
	low     map[string]int
	onStack map[string]bool
	stack   []string
	groups  [][]string
}

func (s *sccSearch) visit(v string) {
	s.index[v] = s.counter
	s.low[v] = s.counter
	s.counter++
	s.stack = append(s.stack, v)
	s.onStack[v] = true

	for _, w := range s.g.next(v) {
		if _, seen := s.index[w]; !seen {
			s.visit(w)
			s.low[v] = min(s.low[v], s.low[w])
		} else if s.onStack[w] {
			s.low[v] = min(s.low[v], s.index[w])
		}
	}

	if s.low[v] != s.index[v] {
		return
	}
	var group []string
	for {
		w := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		s.onStack[w] = false
		group = append(group, w)
		if w == v {
			break
		}
	}
	slices.Sort(group)
	s.groups = append(s.groups, group)
}

// shortestCycle returns the shortest cycle through the first class of a
// component, breadth first over edges inside the component. A single class
// that does not emit itself has no cycle and yields nil.
func (g emitGraph) shortestCycle(group []string) []string {
	start := group[0]
	if len(group) == 1 {
		if _, ok := g[start][start]; ok {
			return []string{start, start}
		}
		return nil
	}

	inGroup := make(map[string]bool, len(group))
	for _, v := range group {
		inGroup[v] = true
	}
	parent := map[string]string{start: ""}
	queue := []string{start}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, w := range g.next(v) {
			if w == start {
				path := []string{start}
				for u := v; u != start; u = parent[u] {
					path = append(path, u)
				}
				slices.Reverse(path[1:])
				return append(path, start)
			}
			if _, seen := parent[w]; seen || !inGroup[w] {
				continue
			}
			parent[w] = v
			queue = append(queue, w)
		}
	}
	return nil
}

func (g emitGraph) warning(path []string) CycleWarning {
	var machines []string
	for i := 1; i < len(path); i++ {
		for _, m := range g[path[i-1]][path[i]] {
			if !slices.Contains(machines, m) {
				machines = append(machines, m)
			}
		}
	}
	slices.Sort(machines)

	msg := fmt.Sprintf("Potential cycle detected: %s", strings.Join(path, " → "))
	if len(path) == 2 {
		msg = fmt.Sprintf("Self-emitting event detected: %s → %s", path[0], path[1])
	}
	return CycleWarning{Path: path, Machines: machines, Message: msg, Level: "warning"}
}
