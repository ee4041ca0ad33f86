package graph

import (
	"fmt"

	"github.com/roach88/fsmnet/internal/intset"
)

// Node is one decision step. A node never changes after it is added to a
// Graph.
type Node struct {
	Conditions  intset.Set
	Transitions []Transition // sorted, no duplicates
	Edges       intset.Set
}

// Graph is an arena of nodes with index edges.
type Graph struct {
	Nodes []*Node
	Start intset.Set
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{}
}

// clone copies the arena. Nodes are shared.
func (g *Graph) clone() *Graph {
	nodes := make([]*Node, len(g.Nodes), len(g.Nodes)+2)
	copy(nodes, g.Nodes)
	return &Graph{Nodes: nodes, Start: g.Start}
}

func (g *Graph) append(n *Node) int {
	g.Nodes = append(g.Nodes, n)
	return len(g.Nodes) - 1
}

// AddClause merges a clause and its transitions into the graph and returns
// the result; g is left unchanged. Start nodes are scanned in index order and
// the first rule that applies wins:
//
//  1. Equal: the clause is the node's condition set. The transitions join
//     the node.
//  2. Subset: the clause is a proper subset. The node becomes the clause
//     with the new transitions, pointing at an appended node holding the
//     remaining conditions and the old transitions and edges.
//  3. Superset: the node's conditions are a proper subset of the clause. An
//     appended child holds the rest of the clause and the new transitions.
//  4. Intersecting: the two share some conditions. The node becomes a
//     fan-out node over the shared conditions with two appended children:
//     the node's remainder (old transitions and edges) and the clause's
//     remainder (new transitions).
//
// When no start node overlaps the clause it becomes a new start node.
//
// AddClause panics on an empty clause.
func (g *Graph) AddClause(clause intset.Set, ts ...Transition) *Graph {
	if clause.Empty() {
		panic("graph: empty clause")
	}
	ts = addTransitions(nil, ts...)

	out := g.clone()
	for _, idx := range g.Start.Elems() {
		node := g.Nodes[idx]

		switch {
		case clause.Equal(node.Conditions):
			out.Nodes[idx] = &Node{
				Conditions:  node.Conditions,
				Transitions: addTransitions(node.Transitions, ts...),
				Edges:       node.Edges,
			}
			return out

		case clause.ProperSubsetOf(node.Conditions):
			rest := out.append(&Node{
				Conditions:  node.Conditions.Difference(clause),
				Transitions: node.Transitions,
				Edges:       node.Edges,
			})
			out.Nodes[idx] = &Node{
				Conditions:  clause,
				Transitions: ts,
				Edges:       intset.Of(rest),
			}
			return out

		case node.Conditions.ProperSubsetOf(clause):
			child := out.append(&Node{
				Conditions:  clause.Difference(node.Conditions),
				Transitions: ts,
			})
			out.Nodes[idx] = &Node{
				Conditions:  node.Conditions,
				Transitions: node.Transitions,
				Edges:       node.Edges.Add(child),
			}
			return out
		}

		shared := clause.Intersect(node.Conditions)
		if shared.Empty() {
			continue
		}
		old := out.append(&Node{
			Conditions:  node.Conditions.Difference(shared),
			Transitions: node.Transitions,
			Edges:       node.Edges,
		})
		added := out.append(&Node{
			Conditions:  clause.Difference(shared),
			Transitions: ts,
		})
		out.Nodes[idx] = &Node{
			Conditions: shared,
			Edges:      intset.Of(old, added),
		}
		return out
	}

	idx := out.append(&Node{Conditions: clause, Transitions: ts})
	out.Start = out.Start.Add(idx)
	return out
}

// CountComplexity is the number of condition evaluations the graph holds:
// the sum of every node's condition count.
func (g *Graph) CountComplexity() int {
	total := 0
	for _, n := range g.Nodes {
		total += n.Conditions.Len()
	}
	return total
}

// Validate checks the arena invariants: every edge and start index is in
// range, start nodes have no parents, every node is reachable, and there is
// no cycle.
func (g *Graph) Validate() error {
	n := len(g.Nodes)
	indegree := make([]int, n)

	for _, s := range g.Start.Elems() {
		if s < 0 || s >= n {
			return fmt.Errorf("start index %d out of range [0, %d)", s, n)
		}
	}
	for i, node := range g.Nodes {
		if node == nil {
			return fmt.Errorf("node %d is nil", i)
		}
		for _, e := range node.Edges.Elems() {
			if e < 0 || e >= n {
				return fmt.Errorf("node %d: edge %d out of range [0, %d)", i, e, n)
			}
			indegree[e]++
		}
		if node.Conditions.Empty() && len(node.Transitions) > 0 {
			return fmt.Errorf("node %d: transitions on a node without conditions", i)
		}
	}
	for _, s := range g.Start.Elems() {
		if indegree[s] > 0 {
			return fmt.Errorf("start node %d has incoming edges", s)
		}
	}

	const (
		unvisited = iota
		active
		done
	)
	state := make([]int, n)
	var visit func(int) error
	visit = func(i int) error {
		switch state[i] {
		case active:
			return fmt.Errorf("cycle through node %d", i)
		case done:
			return nil
		}
		state[i] = active
		for _, e := range g.Nodes[i].Edges.Elems() {
			if err := visit(e); err != nil {
				return err
			}
		}
		state[i] = done
		return nil
	}
	for _, s := range g.Start.Elems() {
		if err := visit(s); err != nil {
			return err
		}
	}
	for i := range state {
		if state[i] == unvisited {
			return fmt.Errorf("node %d is unreachable", i)
		}
	}
	return nil
}

// MustValidate panics if Validate fails. A graph that fails validation is
// the product of a merge bug and must not be evaluated.
func (g *Graph) MustValidate() {
	if err := g.Validate(); err != nil {
		panic("graph: invariant violated: " + err.Error())
	}
}
