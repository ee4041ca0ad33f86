package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/fsmnet/internal/ir"
)

// signatures computes a structural signature per node: a hash of its
// conditions, its transitions and the sorted signatures of its children.
// Nodes with equal signatures root identical subgraphs.
func (g *Graph) signatures() []string {
	sigs := make([]string, len(g.Nodes))
	var sig func(int) string
	sig = func(i int) string {
		if sigs[i] != "" {
			return sigs[i]
		}
		node := g.Nodes[i]

		children := make([]string, 0, node.Edges.Len())
		for _, e := range node.Edges.Elems() {
			children = append(children, sig(e))
		}
		slices.Sort(children)

		ts := make([]string, len(node.Transitions))
		for j, t := range node.Transitions {
			ts[j] = t.String()
		}

		data := "c:" + node.Conditions.Key() +
			"|t:" + strings.Join(ts, ",") +
			"|e:" + strings.Join(children, ",")
		sigs[i] = ir.Fingerprint(ir.DomainNode, []byte(data))
		return sigs[i]
	}
	for i := range g.Nodes {
		sig(i)
	}
	return sigs
}

// shape lists every node as signature, in-degree, start membership and the
// sorted signatures of its parents, sorted. Equivalent graphs have equal
// shapes. For forests the converse holds too; a DAG with shared children
// can share its shape with a graph it is not equivalent to.
func (g *Graph) shape() []string {
	sigs := g.signatures()
	parents := make([][]string, len(g.Nodes))
	for i, n := range g.Nodes {
		for _, e := range n.Edges.Elems() {
			parents[e] = append(parents[e], sigs[i])
		}
	}

	out := make([]string, len(g.Nodes))
	for i, s := range sigs {
		slices.Sort(parents[i])
		out[i] = fmt.Sprintf("%s/%d/%t/%s", s, len(parents[i]), g.Start.Contains(i), strings.Join(parents[i], ","))
	}
	slices.Sort(out)
	return out
}

// Equivalent reports whether a and b are the same graph up to node
// numbering: some bijection between their nodes maps start nodes to start
// nodes and preserves conditions, transitions and edge targets.
func Equivalent(a, b *Graph) bool {
	if len(a.Nodes) != len(b.Nodes) || a.Start.Len() != b.Start.Len() {
		return false
	}
	if !slices.Equal(a.shape(), b.shape()) {
		return false
	}
	return isomorphic(a, b)
}

// Fingerprint is a digest shared by all graphs equivalent to g. Distinct
// fingerprints mean distinct graphs; equal fingerprints of graphs with
// shared children are confirmed with Equivalent.
func (g *Graph) Fingerprint() string {
	return ir.Fingerprint(ir.DomainGraph, []byte(strings.Join(g.shape(), "\n")))
}

// sharesChildren reports whether some node has more than one parent.
func (g *Graph) sharesChildren() bool {
	seen := make([]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		for _, e := range n.Edges.Elems() {
			if seen[e] {
				return true
			}
			seen[e] = true
		}
	}
	return false
}

// isomorphic searches for the node bijection behind Equivalent. Candidates
// are restricted to nodes with equal signatures, so for forests the first
// candidate always succeeds; backtracking is only needed around shared
// children.
func isomorphic(a, b *Graph) bool {
	m := &matcher{
		a: a, b: b,
		sa: a.signatures(), sb: b.signatures(),
		fwd: make([]int, len(a.Nodes)),
		bwd: make([]int, len(b.Nodes)),
	}
	for i := range m.fwd {
		m.fwd[i], m.bwd[i] = -1, -1
	}
	return m.pairAll(a.Start.Elems(), b.Start.Elems(), func() bool { return true })
}

type matcher struct {
	a, b     *Graph
	sa, sb   []string
	fwd, bwd []int // node of the other graph, -1 when unmatched
}

// bind maps a's node i to b's node j, then its children, then calls next.
// A failed bind leaves the mapping as it found it.
func (m *matcher) bind(i, j int, next func() bool) bool {
	if m.fwd[i] >= 0 || m.bwd[j] >= 0 {
		return m.fwd[i] == j && next()
	}
	if m.sa[i] != m.sb[j] {
		return false
	}
	m.fwd[i], m.bwd[j] = j, i
	if m.pairAll(m.a.Nodes[i].Edges.Elems(), m.b.Nodes[j].Edges.Elems(), next) {
		return true
	}
	m.fwd[i], m.bwd[j] = -1, -1
	return false
}

// pairAll binds every node of xs to a distinct node of ys, then calls next.
func (m *matcher) pairAll(xs, ys []int, next func() bool) bool {
	if len(xs) != len(ys) {
		return false
	}
	used := make([]bool, len(ys))
	var pair func(k int) bool
	pair = func(k int) bool {
		if k == len(xs) {
			return next()
		}
		for c, y := range ys {
			if used[c] || m.sa[xs[k]] != m.sb[y] {
				continue
			}
			used[c] = true
			if m.bind(xs[k], y, func() bool { return pair(k + 1) }) {
				return true
			}
			used[c] = false
		}
		return false
	}
	return pair(0)
}
