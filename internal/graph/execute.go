package graph

import (
	"github.com/roach88/fsmnet/internal/cond"
)

// ConditionSet resolves condition ids. *cond.Cache implements it.
type ConditionSet interface {
	Get(id int) cond.Condition
}

// Execute evaluates the graph against a delivered event and returns the
// concrete transitions whose clauses hold, without duplicates, in traversal
// order.
//
// Each start node is walked depth first with the candidates set to All. A
// node's conditions narrow the candidates in id order; the walk leaves a
// branch as soon as they are empty. Surviving candidates instantiate the
// node's transitions and flow on to its children.
//
// An error (typically an attribute the event does not carry) aborts the
// evaluation of this event only. Execute does not modify the graph.
func (g *Graph) Execute(ev cond.Event, reg cond.Registry, conds ConditionSet) ([]Concrete, error) {
	x := &execution{g: g, ev: ev, reg: reg, conds: conds, seen: make(map[string]bool)}
	for _, s := range g.Start.Elems() {
		if err := x.visit(s, cond.All()); err != nil {
			return nil, err
		}
	}
	return x.out, nil
}

type execution struct {
	g     *Graph
	ev    cond.Event
	reg   cond.Registry
	conds ConditionSet
	seen  map[string]bool
	out   []Concrete
}

func (x *execution) visit(idx int, cands cond.Candidates) error {
	node := x.g.Nodes[idx]

	for _, id := range node.Conditions.Elems() {
		var err error
		cands, err = x.conds.Get(id).Narrow(x.ev, x.reg, cands)
		if err != nil {
			return err
		}
		if cands.Empty() {
			return nil
		}
	}

	for _, t := range node.Transitions {
		for _, c := range t.Instantiate(cands, x.reg) {
			key := c.key()
			if x.seen[key] {
				continue
			}
			x.seen[key] = true
			x.out = append(x.out, c)
		}
	}

	for _, e := range node.Edges.Elems() {
		if err := x.visit(e, cands); err != nil {
			return err
		}
	}
	return nil
}
