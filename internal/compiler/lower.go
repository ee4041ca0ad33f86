package compiler

import (
	"fmt"

	"github.com/roach88/fsmnet/internal/cond"
	"github.com/roach88/fsmnet/internal/guard"
	"github.com/roach88/fsmnet/internal/intset"
	"github.com/roach88/fsmnet/internal/ir"
)

// BoolTree is a guard after name binding: And, Or or Leaf.
type BoolTree interface {
	boolTree()
}

// And holds when every child holds.
type And []BoolTree

// Or holds when any child holds.
type Or []BoolTree

// Leaf is a single condition.
type Leaf struct {
	Cond cond.Condition
}

func (And) boolTree()  {}
func (Or) boolTree()   {}
func (Leaf) boolTree() {}

// Lower binds a parsed guard to the event class it is registered for and the
// machine whose transition it guards. Bare names become attributes of
// eventClass, @names become state variables of machine.
//
// Boolean tests lower to comparisons against true: "ready" is
// "ready == true" and "!ready" is "ready != true". A symbol is always
// truthy, so ":x" holds and "!:x" never does.
func Lower(n guard.Node, eventClass, machine string) (BoolTree, error) {
	switch n := n.(type) {
	case *guard.Or:
		out := make(Or, 0, len(n.Terms))
		for _, t := range n.Terms {
			child, err := Lower(t, eventClass, machine)
			if err != nil {
				return nil, err
			}
			out = append(out, child)
		}
		return out, nil

	case *guard.And:
		out := make(And, 0, len(n.Terms))
		for _, t := range n.Terms {
			child, err := Lower(t, eventClass, machine)
			if err != nil {
				return nil, err
			}
			out = append(out, child)
		}
		return out, nil

	case *guard.Comparison:
		left, err := lowerOperand(n.Left, eventClass, machine)
		if err != nil {
			return nil, err
		}
		right, err := lowerOperand(n.Right, eventClass, machine)
		if err != nil {
			return nil, err
		}
		return Leaf{Cond: cond.New(n.Op, left, right)}, nil

	case *guard.BoolTest:
		operand, err := lowerOperand(n.Operand, eventClass, machine)
		if err != nil {
			return nil, err
		}
		if operand.Kind == cond.KindLiteral {
			op := guard.OpNe
			if n.Negated {
				op = guard.OpEq
			}
			return Leaf{Cond: cond.New(op, operand, cond.Literal(ir.Bool(false)))}, nil
		}
		op := guard.OpEq
		if n.Negated {
			op = guard.OpNe
		}
		return Leaf{Cond: cond.New(op, operand, cond.Literal(ir.Bool(true)))}, nil
	}
	return nil, fmt.Errorf("lower: unsupported guard node %T", n)
}

func lowerOperand(o guard.Operand, eventClass, machine string) (cond.Operand, error) {
	switch o := o.(type) {
	case guard.Literal:
		return cond.Literal(o.Value), nil
	case guard.EventRef:
		return cond.EventAttr(eventClass, o.Name), nil
	case guard.StateVar:
		return cond.StateVar(machine, o.Name), nil
	}
	return cond.Operand{}, fmt.Errorf("lower: unsupported operand %T", o)
}

// GeneratePermutations expands a BoolTree into disjunctive normal form,
// interning every condition in cache. Each returned set is one clause (a
// conjunction of condition ids); the tree holds when any clause does.
//
//	Leaf(c)  -> [{c}]
//	And(...) -> cross-union of the children's clause lists
//	Or(...)  -> concatenation of the children's clause lists
//
// Duplicate clauses are dropped, keeping the first occurrence.
func GeneratePermutations(tree BoolTree, cache *cond.Cache) []intset.Set {
	return dedupClauses(expand(tree, cache))
}

func expand(tree BoolTree, cache *cond.Cache) []intset.Set {
	switch t := tree.(type) {
	case Leaf:
		return []intset.Set{intset.Of(cache.Intern(t.Cond))}

	case Or:
		var out []intset.Set
		for _, child := range t {
			out = append(out, expand(child, cache)...)
		}
		return out

	case And:
		acc := []intset.Set{{}}
		for _, child := range t {
			childClauses := expand(child, cache)
			next := make([]intset.Set, 0, len(acc)*len(childClauses))
			for _, left := range acc {
				for _, right := range childClauses {
					next = append(next, left.Union(right))
				}
			}
			acc = next
		}
		return acc
	}
	panic(fmt.Sprintf("compiler: unknown BoolTree %T", tree))
}

func dedupClauses(clauses []intset.Set) []intset.Set {
	seen := make(map[string]bool, len(clauses))
	out := clauses[:0]
	for _, c := range clauses {
		key := c.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
