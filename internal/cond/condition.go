package cond

import (
	"fmt"

	"github.com/roach88/fsmnet/internal/guard"
	"github.com/roach88/fsmnet/internal/ir"
)

// Condition is an immutable comparison between two operands.
type Condition struct {
	op          guard.Op
	left, right Operand
}

// New builds a normalized condition. ">" and ">=" become "<" and "<=" with
// the operands swapped. For "==" and "!=" the operand with the smaller key
// goes left. Structurally equal conditions have equal keys.
func New(op guard.Op, left, right Operand) Condition {
	switch op {
	case guard.OpGt:
		op, left, right = guard.OpLt, right, left
	case guard.OpGe:
		op, left, right = guard.OpLe, right, left
	case guard.OpEq, guard.OpNe:
		if right.Key() < left.Key() {
			left, right = right, left
		}
	case guard.OpLt, guard.OpLe:
	default:
		panic(fmt.Sprintf("cond: unknown operator %q", op))
	}
	return Condition{op: op, left: left, right: right}
}

// Op returns the normalized operator.
func (c Condition) Op() guard.Op { return c.op }

// Left returns the normalized left operand.
func (c Condition) Left() Operand { return c.left }

// Right returns the normalized right operand.
func (c Condition) Right() Operand { return c.right }

// Key identifies the condition in the cache.
func (c Condition) Key() string {
	return c.left.Key() + " " + string(c.op) + " " + c.right.Key()
}

func (c Condition) String() string {
	return c.left.String() + " " + string(c.op) + " " + c.right.String()
}

// Machine returns the machine whose state variables the condition reads,
// or "" for a gate condition.
func (c Condition) Machine() string {
	if c.left.Kind == KindStateVar {
		return c.left.Machine
	}
	if c.right.Kind == KindStateVar {
		return c.right.Machine
	}
	return ""
}

// Narrow evaluates the condition against ev and returns the candidates for
// which it holds. The result is Empty when no candidate survives.
func (c Condition) Narrow(ev Event, reg Registry, cands Candidates) (Candidates, error) {
	if cands.Empty() {
		return cands, nil
	}

	machine := c.Machine()
	if machine == "" {
		ok, err := c.holds(ev, nil)
		if err != nil {
			return None(), err
		}
		if !ok {
			return None(), nil
		}
		return cands, nil
	}

	if c.wrongEventClass(ev) {
		return None(), nil
	}

	var pool []Instance
	if cands.IsAll() {
		pool = reg.Instances(machine)
	} else {
		pool = cands.Instances()
	}

	var kept []Instance
	for _, inst := range pool {
		if inst.Machine() != machine {
			continue
		}
		ok, err := c.holds(ev, inst)
		if err != nil {
			return None(), err
		}
		if ok {
			kept = append(kept, inst)
		}
	}
	return Only(kept...), nil
}

// wrongEventClass reports whether an event-attribute operand belongs to a
// class other than ev's.
func (c Condition) wrongEventClass(ev Event) bool {
	for _, o := range []Operand{c.left, c.right} {
		if o.Kind == KindEventAttr && o.EventClass != ev.EventClass() {
			return true
		}
	}
	return false
}

func (c Condition) holds(ev Event, inst Instance) (bool, error) {
	l, ok, err := c.left.resolve(ev, inst)
	if err != nil || !ok {
		return false, err
	}
	r, ok, err := c.right.resolve(ev, inst)
	if err != nil || !ok {
		return false, err
	}
	return compare(c.op, l, r), nil
}

// compare applies op. Ordering comparisons over values without an order
// (mixed types, booleans, containers) are false.
func compare(op guard.Op, l, r ir.Value) bool {
	switch op {
	case guard.OpEq:
		return ir.Equal(l, r)
	case guard.OpNe:
		return !ir.Equal(l, r)
	}

	n, ok := ir.Compare(l, r)
	if !ok {
		return false
	}
	switch op {
	case guard.OpLt:
		return n < 0
	case guard.OpLe:
		return n <= 0
	case guard.OpGt:
		return n > 0
	case guard.OpGe:
		return n >= 0
	}
	return false
}
