package compiler

import (
	"fmt"

	"github.com/roach88/fsmnet/internal/cond"
	"github.com/roach88/fsmnet/internal/guard"
	"github.com/roach88/fsmnet/internal/intset"
	"github.com/roach88/fsmnet/internal/ir"
)

const (
	// StateVar is the state variable holding an instance's current state.
	StateVar = "state"

	// SenderAttr is the attribute every emitted event carries: the ID of
	// the instance that emitted it. Guards may read it without declaring it.
	SenderAttr = "sender"
)

// ImplicitConditions returns the conditions every clause of reg carries
// ahead of its guard: the delivered event has reg's class, and the instance
// is in reg's From state.
func ImplicitConditions(reg ir.Registration) []cond.Condition {
	return []cond.Condition{
		cond.New(guard.OpEq, cond.EventClass(), cond.Literal(ir.String(reg.EventClass))),
		cond.New(guard.OpEq, cond.StateVar(reg.Machine, StateVar), cond.Literal(ir.Symbol(reg.From))),
	}
}

// ClausesFor compiles one registration into its DNF clauses. The implicit
// conditions are interned before the guard's own conditions. An empty guard
// yields a single clause of just the implicit conditions.
func ClausesFor(reg ir.Registration, cache *cond.Cache) ([]intset.Set, error) {
	var base intset.Set
	for _, c := range ImplicitConditions(reg) {
		base = base.Add(cache.Intern(c))
	}

	if reg.Guard == "" {
		return []intset.Set{base}, nil
	}

	ast, err := guard.Parse(reg.Guard)
	if err != nil {
		return nil, err
	}
	tree, err := Lower(ast, reg.EventClass, reg.Machine)
	if err != nil {
		return nil, err
	}

	clauses := GeneratePermutations(tree, cache)
	for i, c := range clauses {
		clauses[i] = base.Union(c)
	}
	return dedupClauses(clauses), nil
}

// EffectRef names the action reference a transition registers with. A
// transition with declarative effects (emit, set) gets a synthesized
// "<machine>#<index>" reference so the runtime can find those effects along
// with any named action. Otherwise the named action, possibly empty, is used
// as is.
func EffectRef(machine string, index int, t ir.TransitionSpec) string {
	if len(t.Emit) > 0 || len(t.Set) > 0 {
		return fmt.Sprintf("%s#%d", machine, index)
	}
	return t.Action
}

// Registrations flattens a namespace spec into guard registrations in
// declaration order: machines in order, transitions in order.
func Registrations(spec *ir.NamespaceSpec) []ir.Registration {
	var regs []ir.Registration
	for _, m := range spec.Machines {
		for i, t := range m.Transitions {
			regs = append(regs, ir.Registration{
				EventClass: t.On,
				Machine:    m.Name,
				From:       t.From,
				To:         t.To,
				Guard:      t.If,
				Action:     EffectRef(m.Name, i, t),
			})
		}
	}
	return regs
}
