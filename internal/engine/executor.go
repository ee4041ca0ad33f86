package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/roach88/fsmnet/internal/compiler"
	"github.com/roach88/fsmnet/internal/graph"
	"github.com/roach88/fsmnet/internal/ir"
)

// Action is Go code run when a transition naming it fires. It runs in the
// Run loop goroutine after guards have been evaluated and before the
// instance changes state; an error aborts the firing.
type Action func(ctx context.Context, call *ActionCall) error

// ActionCall is what an Action sees of the firing that triggered it.
type ActionCall struct {
	Namespace string
	Instance  string
	Machine   string
	From      string
	To        string
	Event     ir.Event  // the event that triggered the transition
	Vars      ir.Object // variables before the transition, with declarative sets applied

	set   ir.Object
	emits []emission
}

// Set assigns a state variable. It is applied together with the state
// change.
func (c *ActionCall) Set(name string, v ir.Value) {
	if c.set == nil {
		c.set = make(ir.Object)
	}
	c.set[name] = v
}

// Emit posts an event of class to the namespace once the transition has
// been applied. attrs may be nil; the sender attribute is added.
func (c *ActionCall) Emit(class string, attrs ir.Object) {
	c.emits = append(c.emits, emission{class: class, attrs: maps.Clone(attrs)})
}

type emission struct {
	class string
	attrs ir.Object
}

// effect is what a transition does beyond changing state.
type effect struct {
	action string
	emit   []string
	set    ir.Object
}

// buildEffects indexes the effects of every transition of spec by the
// action reference its registration carries.
func buildEffects(spec *ir.NamespaceSpec) map[string]effect {
	effects := make(map[string]effect)
	for _, m := range spec.Machines {
		for i, t := range m.Transitions {
			ref := compiler.EffectRef(m.Name, i, t)
			if ref == "" {
				continue
			}
			effects[ref] = effect{action: t.Action, emit: t.Emit, set: t.Set}
		}
	}
	return effects
}

// fire applies one concrete transition to its instance.
//
// Order of operations:
//  1. Cycle check on (instance, from, to, event, vars)
//  2. Declarative set, then the named action (which may set and emit)
//  3. State change and variable update under the instance lock
//  4. Log the transition and the new instance snapshot
//  5. Post emitted events: declarative emits first, then the action's
//
// CRITICAL: Called only from the Run loop goroutine.
func (e *Engine) fire(ctx context.Context, rt *nsRuntime, ev *ir.Event, root string, inst *Instance, c graph.Concrete) error {
	from := inst.State()
	vars := inst.Vars()

	key, err := cycleKey(inst.ID(), from, c.Next, ev, vars)
	if err != nil {
		return err
	}
	if e.cycleDetector.WouldCycle(root, key) {
		return NewCycleError(rt.spec.Name, ev.ID, inst.ID(), from, c.Next)
	}

	eff, ok := rt.effects[c.Action]
	if !ok {
		eff = effect{action: c.Action}
	}

	set := maps.Clone(eff.set)
	if set == nil {
		set = make(ir.Object)
	}
	emits := make([]emission, 0, len(eff.emit))
	for _, class := range eff.emit {
		emits = append(emits, emission{class: class})
	}

	if eff.action != "" {
		if fn, ok := e.actions[eff.action]; ok {
			merged := maps.Clone(vars)
			maps.Copy(merged, set)
			call := &ActionCall{
				Namespace: rt.spec.Name,
				Instance:  inst.ID(),
				Machine:   inst.Machine(),
				From:      from,
				To:        c.Next,
				Event:     *ev,
				Vars:      merged,
			}
			if err := fn(ctx, call); err != nil {
				return &RuntimeError{
					Code:      ErrCodeEvaluationFailed,
					Message:   fmt.Sprintf("action %s failed", eff.action),
					Namespace: rt.spec.Name,
					EventID:   ev.ID,
					Instance:  inst.ID(),
					Err:       err,
				}
			}
			maps.Copy(set, call.set)
			emits = append(emits, call.emits...)
		} else {
			e.logger.Debug("action has no handler, recorded only",
				"action", eff.action,
				"instance", inst.ID(),
			)
		}
	}

	seq := e.clock.Next()
	inst.apply(c.Next, set, seq)
	e.cycleDetector.Record(root, key)

	rec := ir.TransitionRecord{
		Seq:           seq,
		EventID:       ev.ID,
		Namespace:     rt.spec.Name,
		NamespaceHash: rt.ns.Hash(),
		InstanceID:    inst.ID(),
		Machine:       inst.Machine(),
		From:          from,
		To:            inst.State(),
		Action:        eff.action,
	}

	if e.store != nil {
		if _, err := e.store.WriteTransition(ctx, rec); err != nil {
			return fmt.Errorf("write transition %s: %w", inst.ID(), err)
		}
		if err := e.store.UpsertInstance(ctx, inst.Record()); err != nil {
			return fmt.Errorf("upsert instance %s: %w", inst.ID(), err)
		}
	}

	e.logger.Info("transition fired",
		"namespace", rt.spec.Name,
		"event", ev.Class,
		"event_id", ev.ID,
		"instance", inst.ID(),
		"from", from,
		"to", rec.To,
		"action", rec.Action,
		"seq", seq,
	)

	for _, h := range e.hooks {
		h(rec)
	}

	var errs []error
	for _, em := range emits {
		attrs := em.attrs
		if attrs == nil {
			attrs = make(ir.Object, 1)
		}
		attrs[compiler.SenderAttr] = ir.String(inst.ID())
		out := ir.Event{
			Namespace: rt.spec.Name,
			Class:     em.class,
			Attrs:     attrs,
			Priority:  ev.Priority,
		}
		if err := checkEvent(rt.spec, &out); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := e.enqueue(out, root); err != nil {
			errs = append(errs, fmt.Errorf("emit %s: %w", em.class, err))
		}
	}
	return errors.Join(errs...)
}
