package cond

import (
	"fmt"

	"github.com/roach88/fsmnet/internal/ir"
)

// Kind discriminates operands.
type Kind int

const (
	KindLiteral Kind = iota
	KindEventAttr
	KindEventClass
	KindStateVar
)

// Operand is one side of a condition. Build operands with Literal,
// EventAttr, EventClass and StateVar.
type Operand struct {
	Kind       Kind
	Value      ir.Value // KindLiteral
	EventClass string   // KindEventAttr: the event class the attribute belongs to
	Machine    string   // KindStateVar
	Name       string   // KindEventAttr, KindStateVar
}

// Literal is a constant operand.
func Literal(v ir.Value) Operand {
	return Operand{Kind: KindLiteral, Value: v}
}

// EventAttr references attribute name of events of the given class.
func EventAttr(eventClass, name string) Operand {
	return Operand{Kind: KindEventAttr, EventClass: eventClass, Name: name}
}

// EventClass evaluates to the class name of the delivered event.
func EventClass() Operand {
	return Operand{Kind: KindEventClass}
}

// StateVar references state variable name of instances of machine.
func StateVar(machine, name string) Operand {
	return Operand{Kind: KindStateVar, Machine: machine, Name: name}
}

// Key returns a canonical string identifying the operand.
func (o Operand) Key() string {
	switch o.Kind {
	case KindLiteral:
		data, err := ir.MarshalCanonical(o.Value)
		if err != nil {
			// Literals come from the guard parser, which never produces
			// non-finite floats.
			panic(fmt.Sprintf("cond: literal has no canonical form: %v", err))
		}
		return "lit:" + string(data)
	case KindEventAttr:
		return "ev:" + o.EventClass + "." + o.Name
	case KindEventClass:
		return "class"
	case KindStateVar:
		return "var:" + o.Machine + "." + o.Name
	}
	panic(fmt.Sprintf("cond: unknown operand kind %d", o.Kind))
}

func (o Operand) String() string {
	switch o.Kind {
	case KindLiteral:
		return ir.Format(o.Value)
	case KindEventAttr:
		return o.EventClass + "." + o.Name
	case KindEventClass:
		return "event.class"
	case KindStateVar:
		return o.Machine + "@" + o.Name
	}
	return "?"
}

// resolve reads the operand's value. inst is nil for gate conditions.
// ok is false when an event attribute belongs to a different event class:
// the condition cannot hold for this event.
func (o Operand) resolve(ev Event, inst Instance) (v ir.Value, ok bool, err error) {
	switch o.Kind {
	case KindLiteral:
		return o.Value, true, nil
	case KindEventClass:
		return ir.String(ev.EventClass()), true, nil
	case KindEventAttr:
		if ev.EventClass() != o.EventClass {
			return nil, false, nil
		}
		v, err := ev.Get(o.Name)
		if err != nil {
			return nil, false, fmt.Errorf("event %s: %w", ev.EventClass(), err)
		}
		return v, true, nil
	case KindStateVar:
		v, err := inst.Get(o.Name)
		if err != nil {
			return nil, false, fmt.Errorf("instance %s: %w", inst.ID(), err)
		}
		return v, true, nil
	}
	return nil, false, fmt.Errorf("unknown operand kind %d", o.Kind)
}
