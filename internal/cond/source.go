package cond

import "github.com/roach88/fsmnet/internal/ir"

// AttributeSource resolves named values. Lookups of undeclared names fail
// with an error wrapping ir.ErrUnknownAttribute.
type AttributeSource interface {
	Get(name string) (ir.Value, error)
}

// Event is the delivered event as seen by conditions.
type Event interface {
	AttributeSource
	EventClass() string
}

// Instance is a live FSM instance. Get reads its state variables; "state"
// is always present. Implementations must return a consistent snapshot for
// the duration of one evaluation.
type Instance interface {
	AttributeSource
	ID() string
	Machine() string
}

// Registry lists live instances of a machine in a stable order.
type Registry interface {
	Instances(machine string) []Instance
}

// Candidates is the set of instances a branch of the decision graph still
// applies to: either the sentinel All or an explicit list.
type Candidates struct {
	all       bool
	instances []Instance
}

// All is the sentinel for every instance of every machine.
func All() Candidates { return Candidates{all: true} }

// None is the empty candidate set.
func None() Candidates { return Candidates{} }

// Only is an explicit candidate set.
func Only(instances ...Instance) Candidates {
	return Candidates{instances: instances}
}

// IsAll reports whether c is the All sentinel.
func (c Candidates) IsAll() bool { return c.all }

// Empty reports whether no candidate remains.
func (c Candidates) Empty() bool { return !c.all && len(c.instances) == 0 }

// Instances returns the explicit candidates; nil for All.
func (c Candidates) Instances() []Instance { return c.instances }
