package engine

import (
	"maps"
	"sync"

	"github.com/roach88/fsmnet/internal/compiler"
	"github.com/roach88/fsmnet/internal/cond"
	"github.com/roach88/fsmnet/internal/ir"
)

// Instance is a live FSM instance.
//
// The Run loop is the only writer; it takes the write lock while applying a
// transition. Readers (guard evaluation, tests, Snapshot) take the read
// lock, so a single Get always sees a consistent state.
type Instance struct {
	id        string
	namespace string
	machine   string

	mu    sync.RWMutex
	state string
	vars  ir.Object
	seq   int64 // seq of the last change
}

func newInstance(id, namespace, machine, state string, vars ir.Object, seq int64) *Instance {
	v := make(ir.Object, len(vars))
	maps.Copy(v, vars)
	return &Instance{
		id:        id,
		namespace: namespace,
		machine:   machine,
		state:     state,
		vars:      v,
		seq:       seq,
	}
}

// ID returns the instance ID.
func (i *Instance) ID() string { return i.id }

// Machine returns the machine the instance was spawned from.
func (i *Instance) Machine() string { return i.machine }

// Namespace returns the namespace the instance lives in.
func (i *Instance) Namespace() string { return i.namespace }

// State returns the current state.
func (i *Instance) State() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// Vars returns a copy of the state variables.
func (i *Instance) Vars() ir.Object {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return maps.Clone(i.vars)
}

// Get reads a state variable. "state" is the current state as a symbol.
// Dotted names descend into object variables.
func (i *Instance) Get(name string) (ir.Value, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if name == compiler.StateVar {
		return ir.Symbol(i.state), nil
	}
	return ir.Lookup(i.vars, name)
}

// Record returns the instance as a store record.
func (i *Instance) Record() ir.InstanceRecord {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return ir.InstanceRecord{
		ID:        i.id,
		Namespace: i.namespace,
		Machine:   i.machine,
		State:     i.state,
		Vars:      maps.Clone(i.vars),
		Seq:       i.seq,
	}
}

// apply moves the instance to next and merges set into its variables.
func (i *Instance) apply(next string, set ir.Object, seq int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if next != "" {
		i.state = next
	}
	maps.Copy(i.vars, set)
	i.seq = seq
}

// Registry holds the live instances of one namespace in creation order.
// It implements cond.Registry.
type Registry struct {
	mu        sync.RWMutex
	byMachine map[string][]*Instance
	byID      map[string]*Instance
	order     []*Instance
}

func newRegistry() *Registry {
	return &Registry{
		byMachine: make(map[string][]*Instance),
		byID:      make(map[string]*Instance),
	}
}

// Instances returns the instances of machine in creation order.
func (r *Registry) Instances(machine string) []cond.Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.byMachine[machine]
	out := make([]cond.Instance, len(list))
	for i, inst := range list {
		out[i] = inst
	}
	return out
}

// Get returns the instance with the given ID.
func (r *Registry) Get(id string) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.byID[id]
	return inst, ok
}

// All returns every instance in creation order.
func (r *Registry) All() []*Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Instance(nil), r.order...)
}

// Len returns the number of instances.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// add registers inst. It reports false if the ID is taken.
func (r *Registry) add(inst *Instance) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[inst.id]; ok {
		return false
	}
	r.byID[inst.id] = inst
	r.byMachine[inst.machine] = append(r.byMachine[inst.machine], inst)
	r.order = append(r.order, inst)
	return true
}

var (
	_ cond.Instance = (*Instance)(nil)
	_ cond.Registry = (*Registry)(nil)
)
