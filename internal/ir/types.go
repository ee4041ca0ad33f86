package ir

// NamespaceSpec is a compiled namespace definition: an isolated group of
// machines and the events they react to. One decision graph is built per
// namespace.
type NamespaceSpec struct {
	Name     string        `json:"name"`
	Events   []EventSpec   `json:"events"`
	Machines []MachineSpec `json:"machines"`
}

// EventSpec declares an event class and the attributes its instances carry.
type EventSpec struct {
	Name  string            `json:"name"`
	Attrs map[string]string `json:"attrs"` // attribute name -> type name
}

// MachineSpec declares an FSM class.
type MachineSpec struct {
	Name        string           `json:"name"`
	States      []string         `json:"states"`
	Initial     string           `json:"initial"`
	Vars        Object           `json:"vars,omitempty"` // initial values of state variables
	Transitions []TransitionSpec `json:"transitions"`
}

// TransitionSpec is one guarded transition of a machine.
type TransitionSpec struct {
	On     string   `json:"on"`               // event class
	From   string   `json:"from"`             // current state
	To     string   `json:"to"`               // next state
	If     string   `json:"if,omitempty"`     // guard expression, empty = always
	Action string   `json:"action,omitempty"` // named action
	Emit   []string `json:"emit,omitempty"`   // event classes posted after the transition
	Set    Object   `json:"set,omitempty"`    // state variable assignments
}

// HasEffects reports whether the transition does anything beyond changing
// state.
func (t TransitionSpec) HasEffects() bool {
	return t.Action != "" || len(t.Emit) > 0 || len(t.Set) > 0
}

// Registration is the unit handed to a namespace during setup: a guard
// registered for an event class on a machine in a given state.
type Registration struct {
	EventClass string `json:"event_class"`
	Machine    string `json:"machine"`
	From       string `json:"from"`
	To         string `json:"to"`
	Guard      string `json:"guard,omitempty"`  // empty = unconditional
	Action     string `json:"action,omitempty"` // opaque action reference
}

// Machine returns the machine spec with the given name.
func (s *NamespaceSpec) Machine(name string) (*MachineSpec, bool) {
	for i := range s.Machines {
		if s.Machines[i].Name == name {
			return &s.Machines[i], true
		}
	}
	return nil, false
}

// Event returns the event spec with the given name.
func (s *NamespaceSpec) Event(name string) (*EventSpec, bool) {
	for i := range s.Events {
		if s.Events[i].Name == name {
			return &s.Events[i], true
		}
	}
	return nil, false
}

// HasState reports whether the machine declares the state.
func (m *MachineSpec) HasState(state string) bool {
	for _, s := range m.States {
		if s == state {
			return true
		}
	}
	return false
}
