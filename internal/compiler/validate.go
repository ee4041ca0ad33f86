package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/fsmnet/internal/guard"
	"github.com/roach88/fsmnet/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Namespace structure errors (E100-E109)
	ErrNoStates         = "E101" // machine declares no states
	ErrInvalidInitial   = "E102" // initial state not declared
	ErrUndeclaredState  = "E103" // transition from/to not declared
	ErrUndeclaredEvent  = "E104" // transition on an undeclared event
	ErrDuplicateName    = "E105" // duplicate machine/event/state name
	ErrInvalidFieldType = "E106" // invalid attribute type string
	ErrEmptyNamespace   = "E107" // namespace has no name

	// Guard and effect errors (E110-E119)
	ErrGuardSyntax    = "E110" // guard does not parse
	ErrUndeclaredAttr = "E111" // guard reads an attribute the event does not declare
	ErrUndeclaredVar  = "E112" // guard reads a state variable the machine does not declare
	ErrUndeclaredEmit = "E113" // transition emits an undeclared event
	ErrUndeclaredSet  = "E114" // transition sets an undeclared state variable
	ErrInvalidName    = "E115" // machine, state or action name is not an identifier
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled namespace for dangling references and guard
// errors. Returns all errors found (does not fail-fast).
func Validate(spec *ir.NamespaceSpec) []ValidationError {
	var errs []ValidationError

	// E107: name is required
	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "namespace name is required",
			Code:    ErrEmptyNamespace,
		})
	}

	eventNames := make(map[string]bool)
	for i, ev := range spec.Events {
		// E105: duplicate event name
		if eventNames[ev.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("events[%d].name", i),
				Message: fmt.Sprintf("duplicate event name: %q", ev.Name),
				Code:    ErrDuplicateName,
			})
		}
		eventNames[ev.Name] = true

		// E106: attribute types
		for _, attr := range sortedKeys(ev.Attrs) {
			if !ir.ValidTypes[ev.Attrs[attr]] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("events[%d].attrs.%s", i, attr),
					Message: fmt.Sprintf("invalid type %q for attribute %q", ev.Attrs[attr], attr),
					Code:    ErrInvalidFieldType,
				})
			}
		}
	}

	machineNames := make(map[string]bool)
	for i := range spec.Machines {
		m := &spec.Machines[i]
		if machineNames[m.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("machines[%d].name", i),
				Message: fmt.Sprintf("duplicate machine name: %q", m.Name),
				Code:    ErrDuplicateName,
			})
		}
		machineNames[m.Name] = true

		// E115: machine names appear in graph transitions
		errs = append(errs, checkIdent(fmt.Sprintf("machines[%d].name", i), "machine", m.Name)...)

		errs = append(errs, validateMachine(spec, i, m)...)
	}

	return errs
}

func validateMachine(spec *ir.NamespaceSpec, idx int, m *ir.MachineSpec) []ValidationError {
	var errs []ValidationError
	prefix := fmt.Sprintf("machines[%d]", idx)

	// E101: at least one state
	if len(m.States) == 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".states",
			Message: fmt.Sprintf("machine %q declares no states", m.Name),
			Code:    ErrNoStates,
		})
	}

	stateNames := make(map[string]bool)
	for j, s := range m.States {
		if stateNames[s] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.states[%d]", prefix, j),
				Message: fmt.Sprintf("duplicate state name: %q", s),
				Code:    ErrDuplicateName,
			})
		}
		stateNames[s] = true

		// E115
		errs = append(errs, checkIdent(fmt.Sprintf("%s.states[%d]", prefix, j), "state", s)...)
	}

	// E102: initial must be declared
	if len(m.States) > 0 && !stateNames[m.Initial] {
		errs = append(errs, ValidationError{
			Field:   prefix + ".initial",
			Message: fmt.Sprintf("initial state %q is not declared", m.Initial),
			Code:    ErrInvalidInitial,
		})
	}

	for j, t := range m.Transitions {
		field := fmt.Sprintf("%s.transitions[%d]", prefix, j)

		// E103: from/to declared
		for _, s := range []struct{ name, value string }{{"from", t.From}, {"to", t.To}} {
			if !stateNames[s.value] {
				errs = append(errs, ValidationError{
					Field:   field + "." + s.name,
					Message: fmt.Sprintf("state %q is not declared on machine %q", s.value, m.Name),
					Code:    ErrUndeclaredState,
				})
			}
		}

		// E104: event declared
		ev, ok := spec.Event(t.On)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   field + ".on",
				Message: fmt.Sprintf("event %q is not declared", t.On),
				Code:    ErrUndeclaredEvent,
			})
		}

		if t.If != "" {
			errs = append(errs, validateGuard(field+".guard", t.If, ev, m)...)
		}

		// E115
		if t.Action != "" {
			errs = append(errs, checkIdent(field+".action", "action", t.Action)...)
		}

		// E113: emitted events declared
		for k, target := range t.Emit {
			if _, ok := spec.Event(target); !ok {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.emit[%d]", field, k),
					Message: fmt.Sprintf("emitted event %q is not declared", target),
					Code:    ErrUndeclaredEmit,
				})
			}
		}

		// E114: set targets declared
		for _, name := range t.Set.SortedKeys() {
			if _, ok := m.Vars[name]; !ok {
				errs = append(errs, ValidationError{
					Field:   field + ".set." + name,
					Message: fmt.Sprintf("state variable %q is not declared on machine %q", name, m.Name),
					Code:    ErrUndeclaredSet,
				})
			}
		}
	}

	return errs
}

// checkIdent reports an E115 error when name is not an identifier.
func checkIdent(field, kind, name string) []ValidationError {
	if guard.IsIdent(name) {
		return nil
	}
	return []ValidationError{{
		Field:   field,
		Message: fmt.Sprintf("%s name %q is not an identifier", kind, name),
		Code:    ErrInvalidName,
	}}
}

// validateGuard parses a guard and checks its references. ev is nil when the
// transition's event is itself undeclared; attribute checks are skipped then.
func validateGuard(field, text string, ev *ir.EventSpec, m *ir.MachineSpec) []ValidationError {
	ast, err := guard.Parse(text)
	if err != nil {
		// E110: syntax
		return []ValidationError{{
			Field:   field,
			Message: err.Error(),
			Code:    ErrGuardSyntax,
		}}
	}

	var errs []ValidationError
	attrs, vars := guardRefs(ast)

	if ev != nil {
		for _, name := range attrs {
			root, _, _ := strings.Cut(name, ".")
			if root == SenderAttr {
				continue
			}
			if _, ok := ev.Attrs[root]; !ok {
				// E111
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("attribute %q is not declared on event %q", name, ev.Name),
					Code:    ErrUndeclaredAttr,
				})
			}
		}
	}

	for _, name := range vars {
		if name == StateVar {
			continue
		}
		root, _, _ := strings.Cut(name, ".")
		if _, ok := m.Vars[root]; !ok {
			// E112
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("state variable @%s is not declared on machine %q", name, m.Name),
				Code:    ErrUndeclaredVar,
			})
		}
	}

	return errs
}

// guardRefs collects the event attribute and state variable names a guard
// reads, in source order, without duplicates.
func guardRefs(n guard.Node) (attrs, vars []string) {
	seenAttr := map[string]bool{}
	seenVar := map[string]bool{}

	visitOperand := func(o guard.Operand) {
		switch o := o.(type) {
		case guard.EventRef:
			if !seenAttr[o.Name] {
				seenAttr[o.Name] = true
				attrs = append(attrs, o.Name)
			}
		case guard.StateVar:
			if !seenVar[o.Name] {
				seenVar[o.Name] = true
				vars = append(vars, o.Name)
			}
		}
	}

	var walk func(guard.Node)
	walk = func(n guard.Node) {
		switch n := n.(type) {
		case *guard.Or:
			for _, t := range n.Terms {
				walk(t)
			}
		case *guard.And:
			for _, t := range n.Terms {
				walk(t)
			}
		case *guard.Comparison:
			visitOperand(n.Left)
			visitOperand(n.Right)
		case *guard.BoolTest:
			visitOperand(n.Operand)
		}
	}
	walk(n)
	return attrs, vars
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
