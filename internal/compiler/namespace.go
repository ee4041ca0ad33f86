package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/fsmnet/internal/ir"
)

// CompileNamespaces compiles every namespace declared under the top-level
// "namespace" field of v, in declaration order.
func CompileNamespaces(v cue.Value) ([]ir.NamespaceSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	nsVal := v.LookupPath(cue.ParsePath("namespace"))
	if !nsVal.Exists() {
		return nil, nil
	}

	iter, err := nsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []ir.NamespaceSpec
	for iter.Next() {
		spec, err := CompileNamespace(iter.Value())
		if err != nil {
			return nil, err
		}
		specs = append(specs, *spec)
	}
	return specs, nil
}

// CompileNamespace parses a CUE value into a NamespaceSpec.
//
// The CUE value should be the namespace struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`namespace: traffic: { ... }`)
//	spec, err := CompileNamespace(v.LookupPath(cue.ParsePath("namespace.traffic")))
//
// A namespace declares events and machines:
//
//	event: Tick: { count: int }
//	machine: Light: {
//		states: ["red", "green"]
//		initial: "red"
//		vars: { level: 0 }
//		transitions: [{ on: "Tick", from: "red", to: "green", guard: "count > 3" }]
//	}
func CompileNamespace(v cue.Value) (*ir.NamespaceSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.NamespaceSpec{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	var err error
	spec.Events, err = parseEvents(v)
	if err != nil {
		return nil, err
	}

	spec.Machines, err = parseMachines(v)
	if err != nil {
		return nil, err
	}
	if len(spec.Machines) == 0 {
		return nil, &CompileError{
			Field:   "machine",
			Message: "at least one machine is required",
			Pos:     v.Pos(),
		}
	}

	return spec, nil
}

// parseEvents extracts event class declarations.
func parseEvents(v cue.Value) ([]ir.EventSpec, error) {
	var events []ir.EventSpec

	eventVal := v.LookupPath(cue.ParsePath("event"))
	if !eventVal.Exists() {
		return events, nil
	}

	iter, err := eventVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		ev := ir.EventSpec{
			Name:  iter.Label(),
			Attrs: make(map[string]string),
		}

		attrIter, err := iter.Value().Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for attrIter.Next() {
			typ, err := extractTypeName(attrIter.Value())
			if err != nil {
				return nil, err
			}
			ev.Attrs[attrIter.Label()] = typ
		}

		events = append(events, ev)
	}

	return events, nil
}

// parseMachines extracts machine declarations.
func parseMachines(v cue.Value) ([]ir.MachineSpec, error) {
	var machines []ir.MachineSpec

	machineVal := v.LookupPath(cue.ParsePath("machine"))
	if !machineVal.Exists() {
		return machines, nil
	}

	iter, err := machineVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		m, err := parseMachine(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		machines = append(machines, m)
	}

	return machines, nil
}

func parseMachine(name string, v cue.Value) (ir.MachineSpec, error) {
	m := ir.MachineSpec{Name: name}

	statesVal := v.LookupPath(cue.ParsePath("states"))
	if !statesVal.Exists() {
		return m, &CompileError{
			Field:   fmt.Sprintf("machine.%s.states", name),
			Message: "states are required",
			Pos:     v.Pos(),
		}
	}
	states, err := parseStringList(statesVal)
	if err != nil {
		return m, err
	}
	m.States = states

	initialVal := v.LookupPath(cue.ParsePath("initial"))
	if initialVal.Exists() {
		m.Initial, err = initialVal.String()
		if err != nil {
			return m, formatCUEError(err)
		}
	} else if len(m.States) > 0 {
		m.Initial = m.States[0]
	}

	varsVal := v.LookupPath(cue.ParsePath("vars"))
	if varsVal.Exists() {
		vars, err := cueValue(varsVal)
		if err != nil {
			return m, err
		}
		obj, ok := vars.(ir.Object)
		if !ok {
			return m, &CompileError{
				Field:   fmt.Sprintf("machine.%s.vars", name),
				Message: "vars must be a struct",
				Pos:     varsVal.Pos(),
			}
		}
		m.Vars = obj
	}

	transVal := v.LookupPath(cue.ParsePath("transitions"))
	if transVal.Exists() {
		listIter, err := transVal.List()
		if err != nil {
			return m, formatCUEError(err)
		}
		for i := 0; listIter.Next(); i++ {
			t, err := parseTransition(fmt.Sprintf("machine.%s.transitions[%d]", name, i), listIter.Value())
			if err != nil {
				return m, err
			}
			m.Transitions = append(m.Transitions, t)
		}
	}

	return m, nil
}

func parseTransition(field string, v cue.Value) (ir.TransitionSpec, error) {
	var t ir.TransitionSpec

	required := []struct {
		name string
		dst  *string
	}{
		{"on", &t.On},
		{"from", &t.From},
		{"to", &t.To},
	}
	for _, r := range required {
		val := v.LookupPath(cue.ParsePath(r.name))
		if !val.Exists() {
			return t, &CompileError{
				Field:   field + "." + r.name,
				Message: r.name + " is required",
				Pos:     v.Pos(),
			}
		}
		s, err := val.String()
		if err != nil {
			return t, formatCUEError(err)
		}
		*r.dst = s
	}

	optional := []struct {
		name string
		dst  *string
	}{
		{"guard", &t.If},
		{"action", &t.Action},
	}
	for _, o := range optional {
		val := v.LookupPath(cue.ParsePath(o.name))
		if !val.Exists() {
			continue
		}
		s, err := val.String()
		if err != nil {
			return t, formatCUEError(err)
		}
		*o.dst = s
	}

	emitVal := v.LookupPath(cue.ParsePath("emit"))
	if emitVal.Exists() {
		emit, err := parseStringList(emitVal)
		if err != nil {
			return t, err
		}
		t.Emit = emit
	}

	setVal := v.LookupPath(cue.ParsePath("set"))
	if setVal.Exists() {
		set, err := cueValue(setVal)
		if err != nil {
			return t, err
		}
		obj, ok := set.(ir.Object)
		if !ok {
			return t, &CompileError{
				Field:   field + ".set",
				Message: "set must be a struct",
				Pos:     setVal.Pos(),
			}
		}
		t.Set = obj
	}

	return t, nil
}

func parseStringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// cueValue converts a concrete CUE value into an IR value. Strings that
// start with a colon become symbols.
func cueValue(v cue.Value) (ir.Value, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(n), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Float(f), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.FromGo(s)
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var arr ir.Array
		for iter.Next() {
			elem, err := cueValue(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.Object{}
		for iter.Next() {
			elem, err := cueValue(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = elem
		}
		return obj, nil
	}
	return nil, &CompileError{
		Field:   "value",
		Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()),
		Pos:     v.Pos(),
	}
}

// extractTypeName converts a CUE attribute declaration to an IR type name.
// CUE has no symbol type, so symbol attributes are declared with the string
// literal "symbol".
func extractTypeName(v cue.Value) (string, error) {
	if s, err := v.String(); err == nil && s == "symbol" {
		return "symbol", nil
	}

	switch v.IncompleteKind() {
	case cue.StringKind:
		return "string", nil
	case cue.IntKind:
		return "int", nil
	case cue.FloatKind, cue.NumberKind:
		return "float", nil
	case cue.BoolKind:
		return "bool", nil
	case cue.ListKind:
		return "array", nil
	case cue.StructKind:
		return "object", nil
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
