package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fsmnet/internal/ir"
)

func validSpec() *ir.NamespaceSpec {
	return &ir.NamespaceSpec{
		Name: "traffic",
		Events: []ir.EventSpec{
			{Name: "Tick", Attrs: map[string]string{"count": "int", "door": "object"}},
			{Name: "Changed", Attrs: map[string]string{"sender": "string"}},
		},
		Machines: []ir.MachineSpec{{
			Name:    "Light",
			States:  []string{"red", "green"},
			Initial: "red",
			Vars:    ir.Object{"level": ir.Int(0)},
			Transitions: []ir.TransitionSpec{
				{
					On: "Tick", From: "red", To: "green",
					If:   "count > @level and door.open and @state == :red",
					Emit: []string{"Changed"},
					Set:  ir.Object{"level": ir.Int(1)},
				},
			},
		}},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValid(t *testing.T) {
	errs := Validate(validSpec())
	assert.Empty(t, errs, "valid spec should have no errors")
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ir.NamespaceSpec)
		codes  []string
	}{
		{"empty name", func(s *ir.NamespaceSpec) { s.Name = " " }, []string{ErrEmptyNamespace}},
		{"no states", func(s *ir.NamespaceSpec) {
			s.Machines[0].States = nil
			s.Machines[0].Transitions = nil
		}, []string{ErrNoStates}},
		{"bad initial", func(s *ir.NamespaceSpec) { s.Machines[0].Initial = "blue" }, []string{ErrInvalidInitial}},
		{"undeclared to", func(s *ir.NamespaceSpec) { s.Machines[0].Transitions[0].To = "blue" }, []string{ErrUndeclaredState}},
		{"undeclared event", func(s *ir.NamespaceSpec) {
			s.Machines[0].Transitions[0].On = "Tock"
		}, []string{ErrUndeclaredEvent}},
		{"duplicate event", func(s *ir.NamespaceSpec) {
			s.Events = append(s.Events, ir.EventSpec{Name: "Tick"})
		}, []string{ErrDuplicateName}},
		{"duplicate state", func(s *ir.NamespaceSpec) {
			s.Machines[0].States = append(s.Machines[0].States, "red")
		}, []string{ErrDuplicateName}},
		{"bad attr type", func(s *ir.NamespaceSpec) { s.Events[0].Attrs["x"] = "decimal" }, []string{ErrInvalidFieldType}},
		{"guard syntax", func(s *ir.NamespaceSpec) { s.Machines[0].Transitions[0].If = "count >" }, []string{ErrGuardSyntax}},
		{"undeclared attr", func(s *ir.NamespaceSpec) {
			s.Machines[0].Transitions[0].If = "missing == 1"
		}, []string{ErrUndeclaredAttr}},
		{"undeclared var", func(s *ir.NamespaceSpec) {
			s.Machines[0].Transitions[0].If = "@speed == 1"
		}, []string{ErrUndeclaredVar}},
		{"undeclared emit", func(s *ir.NamespaceSpec) {
			s.Machines[0].Transitions[0].Emit = []string{"Nope"}
		}, []string{ErrUndeclaredEmit}},
		{"undeclared set", func(s *ir.NamespaceSpec) {
			s.Machines[0].Transitions[0].Set = ir.Object{"speed": ir.Int(1)}
		}, []string{ErrUndeclaredSet}},
		{"action with separator", func(s *ir.NamespaceSpec) {
			s.Machines[0].Transitions[0].Action = "slam,lock"
		}, []string{ErrInvalidName}},
		{"action with bracket", func(s *ir.NamespaceSpec) {
			s.Machines[0].Transitions[0].Action = "slam]"
		}, []string{ErrInvalidName}},
		{"machine name with colon", func(s *ir.NamespaceSpec) { s.Machines[0].Name = "Light:1" }, []string{ErrInvalidName}},
		{"state name with slash", func(s *ir.NamespaceSpec) {
			s.Machines[0].States = append(s.Machines[0].States, "half/open")
		}, []string{ErrInvalidName}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(spec)
			assert.Equal(t, tt.codes, codes(Validate(spec)))
		})
	}
}

func TestValidateCollectsAll(t *testing.T) {
	spec := validSpec()
	spec.Machines[0].Initial = "blue"
	spec.Machines[0].Transitions[0].On = "Tock"
	spec.Machines[0].Transitions[0].Emit = []string{"Nope"}

	errs := Validate(spec)
	require.Len(t, errs, 3)
	assert.Equal(t, []string{ErrInvalidInitial, ErrUndeclaredEvent, ErrUndeclaredEmit}, codes(errs))
	assert.Contains(t, errs[0].Error(), "[E102]")
}

func TestValidateSenderIsImplicit(t *testing.T) {
	spec := validSpec()
	spec.Machines[0].Transitions[0].If = `sender == "l2"`
	assert.Empty(t, Validate(spec))
}
