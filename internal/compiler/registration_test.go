package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fsmnet/internal/cond"
	"github.com/roach88/fsmnet/internal/guard"
	"github.com/roach88/fsmnet/internal/ir"
)

func TestClausesForImplicitConditions(t *testing.T) {
	cache := cond.NewCache()
	reg := ir.Registration{EventClass: "Tick", Machine: "Light", From: "red", To: "green"}

	clauses, err := ClausesFor(reg, cache)
	require.NoError(t, err)
	require.Len(t, clauses, 1)
	assert.Equal(t, []int{0, 1}, clauses[0].Elems())

	assert.Equal(t, `event.class == "Tick"`, cache.Get(0).String())
	assert.Equal(t, ":red == Light@state", cache.Get(1).String())
}

func TestClausesForGuard(t *testing.T) {
	cache := cond.NewCache()
	reg := ir.Registration{
		EventClass: "Tick",
		Machine:    "Light",
		From:       "red",
		To:         "green",
		Guard:      "count > 3 or urgent",
	}

	clauses, err := ClausesFor(reg, cache)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1, 2}, {0, 1, 3}}, clauseElems(clauses))

	// A second machine on the same event shares the event-class condition.
	other := ir.Registration{EventClass: "Tick", Machine: "Door", From: "open", To: "closed", Guard: "count > 3"}
	clauses, err = ClausesFor(other, cache)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 2, 4}}, clauseElems(clauses))
}

func TestClausesForParseError(t *testing.T) {
	cache := cond.NewCache()
	reg := ir.Registration{EventClass: "Tick", Machine: "Light", From: "red", To: "green", Guard: "count >"}

	_, err := ClausesFor(reg, cache)
	require.Error(t, err)
	assert.True(t, guard.IsParseError(err))
}

func TestRegistrations(t *testing.T) {
	spec := &ir.NamespaceSpec{
		Name: "traffic",
		Machines: []ir.MachineSpec{
			{
				Name:   "Light",
				States: []string{"red", "green"},
				Transitions: []ir.TransitionSpec{
					{On: "Tick", From: "red", To: "green", If: "count > 3", Action: "log"},
					{On: "Tick", From: "green", To: "red", Emit: []string{"Changed"}},
					{On: "Reset", From: "green", To: "red"},
				},
			},
		},
	}

	regs := Registrations(spec)
	require.Len(t, regs, 3)
	assert.Equal(t, ir.Registration{
		EventClass: "Tick", Machine: "Light", From: "red", To: "green", Guard: "count > 3", Action: "log",
	}, regs[0])
	assert.Equal(t, "Light#1", regs[1].Action)
	assert.Equal(t, "", regs[2].Action)
}

func TestEffectRef(t *testing.T) {
	assert.Equal(t, "log", EffectRef("M", 0, ir.TransitionSpec{Action: "log"}))
	assert.Equal(t, "M#2", EffectRef("M", 2, ir.TransitionSpec{Action: "log", Set: ir.Object{"n": ir.Int(1)}}))
	assert.Equal(t, "M#0", EffectRef("M", 0, ir.TransitionSpec{Emit: []string{"E"}}))
	assert.Equal(t, "", EffectRef("M", 0, ir.TransitionSpec{}))
}
