package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/fsmnet/internal/ir"
)

func TestCheckEvent(t *testing.T) {
	spec := trafficSpec()

	tests := []struct {
		name    string
		ev      ir.Event
		code    RuntimeErrorCode
		message string
	}{
		{name: "valid", ev: ir.Event{Class: "Tick", Attrs: ir.Object{"count": ir.Int(1)}}},
		{name: "no attributes", ev: ir.Event{Class: "Reset"}},
		{name: "sender is implicit", ev: ir.Event{Class: "Reset", Attrs: ir.Object{"sender": ir.String("l1")}}},
		{
			name: "undeclared class",
			ev:   ir.Event{Class: "Tock"},
			code: ErrCodeUnknownEvent, message: `"Tock"`,
		},
		{
			name: "wrong type",
			ev:   ir.Event{Class: "Tick", Attrs: ir.Object{"count": ir.Bool(true)}},
			code: ErrCodeInvalidEvent, message: "expected int, got bool",
		},
		{
			name: "undeclared attribute",
			ev:   ir.Event{Class: "Reset", Attrs: ir.Object{"hard": ir.Bool(true)}},
			code: ErrCodeInvalidEvent, message: "attrs.hard",
		},
		{
			name: "sender must be a string",
			ev:   ir.Event{Class: "Reset", Attrs: ir.Object{"sender": ir.Int(1)}},
			code: ErrCodeInvalidEvent, message: "attrs.sender: expected string, got int",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkEvent(&spec, &tt.ev)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.code, CodeOf(err))
			assert.ErrorContains(t, err, tt.message)
		})
	}
}

func TestCheckEvent_DoesNotMutate(t *testing.T) {
	spec := trafficSpec()
	ev := ir.Event{Class: "Reset", Attrs: ir.Object{"sender": ir.String("l1")}}
	_ = checkEvent(&spec, &ev)
	assert.Equal(t, ir.Object{"sender": ir.String("l1")}, ev.Attrs)
}
