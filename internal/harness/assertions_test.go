package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fsmnet/internal/ir"
)

func fired(seq int64, inst, from, to string) TraceEvent {
	return TraceEvent{Type: TraceFired, Seq: seq, Namespace: "n", Instance: inst, Machine: "M", From: from, To: to}
}

func sampleResult() *Result {
	r := NewResult()
	r.Trace = []TraceEvent{
		{Type: TraceEventDelivered, Seq: 3, Namespace: "n", Class: "Go"},
		fired(4, "a", "idle", "busy"),
		fired(5, "b", "idle", "busy"),
		{Type: TraceEventDelivered, Seq: 6, Namespace: "n", Class: "Go"},
		fired(7, "a", "busy", "idle"),
	}
	r.State["a"] = ir.InstanceRecord{ID: "a", State: "idle", Vars: ir.Object{"n": ir.Int(2), "mode": ir.Symbol("eco")}}
	r.State["b"] = ir.InstanceRecord{ID: "b", State: "busy", Vars: ir.Object{}}
	r.RuntimeErrors = []string{"CYCLE_DETECTED"}
	return r
}

func TestEvaluateAssertions(t *testing.T) {
	tests := []struct {
		name       string
		assertion  Assertion
		errContain string
	}{
		{name: "final state", assertion: Assertion{Type: AssertFinalState, Instance: "b", State: "busy"}},
		{
			name:       "final state mismatch",
			assertion:  Assertion{Type: AssertFinalState, Instance: "b", State: "idle"},
			errContain: "Actual: state busy",
		},
		{
			name:       "final state unknown instance",
			assertion:  Assertion{Type: AssertFinalState, Instance: "z", State: "idle"},
			errContain: "instance not found",
		},
		{name: "var int", assertion: Assertion{Type: AssertVar, Instance: "a", Name: "n", Value: 2}},
		{name: "var int equals float", assertion: Assertion{Type: AssertVar, Instance: "a", Name: "n", Value: 2.0}},
		{name: "var symbol", assertion: Assertion{Type: AssertVar, Instance: "a", Name: "mode", Value: ":eco"}},
		{
			name:       "var symbol is not a string",
			assertion:  Assertion{Type: AssertVar, Instance: "a", Name: "mode", Value: "eco"},
			errContain: "a.mode = :eco",
		},
		{
			name:       "var unset",
			assertion:  Assertion{Type: AssertVar, Instance: "b", Name: "n", Value: 0},
			errContain: "variable not set",
		},
		{name: "fired count all", assertion: Assertion{Type: AssertFiredCount, Count: 3}},
		{name: "fired count instance", assertion: Assertion{Type: AssertFiredCount, Instance: "a", Count: 2}},
		{
			name:       "fired count mismatch",
			assertion:  Assertion{Type: AssertFiredCount, Instance: "b", Count: 2},
			errContain: "2 firings for b",
		},
		{
			name:      "fired order with gaps",
			assertion: Assertion{Type: AssertFiredOrder, Transitions: []string{"a:idle->busy", "a:busy->idle"}},
		},
		{
			name:       "fired order reversed",
			assertion:  Assertion{Type: AssertFiredOrder, Transitions: []string{"b:idle->busy", "a:idle->busy"}},
			errContain: "missing a:idle->busy after 1 matched",
		},
		{
			name:       "fired order never fired",
			assertion:  Assertion{Type: AssertFiredOrder, Transitions: []string{"b:busy->idle"}},
			errContain: "b:busy->idle never fired",
		},
		{name: "runtime error", assertion: Assertion{Type: AssertRuntimeError, Code: "CYCLE_DETECTED"}},
		{
			name:       "runtime error missing",
			assertion:  Assertion{Type: AssertRuntimeError, Code: "QUOTA_EXCEEDED"},
			errContain: "runtime errors [CYCLE_DETECTED]",
		},
		{
			name:       "unknown type",
			assertion:  Assertion{Type: "trace_count"},
			errContain: `unknown assertion type "trace_count"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion})
			if tt.errContain == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.errContain)
		})
	}
}

func TestEvaluateAssertions_CollectsAll(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertFinalState, Instance: "a", State: "busy"},
		{Type: AssertFiredCount, Count: 3},
		{Type: AssertFiredCount, Count: 1},
	})
	assert.Len(t, errs, 2)
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertFiredCount,
		Expected: "2 firings for b",
		Actual:   "1 firings",
		Trace:    sampleResult().Trace[:2],
	}

	assert.Equal(t, "Assertion failed: fired_count\n"+
		"  Expected: 2 firings for b\n"+
		"  Actual: 1 firings\n"+
		"\nFull trace:\n"+
		"  3 event n/Go {}\n"+
		"  4 fire a M idle -> busy\n", err.Error())
}

func TestAssertionError_NoTrace(t *testing.T) {
	err := &AssertionError{Type: AssertVar, Expected: "x", Actual: "y"}
	assert.NotContains(t, err.Error(), "Full trace")
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
