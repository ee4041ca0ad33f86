package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/fsmnet/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", event)
		}
	}

	return buf.String()
}

// assertFinalState checks the instance's final state.
func assertFinalState(result *Result, assertion Assertion) error {
	rec, ok := result.State[assertion.Instance]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("instance %s in state %s", assertion.Instance, assertion.State),
			Actual:   "instance not found",
		}
	}
	if rec.State != assertion.State {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("instance %s in state %s", assertion.Instance, assertion.State),
			Actual:   fmt.Sprintf("state %s", rec.State),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertVar checks one state variable of an instance.
func assertVar(result *Result, assertion Assertion) error {
	rec, ok := result.State[assertion.Instance]
	if !ok {
		return &AssertionError{
			Type:     AssertVar,
			Expected: fmt.Sprintf("instance %s", assertion.Instance),
			Actual:   "instance not found",
		}
	}

	want, err := ir.FromGo(assertion.Value)
	if err != nil {
		return fmt.Errorf("%s assertion on %s.%s: %w", AssertVar, assertion.Instance, assertion.Name, err)
	}
	got, ok := rec.Vars[assertion.Name]
	if !ok {
		return &AssertionError{
			Type:     AssertVar,
			Expected: fmt.Sprintf("%s.%s = %s", assertion.Instance, assertion.Name, ir.Format(want)),
			Actual:   "variable not set",
		}
	}
	if !ir.Equal(want, got) {
		return &AssertionError{
			Type:     AssertVar,
			Expected: fmt.Sprintf("%s.%s = %s", assertion.Instance, assertion.Name, ir.Format(want)),
			Actual:   fmt.Sprintf("%s.%s = %s", assertion.Instance, assertion.Name, ir.Format(got)),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFiredCount checks how many transitions fired, optionally for one
// instance.
func assertFiredCount(result *Result, assertion Assertion) error {
	count := 0
	for _, event := range result.Fired() {
		if assertion.Instance == "" || event.Instance == assertion.Instance {
			count++
		}
	}

	if count != assertion.Count {
		subject := "all instances"
		if assertion.Instance != "" {
			subject = assertion.Instance
		}
		return &AssertionError{
			Type:     AssertFiredCount,
			Expected: fmt.Sprintf("%d firings for %s", assertion.Count, subject),
			Actual:   fmt.Sprintf("%d firings", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFiredOrder checks that the listed firings occur in order.
// Firings don't need to be consecutive (intervening firings are allowed).
func assertFiredOrder(result *Result, assertion Assertion) error {
	want := assertion.Transitions
	next := 0
	for _, event := range result.Fired() {
		if next < len(want) && event.Label() == want[next] {
			next++
		}
	}
	if next == len(want) {
		return nil
	}

	actual := fmt.Sprintf("missing %s after %d matched", want[next], next)
	if !slices.ContainsFunc(result.Fired(), func(e TraceEvent) bool { return e.Label() == want[next] }) {
		actual = fmt.Sprintf("%s never fired", want[next])
	}
	return &AssertionError{
		Type:     AssertFiredOrder,
		Expected: fmt.Sprintf("firings in order: %v", want),
		Actual:   actual,
		Trace:    result.Trace,
	}
}

// assertRuntimeError checks that draining raised an error with the code.
func assertRuntimeError(result *Result, assertion Assertion) error {
	if slices.Contains(result.RuntimeErrors, assertion.Code) {
		return nil
	}
	return &AssertionError{
		Type:     AssertRuntimeError,
		Expected: fmt.Sprintf("runtime error %s", assertion.Code),
		Actual:   fmt.Sprintf("runtime errors %v", result.RuntimeErrors),
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		case AssertVar:
			err = assertVar(result, assertion)
		case AssertFiredCount:
			err = assertFiredCount(result, assertion)
		case AssertFiredOrder:
			err = assertFiredOrder(result, assertion)
		case AssertRuntimeError:
			err = assertRuntimeError(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
