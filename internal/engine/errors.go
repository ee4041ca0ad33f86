package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected during engine execution.
//
// Runtime errors include:
//   - Unknown namespace, event class or action
//   - Guard evaluation failures (an attribute the event does not carry)
//   - Cycle detection and cascade quota violations
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Namespace is the namespace the failing event was posted to.
	Namespace string

	// EventID identifies the event being processed, if any.
	EventID string

	// Instance identifies the FSM instance involved, if any.
	Instance string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownNamespace indicates an event or instance names a
	// namespace the engine does not have.
	ErrCodeUnknownNamespace RuntimeErrorCode = "UNKNOWN_NAMESPACE"

	// ErrCodeUnknownEvent indicates an event class the namespace does not
	// declare.
	ErrCodeUnknownEvent RuntimeErrorCode = "UNKNOWN_EVENT"

	// ErrCodeInvalidEvent indicates event attributes that do not match the
	// event declaration.
	ErrCodeInvalidEvent RuntimeErrorCode = "INVALID_EVENT"

	// ErrCodeUnknownMachine indicates a spawn request for an undeclared
	// machine.
	ErrCodeUnknownMachine RuntimeErrorCode = "UNKNOWN_MACHINE"

	// ErrCodeUnknownAction indicates a transition names an action that was
	// never registered (strict mode only).
	ErrCodeUnknownAction RuntimeErrorCode = "UNKNOWN_ACTION"

	// ErrCodeEvaluationFailed indicates the decision graph could not be
	// executed for an event, or an action failed.
	ErrCodeEvaluationFailed RuntimeErrorCode = "EVALUATION_FAILED"

	// ErrCodeCycleDetected indicates the same firing would repeat in one
	// cascade.
	ErrCodeCycleDetected RuntimeErrorCode = "CYCLE_DETECTED"

	// ErrCodeQuotaExceeded indicates a cascade exceeded max steps.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeNotCompiled indicates events were posted before Compile.
	ErrCodeNotCompiled RuntimeErrorCode = "NOT_COMPILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.EventID != "" && e.Instance != "":
		msg += fmt.Sprintf(" (event=%s, instance=%s)", e.EventID, e.Instance)
	case e.EventID != "":
		msg += fmt.Sprintf(" (event=%s)", e.EventID)
	case e.Instance != "":
		msg += fmt.Sprintf(" (instance=%s)", e.Instance)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// CodeOf returns the RuntimeErrorCode carried by err, or "" if err is not a
// runtime error.
func CodeOf(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	var se *StepsExceededError
	if errors.As(err, &se) {
		return ErrCodeQuotaExceeded
	}
	return ""
}

// IsCycleError returns true if the error is a cycle detection error.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	return CodeOf(err) == ErrCodeCycleDetected
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and StepsExceededError.
func IsQuotaError(err error) bool {
	return CodeOf(err) == ErrCodeQuotaExceeded
}

// NewCycleError creates a RuntimeError for cycle detection.
func NewCycleError(namespace, eventID, instance, from, to string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeCycleDetected,
		Message:   fmt.Sprintf("transition %s -> %s would repeat with identical inputs in cascade", from, to),
		Namespace: namespace,
		EventID:   eventID,
		Instance:  instance,
		Details: map[string]string{
			"from": from,
			"to":   to,
		},
	}
}

// NewQuotaError creates a RuntimeError for quota exceeded.
func NewQuotaError(namespace, eventID string, cause *StepsExceededError) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeQuotaExceeded,
		Message:   fmt.Sprintf("cascade exceeded max steps (%d > %d)", cause.Steps, cause.Limit),
		Namespace: namespace,
		EventID:   eventID,
		Details: map[string]string{
			"root":      cause.Root,
			"steps":     fmt.Sprintf("%d", cause.Steps),
			"max_steps": fmt.Sprintf("%d", cause.Limit),
		},
		Err: cause,
	}
}

func newUnknownNamespaceError(namespace string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeUnknownNamespace,
		Message:   fmt.Sprintf("namespace %q is not defined", namespace),
		Namespace: namespace,
	}
}
