package ir

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAttribute is returned when a guard references an attribute the
// event (or machine instance) does not carry.
var ErrUnknownAttribute = errors.New("unknown attribute")

// ValidTypes defines the allowed type strings for event attributes.
var ValidTypes = map[string]bool{
	"string": true,
	"int":    true,
	"float":  true,
	"bool":   true,
	"symbol": true,
	"array":  true,
	"object": true,
}

// Event is a posted event: an instance of an event class with attribute
// values, delivered to one namespace.
type Event struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Class     string `json:"class"`
	Attrs     Object `json:"attrs"`
	Priority  int    `json:"priority"`       // higher is delivered first
	Seq       int64  `json:"seq"`            // logical clock
	Root      string `json:"root,omitempty"` // ID of the externally posted event this one descends from
}

// Get looks up an attribute. Dotted names descend into nested objects:
// "door.open" reads Attrs["door"].(Object)["open"].
func (e *Event) Get(name string) (Value, error) {
	return Lookup(e.Attrs, name)
}

// EventClass returns the event's class name.
func (e *Event) EventClass() string {
	return e.Class
}

// Lookup resolves a dotted attribute path in an object.
func Lookup(obj Object, name string) (Value, error) {
	if v, ok := obj[name]; ok {
		return v, nil
	}

	parts := strings.Split(name, ".")
	var cur Value = obj
	for i, part := range parts {
		o, ok := cur.(Object)
		if !ok {
			return nil, fmt.Errorf("%w: %q (%q is not an object)", ErrUnknownAttribute, name, strings.Join(parts[:i], "."))
		}
		next, ok := o[part]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
		}
		cur = next
	}
	return cur, nil
}

// TypeOf returns the spec type name of a value.
func TypeOf(v Value) string {
	switch v.(type) {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Symbol:
		return "symbol"
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return "null"
}

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks an event's attributes against its spec.
// Returns all errors (not fail-fast).
func (s *EventSpec) Validate(ev *Event) []ValidationError {
	var errs []ValidationError

	if ev.Class != s.Name {
		errs = append(errs, ValidationError{
			Field:   "class",
			Message: fmt.Sprintf("event class %q does not match spec %q", ev.Class, s.Name),
		})
	}

	for _, name := range ev.Attrs.SortedKeys() {
		want, ok := s.Attrs[name]
		if !ok {
			errs = append(errs, ValidationError{
				Field:   "attrs." + name,
				Message: "attribute not declared on event " + s.Name,
			})
			continue
		}
		got := TypeOf(ev.Attrs[name])
		if got == want || (want == "float" && got == "int") {
			continue
		}
		errs = append(errs, ValidationError{
			Field:   "attrs." + name,
			Message: fmt.Sprintf("expected %s, got %s", want, got),
		})
	}

	return errs
}
