package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/fsmnet/internal/compiler"
	"github.com/roach88/fsmnet/internal/ir"
)

// checkEvent verifies that a posted event fits its namespace: the class is
// declared and every attribute is declared with a matching type. The sender
// attribute is implicit on every event and must be a string.
//
// Returns a RuntimeError with ErrCodeUnknownEvent or ErrCodeInvalidEvent.
func checkEvent(spec *ir.NamespaceSpec, ev *ir.Event) error {
	es, ok := spec.Event(ev.Class)
	if !ok {
		return &RuntimeError{
			Code:      ErrCodeUnknownEvent,
			Message:   fmt.Sprintf("event class %q is not declared in namespace %q", ev.Class, spec.Name),
			Namespace: spec.Name,
		}
	}

	attrs := ev.Attrs
	var msgs []string
	if sender, ok := attrs[compiler.SenderAttr]; ok {
		if _, isString := sender.(ir.String); !isString {
			msgs = append(msgs, fmt.Sprintf("attrs.%s: expected string, got %s", compiler.SenderAttr, ir.TypeOf(sender)))
		}
		attrs = withoutKey(attrs, compiler.SenderAttr)
	}

	stripped := *ev
	stripped.Attrs = attrs
	for _, ve := range es.Validate(&stripped) {
		msgs = append(msgs, ve.Error())
	}

	if len(msgs) > 0 {
		return &RuntimeError{
			Code:      ErrCodeInvalidEvent,
			Message:   fmt.Sprintf("event %s: %s", ev.Class, strings.Join(msgs, "; ")),
			Namespace: spec.Name,
		}
	}
	return nil
}

func withoutKey(obj ir.Object, key string) ir.Object {
	out := make(ir.Object, len(obj))
	for k, v := range obj {
		if k != key {
			out[k] = v
		}
	}
	return out
}
