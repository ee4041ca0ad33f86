package harness

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/fsmnet/internal/ir"
)

// Trace entry types.
const (
	TraceEventDelivered = "event"
	TraceFired          = "fire"
)

// TraceEvent is one entry of a scenario trace: either a delivered event or
// a fired transition. Entries are ordered by seq.
type TraceEvent struct {
	Type      string    `json:"type"`
	Seq       int64     `json:"seq"`
	Namespace string    `json:"namespace"`
	Class     string    `json:"class,omitempty"`
	Attrs     ir.Object `json:"attrs,omitempty"`
	Instance  string    `json:"instance,omitempty"`
	Machine   string    `json:"machine,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Action    string    `json:"action,omitempty"`
}

// Label names a fired transition the way fired_order assertions do:
// "instance:from->to".
func (e TraceEvent) Label() string {
	return fmt.Sprintf("%s:%s->%s", e.Instance, e.From, e.To)
}

// String renders the entry as one golden-file line.
func (e TraceEvent) String() string {
	if e.Type == TraceFired {
		s := fmt.Sprintf("%d fire %s %s %s -> %s", e.Seq, e.Instance, e.Machine, e.From, e.To)
		if e.Action != "" {
			s += " /" + e.Action
		}
		return s
	}
	attrs := "{}"
	if b, err := ir.MarshalCanonical(e.Attrs); err == nil {
		attrs = string(b)
	}
	return fmt.Sprintf("%d event %s/%s %s", e.Seq, e.Namespace, e.Class, attrs)
}

// EventEntry is the trace entry of a delivered event.
func EventEntry(ev ir.Event) TraceEvent {
	return TraceEvent{
		Type:      TraceEventDelivered,
		Seq:       ev.Seq,
		Namespace: ev.Namespace,
		Class:     ev.Class,
		Attrs:     ev.Attrs,
	}
}

// FiredEntry is the trace entry of a fired transition.
func FiredEntry(tr ir.TransitionRecord) TraceEvent {
	return TraceEvent{
		Type:      TraceFired,
		Seq:       tr.Seq,
		Namespace: tr.Namespace,
		Instance:  tr.InstanceID,
		Machine:   tr.Machine,
		From:      tr.From,
		To:        tr.To,
		Action:    tr.Action,
	}
}

// Timeline interleaves logged events and transitions by seq.
func Timeline(events []ir.Event, transitions []ir.TransitionRecord) []TraceEvent {
	out := make([]TraceEvent, 0, len(events)+len(transitions))
	for _, ev := range events {
		out = append(out, EventEntry(ev))
	}
	for _, tr := range transitions {
		out = append(out, FiredEntry(tr))
	}
	slices.SortStableFunc(out, func(a, b TraceEvent) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace contains delivered events and fired transitions in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures and unexpected runtime errors.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// RuntimeErrors holds the codes of errors raised while draining.
	RuntimeErrors []string `json:"runtime_errors,omitempty"`

	// State holds the final instance snapshots keyed by instance ID.
	State map[string]ir.InstanceRecord `json:"state,omitempty"`

	// Graphs holds each namespace's compiled decision graph in debug form.
	Graphs map[string]string `json:"graphs,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]ir.InstanceRecord),
		Graphs: make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Fired returns the fired-transition entries of the trace.
func (r *Result) Fired() []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Type == TraceFired {
			out = append(out, e)
		}
	}
	return out
}

// FormatTrace renders the trace one entry per line, headed by the
// scenario name.
func FormatTrace(name string, trace []TraceEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)
	for _, e := range trace {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}
