package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/fsmnet/internal/cond"
)

// Transition is a class-level transition: move instances of Machine to
// state Next and run Action. Next and Action may be empty.
type Transition struct {
	Machine string
	Next    string
	Action  string
}

// String renders the transition as Machine[:Next][/Action].
func (t Transition) String() string {
	var b strings.Builder
	b.WriteString(t.Machine)
	if t.Next != "" {
		b.WriteByte(':')
		b.WriteString(t.Next)
	}
	if t.Action != "" {
		b.WriteByte('/')
		b.WriteString(t.Action)
	}
	return b.String()
}

// ParseTransition is the inverse of Transition.String.
func ParseTransition(s string) (Transition, error) {
	var t Transition
	rest, action, _ := strings.Cut(s, "/")
	t.Action = action
	t.Machine, t.Next, _ = strings.Cut(rest, ":")
	if t.Machine == "" {
		return Transition{}, fmt.Errorf("transition %q: missing machine", s)
	}
	return t, nil
}

func compareTransitions(a, b Transition) int {
	if c := strings.Compare(a.Machine, b.Machine); c != 0 {
		return c
	}
	if c := strings.Compare(a.Next, b.Next); c != 0 {
		return c
	}
	return strings.Compare(a.Action, b.Action)
}

// addTransitions returns the sorted union of ts and more.
func addTransitions(ts []Transition, more ...Transition) []Transition {
	out := make([]Transition, 0, len(ts)+len(more))
	out = append(out, ts...)
	out = append(out, more...)
	slices.SortFunc(out, compareTransitions)
	return slices.Compact(out)
}

// Concrete is a transition bound to one live instance.
type Concrete struct {
	Instance cond.Instance
	Next     string
	Action   string
}

func (c Concrete) key() string {
	return c.Instance.ID() + "\x00" + c.Next + "\x00" + c.Action
}

func (c Concrete) String() string {
	return Transition{Machine: c.Instance.ID(), Next: c.Next, Action: c.Action}.String()
}

// Instantiate expands the transition into one Concrete per surviving
// candidate of its machine. All expands to every registered instance.
func (t Transition) Instantiate(cands cond.Candidates, reg cond.Registry) []Concrete {
	var pool []cond.Instance
	if cands.IsAll() {
		pool = reg.Instances(t.Machine)
	} else {
		pool = cands.Instances()
	}

	var out []Concrete
	for _, inst := range pool {
		if inst.Machine() != t.Machine {
			continue
		}
		out = append(out, Concrete{Instance: inst, Next: t.Next, Action: t.Action})
	}
	return out
}
