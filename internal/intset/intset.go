// Package intset provides small immutable sets of integers.
//
// Sets are stored as sorted, duplicate-free slices. Clauses, node condition
// sets and edge sets in the decision graph are all intsets, so the merge
// rules reduce to linear merges over sorted slices.
package intset

import (
	"slices"
	"strconv"
	"strings"
)

// Set is a sorted, duplicate-free set of ints. The zero value is the empty
// set. A Set must not be modified after construction; every operation
// returns a new Set.
type Set struct {
	elems []int
}

// Of builds a set from the given elements in any order.
func Of(elems ...int) Set {
	if len(elems) == 0 {
		return Set{}
	}
	out := slices.Clone(elems)
	slices.Sort(out)
	return Set{elems: slices.Compact(out)}
}

// Len returns the number of elements.
func (s Set) Len() int { return len(s.elems) }

// Empty reports whether the set has no elements.
func (s Set) Empty() bool { return len(s.elems) == 0 }

// Elems returns the elements in ascending order. The caller must not
// modify the returned slice.
func (s Set) Elems() []int { return s.elems }

// Contains reports whether x is in the set.
func (s Set) Contains(x int) bool {
	_, found := slices.BinarySearch(s.elems, x)
	return found
}

// Add returns s with x added.
func (s Set) Add(x int) Set {
	i, found := slices.BinarySearch(s.elems, x)
	if found {
		return s
	}
	out := make([]int, 0, len(s.elems)+1)
	out = append(out, s.elems[:i]...)
	out = append(out, x)
	out = append(out, s.elems[i:]...)
	return Set{elems: out}
}

// Union returns s ∪ o.
func (s Set) Union(o Set) Set {
	out := make([]int, 0, len(s.elems)+len(o.elems))
	i, j := 0, 0
	for i < len(s.elems) && j < len(o.elems) {
		switch a, b := s.elems[i], o.elems[j]; {
		case a < b:
			out = append(out, a)
			i++
		case a > b:
			out = append(out, b)
			j++
		default:
			out = append(out, a)
			i++
			j++
		}
	}
	out = append(out, s.elems[i:]...)
	out = append(out, o.elems[j:]...)
	return fromSorted(out)
}

// Intersect returns s ∩ o.
func (s Set) Intersect(o Set) Set {
	var out []int
	i, j := 0, 0
	for i < len(s.elems) && j < len(o.elems) {
		switch a, b := s.elems[i], o.elems[j]; {
		case a < b:
			i++
		case a > b:
			j++
		default:
			out = append(out, a)
			i++
			j++
		}
	}
	return fromSorted(out)
}

// Difference returns s − o.
func (s Set) Difference(o Set) Set {
	var out []int
	i, j := 0, 0
	for i < len(s.elems) {
		if j >= len(o.elems) || s.elems[i] < o.elems[j] {
			out = append(out, s.elems[i])
			i++
			continue
		}
		if s.elems[i] > o.elems[j] {
			j++
			continue
		}
		i++
		j++
	}
	return fromSorted(out)
}

// Equal reports whether both sets hold the same elements.
func (s Set) Equal(o Set) bool {
	return slices.Equal(s.elems, o.elems)
}

// SubsetOf reports whether s ⊆ o.
func (s Set) SubsetOf(o Set) bool {
	if len(s.elems) > len(o.elems) {
		return false
	}
	return s.Intersect(o).Len() == len(s.elems)
}

// ProperSubsetOf reports whether s ⊂ o.
func (s Set) ProperSubsetOf(o Set) bool {
	return len(s.elems) < len(o.elems) && s.SubsetOf(o)
}

// Compare orders sets lexicographically by their sorted elements, shorter
// prefixes first.
func (s Set) Compare(o Set) int {
	return slices.Compare(s.elems, o.elems)
}

// Key returns a string usable as a map key: "1,2,3".
func (s Set) Key() string {
	var b strings.Builder
	for i, x := range s.elems {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(x))
	}
	return b.String()
}

// String renders the set as "{1, 2, 3}".
func (s Set) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, x := range s.elems {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(x))
	}
	b.WriteByte('}')
	return b.String()
}

func fromSorted(elems []int) Set {
	if len(elems) == 0 {
		return Set{}
	}
	return Set{elems: elems}
}
