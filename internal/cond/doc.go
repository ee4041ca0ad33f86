// Package cond defines guard conditions, the condition cache that interns
// them to dense integer ids, and their evaluation against a delivered event
// and a set of candidate FSM instances.
//
// A Condition compares two operands. Each operand is a literal, an attribute
// of the delivered event, the delivered event's class, or a state variable
// of a machine instance. Conditions are normalized on construction so that
// "a > b" and "b < a" are the same condition and share one cache id.
//
// Evaluation narrows a Candidates set:
//
//   - A condition without state-variable operands is a gate. It keeps the
//     candidates when it holds and empties them when it does not.
//   - A condition over a state variable filters instances of its machine,
//     starting from every registered instance when the candidates are All.
package cond
