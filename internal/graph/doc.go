// Package graph implements the decision graph that evaluates every guard of
// a namespace in one pass, and the optimizer that picks the cheapest graph
// over clause insertion orders.
//
// A Graph is an arena of nodes. Each node holds a set of condition ids, the
// transitions to fire when all of them hold, and the indices of its child
// nodes. Start nodes have no parents. Clauses are merged in one at a time
// with AddClause, which shares a common condition prefix between clauses
// whenever a start node overlaps the new clause.
//
// Graphs are immutable: AddClause returns a new Graph that shares every
// node it did not touch. A built graph is safe for concurrent Execute calls.
//
// The text form used by String and ParseDebug lists start nodes and then one
// line per node:
//
//	start: 0, 2
//	0: {3, 4, 5, 6} [Light:green] -> 1
//	1: {1, 2} [Door:open/log] -> end
//	2: {1, 2, 7, 8} [Light:red] -> end
package graph
