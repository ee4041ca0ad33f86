// Package namespace is the boundary between guard registration and event
// processing.
//
// A Namespace collects registrations, one per guarded transition, until it
// is compiled. Compile parses every guard, lowers it to clauses of interned
// conditions and builds the decision graph. After that the namespace is
// frozen: further registrations are rejected and Execute may be called from
// any number of goroutines.
package namespace
