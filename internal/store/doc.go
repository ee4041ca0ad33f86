// Package store provides the SQLite-backed transition log.
//
// The log records runtime activity of an engine:
//   - Events: every delivered event, externally posted or emitted
//   - Transitions: every fired transition, tied to the event that caused it
//   - Instances: the latest snapshot of every FSM instance
//
// Compiled decision graphs are never stored; they are rebuilt from the
// namespace specs. Each transition carries the hash of the registrations it
// was compiled from so a log can be checked against the current specs.
//
// # Ordering
//
// All reads order by seq, the engine's logical clock, and break ties by id
// with COLLATE BINARY. Wall-clock time is never recorded.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Attribute and variable objects are stored as canonical JSON (see
// ir.MarshalCanonical) so symbols survive a round trip.
package store
