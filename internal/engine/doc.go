// Package engine runs communicating FSMs on top of compiled namespaces.
//
// The engine owns the live instances of every namespace, delivers posted
// events to them through the namespace's decision graph, and applies the
// transitions that come out.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// The engine processes all events in a single goroutine for deterministic
// behavior. This ensures:
// - Predictable firing order
// - Reproducible transition log
// - Simple reasoning about causality
//
// Event Processing Flow:
// 1. Post() validates an event, stamps seq and ID, and queues it
// 2. Run() (or Drain()) takes the highest priority event, oldest first
// 3. The namespace decision graph yields concrete transitions
// 4. Each instance fires at most one: set, action, state change, log
// 5. Emitted events join the queue as part of the same cascade
//
// A cascade is an external event and everything emitted on its behalf.
// Cascades are bounded by cycle detection (same firing with the same
// inputs) and by the max steps quota.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Events, transitions and instance snapshots are stamped with a monotonic
// seq counter from the Sequencer. Wall-clock timestamps are never used for
// ordering.
//
// Determinism:
// Guards are evaluated in decision graph order against the instance
// states before the event. Instances are visited in creation order. No
// randomness reaches the runtime: the optimizer's sampling is seeded.
package engine
