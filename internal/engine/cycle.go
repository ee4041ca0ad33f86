package engine

import (
	"fmt"
	"sync"

	"github.com/roach88/fsmnet/internal/ir"
)

const cycleDomain = "fsmnet/cycle/v1"

// CycleDetector tracks fired transitions per cascade to prevent infinite
// loops.
//
// A cycle occurs when the same transition fires again in one cascade with
// exactly the same inputs: the same instance moving between the same states,
// on an event of the same class with the same attributes, with the same
// state variables. Since firing is deterministic, such a cascade would
// repeat forever.
//
// Example cycle:
//
//	Ping@idle --Ball--> busy emits Ball
//	Pong@idle --Ball--> busy emits Ball ... Ping is idle again
//	Ping@idle --Ball--> busy  <- same inputs, CYCLE DETECTED
//
// The detector keeps per-cascade history of fired transition keys (see
// cycleKey). Before each firing, WouldCycle() checks if the key has been
// seen in this cascade.
type CycleDetector struct {
	mu      sync.Mutex
	history map[string]map[string]bool // map[root]map[cycle_key]bool
}

// NewCycleDetector creates a new cycle detector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{
		history: make(map[string]map[string]bool),
	}
}

// WouldCycle checks if firing the transition identified by key would
// create a cycle in the cascade rooted at root.
//
// Thread-safe: Can be called concurrently.
func (c *CycleDetector) WouldCycle(root, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.history[root] == nil {
		return false
	}
	return c.history[root][key]
}

// Record marks that the transition identified by key has fired in this
// cascade.
//
// Thread-safe: Can be called concurrently.
func (c *CycleDetector) Record(root, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.history[root] == nil {
		c.history[root] = make(map[string]bool)
	}
	c.history[root][key] = true
}

// Clear removes all history for a cascade.
//
// Thread-safe: Can be called concurrently.
func (c *CycleDetector) Clear(root string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.history, root)
}

// HistorySize returns the number of cascades with tracked history.
func (c *CycleDetector) HistorySize() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.history)
}

// CascadeHistorySize returns the number of transition keys tracked for a
// cascade.
func (c *CycleDetector) CascadeHistorySize(root string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.history[root])
}

// cycleKey identifies a firing by everything that determines its outcome:
// the instance, the transition, the triggering event's class and attributes,
// and the instance variables before the firing.
func cycleKey(instanceID, from, to string, ev *ir.Event, vars ir.Object) (string, error) {
	attrs := ev.Attrs
	if attrs == nil {
		attrs = ir.Object{}
	}
	if vars == nil {
		vars = ir.Object{}
	}
	canonical, err := ir.MarshalCanonical(ir.Object{
		"instance": ir.String(instanceID),
		"from":     ir.String(from),
		"to":       ir.String(to),
		"class":    ir.String(ev.Class),
		"attrs":    attrs,
		"vars":     vars,
	})
	if err != nil {
		return "", fmt.Errorf("cycle key: %w", err)
	}
	return ir.Fingerprint(cycleDomain, canonical), nil
}
