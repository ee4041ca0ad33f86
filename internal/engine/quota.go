package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer counts the events processed in one cascade and enforces a
// maximum steps limit.
//
// A cascade is an externally posted event plus every event emitted, directly
// or transitively, by the transitions it fires. Each cascade has its own
// QuotaEnforcer, keyed by the root event ID.
//
// Cycle detection catches a cascade that revisits the same transition with
// the same inputs (A -> B -> A). The quota catches cascades that never
// repeat exactly but never settle either, such as a counter incremented on
// every bounce. Together they bound every cascade.
type QuotaEnforcer struct {
	maxSteps int // Maximum allowed steps for this cascade
	current  int // Current step count
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
//
// maxSteps: Maximum number of events processed per cascade.
// Typical default: 1000 (configurable via engine.WithMaxSteps())
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{
		maxSteps: maxSteps,
		current:  0,
	}
}

// Check increments the step counter and validates against the limit.
//
// Returns StepsExceededError if the quota is exceeded.
// This should be called before processing each event of the cascade.
func (q *QuotaEnforcer) Check(root string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			Root:  root,
			Steps: q.current,
			Limit: q.maxSteps,
		}
	}
	return nil
}

// Reset resets the step counter to 0.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when a cascade exceeds the max steps quota.
//
// The offending event is dropped, and so is every later event of the same
// cascade still in the queue.
type StepsExceededError struct {
	Root  string // The root event of the cascade
	Steps int    // Number of steps taken
	Limit int    // Maximum allowed steps
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("cascade %s exceeded max steps quota: %d steps > %d limit",
		e.Root, e.Steps, e.Limit)
}

// RuntimeError returns the error code for matching.
func (e *StepsExceededError) RuntimeError() RuntimeErrorCode {
	return ErrCodeQuotaExceeded
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}

// cascades tracks the live cascades of the engine: how many of their events
// are still queued, and their quota. A cascade is forgotten once its last
// queued event has been processed.
//
// Only the Run loop and Post touch it, always under the engine mutex.
type cascades struct {
	maxSteps int
	pending  map[string]int
	quotas   map[string]*QuotaEnforcer
	dead     map[string]bool // cascades that blew their quota
}

func newCascades(maxSteps int) *cascades {
	return &cascades{
		maxSteps: maxSteps,
		pending:  make(map[string]int),
		quotas:   make(map[string]*QuotaEnforcer),
		dead:     make(map[string]bool),
	}
}

// enqueued records one more queued event for root.
func (c *cascades) enqueued(root string) {
	c.pending[root]++
}

// check charges one step to root's quota.
func (c *cascades) check(root string) error {
	if c.dead[root] {
		return &StepsExceededError{Root: root, Steps: c.maxSteps + 1, Limit: c.maxSteps}
	}
	q, ok := c.quotas[root]
	if !ok {
		q = NewQuotaEnforcer(c.maxSteps)
		c.quotas[root] = q
	}
	if err := q.Check(root); err != nil {
		c.dead[root] = true
		return err
	}
	return nil
}

// done records that one queued event for root has been processed. It
// reports whether the cascade is complete.
func (c *cascades) done(root string) bool {
	c.pending[root]--
	if c.pending[root] > 0 {
		return false
	}
	delete(c.pending, root)
	delete(c.quotas, root)
	delete(c.dead, root)
	return true
}

// live returns the number of cascades with queued events.
func (c *cascades) live() int {
	return len(c.pending)
}
