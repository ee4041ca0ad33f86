package testutil

import "sync"

// Clock is an engine.Sequencer for tests. It counts from zero like
// engine.Clock, can be reset between runs, and remembers every forward
// jump AdvanceTo made so a test can see where a restore resumed.
type Clock struct {
	mu    sync.Mutex
	seq   int64
	jumps []int64
}

// NewClock returns a clock at 0; the first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

func (c *Clock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// AdvanceTo moves the clock to seq if it is behind. Calls that would move
// it backwards are ignored and not recorded.
func (c *Clock) AdvanceTo(seq int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq <= c.seq {
		return
	}
	c.seq = seq
	c.jumps = append(c.jumps, seq)
}

// Jumps returns the targets of the AdvanceTo calls that moved the clock.
func (c *Clock) Jumps() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.jumps...)
}

// Reset puts the clock back at 0 and forgets its jumps.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
	c.jumps = nil
}
