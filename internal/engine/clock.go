package engine

import "sync/atomic"

// Sequencer hands out the seq numbers that order events, transitions and
// snapshots. Next is strictly increasing; AdvanceTo never moves backwards.
type Sequencer interface {
	Next() int64
	Current() int64
	AdvanceTo(seq int64)
}

// Clock is the default Sequencer, a lock-free logical counter. Wall time
// never orders anything in a log. The zero Clock is ready to use and its
// first Next returns 1.
//
// Post and Spawn stamp from any goroutine while the Run loop stamps what
// it emits and fires.
type Clock struct {
	seq atomic.Int64
}

func NewClock() *Clock {
	return new(Clock)
}

func (c *Clock) Next() int64 { return c.seq.Add(1) }

func (c *Clock) Current() int64 { return c.seq.Load() }

// AdvanceTo raises the clock to seq, so the next stamp follows the last
// one found in a restored log.
func (c *Clock) AdvanceTo(seq int64) {
	for cur := c.seq.Load(); cur < seq; cur = c.seq.Load() {
		if c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
