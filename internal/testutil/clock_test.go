package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/fsmnet/internal/engine"
)

var _ engine.Sequencer = (*Clock)(nil)

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())

	c.AdvanceTo(10)
	c.AdvanceTo(4)
	c.AdvanceTo(10)
	assert.Equal(t, int64(11), c.Next())
	assert.Equal(t, []int64{10}, c.Jumps(), "only forward moves are recorded")

	c.Reset()
	assert.Equal(t, int64(0), c.Current())
	assert.Empty(t, c.Jumps())
	assert.Equal(t, int64(1), c.Next())
}

func TestClock_SameSequenceTwice(t *testing.T) {
	a, b := NewClock(), NewClock()
	for range 50 {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestClock_Concurrent(t *testing.T) {
	c := NewClock()
	const workers, calls = 20, 50

	seen := make(chan int64, workers*calls)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range calls {
				seen <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[int64]bool)
	for v := range seen {
		assert.False(t, unique[v], "duplicate seq %d", v)
		unique[v] = true
	}
	assert.Len(t, unique, workers*calls)
	assert.Equal(t, int64(workers*calls), c.Current())
}
