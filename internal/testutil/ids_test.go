package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/fsmnet/internal/engine"
)

var _ engine.IDGenerator = (*SequentialGenerator)(nil)

func TestSequentialGenerator_Sequence(t *testing.T) {
	gen := NewSequentialGenerator("light")

	assert.Equal(t, "light-1", gen.Generate())
	assert.Equal(t, "light-2", gen.Generate())
	assert.Equal(t, "light-3", gen.Generate())
}

func TestSequentialGenerator_EmptyPrefixDefault(t *testing.T) {
	gen := NewSequentialGenerator("")

	assert.Equal(t, "inst-1", gen.Generate())
}

func TestSequentialGenerator_Reset(t *testing.T) {
	gen := NewSequentialGenerator("d")
	gen.Generate()
	gen.Generate()

	gen.Reset()
	assert.Equal(t, "d-1", gen.Generate())
}

func TestSequentialGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequentialGenerator("t")

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000, "every ID is unique")
}
