package testutil

import (
	"fmt"
	"sync"
)

// SequentialGenerator generates IDs of the form "<prefix>-<n>", n from 1.
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with a fresh SequentialGenerator produces byte-identical
// transition logs.
//
// Unlike engine.FixedGenerator, which panics once its list runs out, this
// generator never runs out.
//
// Thread-safety: SequentialGenerator is safe for concurrent use.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialGenerator creates a new sequential ID generator.
//
// If prefix is empty, IDs use "inst".
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "inst"
	}
	return &SequentialGenerator{prefix: prefix}
}

// Generate returns the next ID.
//
// Implements engine.IDGenerator interface.
func (g *SequentialGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts the sequence at 1.
func (g *SequentialGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
