package graph

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fsmnet/internal/intset"
)

func abcEntries() []Entry {
	return []Entry{
		{intset.Of(1, 2, 7, 8), tr("A")},
		{intset.Of(1, 2, 3, 4, 5, 6), tr("B")},
		{intset.Of(3, 4, 5, 6), tr("C")},
	}
}

func TestBuildFindsMinimum(t *testing.T) {
	g, stats := Build(abcEntries())

	expected, err := ParseDebug("start: 0, 2\n0: {3, 4, 5, 6} [C] -> 1\n1: {1, 2} [B] -> end\n2: {1, 2, 7, 8} [A] -> end\n")
	require.NoError(t, err)

	assert.True(t, Equivalent(expected, g), "got:\n%s", g)
	assert.Equal(t, 10, g.CountComplexity())
	assert.Equal(t, 10, stats.Complexity)
	assert.Less(t, stats.Complexity, 14, "unmerged clauses hold 14 conditions")
	assert.True(t, stats.Exhaustive)
	assert.Equal(t, 3, stats.Clauses)
	assert.Equal(t, 6, stats.Orderings)
}

func TestBuildNoWorseThanUnmerged(t *testing.T) {
	entries := []Entry{
		{intset.Of(1, 2), tr("A")},
		{intset.Of(2, 3), tr("B")},
		{intset.Of(1, 2, 3), tr("C")},
		{intset.Of(3, 4), tr("D")},
		{intset.Of(5), tr("E")},
	}
	unmerged := 0
	for _, e := range entries {
		unmerged += e.Clause.Len()
	}
	g, stats := Build(entries)
	assert.LessOrEqual(t, stats.Complexity, unmerged)
	assert.Equal(t, 5, stats.Clauses)
	assert.Equal(t, 120, stats.Orderings)
	assert.NoError(t, g.Validate())
}

func TestBuildSimpleShapes(t *testing.T) {
	tests := []struct {
		name     string
		entries  []Entry
		expected string
	}{
		{
			name:     "subset",
			entries:  []Entry{{intset.Of(1, 2, 3), tr("A")}, {intset.Of(1, 2), tr("B")}},
			expected: "start: 0\n0: {1, 2} [B] -> 1\n1: {3} [A] -> end\n",
		},
		{
			name:     "disjoint",
			entries:  []Entry{{intset.Of(3), tr("B")}, {intset.Of(1), tr("A")}},
			expected: "start: 0, 1\n0: {1} [A] -> end\n1: {3} [B] -> end\n",
		},
		{
			name: "same clause",
			entries: []Entry{
				{intset.Of(1, 2), Transition{Machine: "Light", Next: "red"}},
				{intset.Of(2, 1), Transition{Machine: "Door", Next: "open"}},
			},
			expected: "start: 0\n0: {1, 2} [Door:open, Light:red] -> end\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := Build(tt.entries)
			assert.Equal(t, tt.expected, g.String())
		})
	}
}

func TestBuildGroupsClauses(t *testing.T) {
	_, stats := Build([]Entry{
		{intset.Of(1, 2), tr("A")},
		{intset.Of(2, 1), tr("B")},
		{intset.Of(3), tr("C")},
	})
	assert.Equal(t, 2, stats.Clauses)
	assert.Equal(t, 2, stats.Orderings)
}

func TestBuildEmpty(t *testing.T) {
	g, stats := Build(nil)
	assert.Empty(t, g.Nodes)
	assert.Equal(t, SearchStats{}, stats)
}

func TestBuildMemoizesEquivalentPrefixes(t *testing.T) {
	// AB and BA build equivalent graphs, so adding C to the second is
	// answered from the memo. Likewise for AC/CA and BC/CB.
	_, stats := Build([]Entry{
		{intset.Of(1), tr("A")},
		{intset.Of(2), tr("B")},
		{intset.Of(3), tr("C")},
	})
	assert.Equal(t, 6, stats.Orderings)
	assert.Equal(t, 3, stats.MemoHits)
	assert.Equal(t, 12, stats.Merges)
}

func TestBuildSampling(t *testing.T) {
	entries := abcEntries()

	g1, stats := Build(entries, WithExhaustiveLimit(1), WithSamples(10), WithSeed(7))
	assert.False(t, stats.Exhaustive)
	assert.Equal(t, 10, stats.Orderings)
	assert.GreaterOrEqual(t, stats.Complexity, 10)
	assert.LessOrEqual(t, stats.Complexity, 14)
	assert.NoError(t, g1.Validate())

	g2, again := Build(entries, WithExhaustiveLimit(1), WithSamples(10), WithSeed(7))
	assert.Equal(t, g1.String(), g2.String(), "the same seed picks the same graph")
	assert.Equal(t, stats, again)
}

func TestBuildLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	Build(abcEntries(), WithLogger(logger))
	assert.Contains(t, buf.String(), "decision graph built")
	assert.Contains(t, buf.String(), "complexity=10")
}
