package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fsmnet/internal/compiler"
	"github.com/roach88/fsmnet/internal/ir"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestCompile_Text(t *testing.T) {
	out, _, err := execute(t, "compile", trafficSpec)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 1 namespace(s)")
	assert.Contains(t, out, "Namespace traffic\n")
	assert.Contains(t, out, "  machines:      2\n")
	assert.Contains(t, out, "  registrations: 3\n")
	assert.Contains(t, out, "  conditions:    6\n")
	assert.Contains(t, out, "  nodes:         4\n")
	assert.Contains(t, out, "3 clause(s), 6 ordering(s) exhaustive")

	golden, err := os.ReadFile(filepath.Join("testdata", "golden", "traffic.golden"))
	require.NoError(t, err)
	assert.Contains(t, out, string(golden), "the debug graph follows the summary")
}

func TestCompile_Directory(t *testing.T) {
	out, _, err := execute(t, "compile", networkDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 2 namespace(s)")
	assert.Contains(t, out, "Namespace traffic\n")
	assert.Contains(t, out, "Namespace loop\n")
	assert.Contains(t, out, "warning: Self-emitting event detected: Ball → Ball")
	assert.Contains(t, out, "# namespace loop\n")
}

func TestCompile_NamespaceFilter(t *testing.T) {
	out, _, err := execute(t, "compile", networkDir, "--namespace", "loop")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled 1 namespace(s)")
	assert.NotContains(t, out, "traffic")

	out, _, err = execute(t, "compile", networkDir, "-n", "harbor")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `namespace "harbor" is not declared`)
}

func TestCompile_OutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphs.txt")

	out, _, err := execute(t, "compile", trafficSpec, "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote graphs to "+path)
	assert.NotContains(t, out, "start: 0", "the graph goes to the file only")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	newGoldie(t).Assert(t, "traffic", data)
}

func TestCompile_Dot(t *testing.T) {
	out, _, err := execute(t, "compile", trafficSpec, "--dot")
	require.NoError(t, err)
	assert.Contains(t, out, "digraph G {")
	assert.Contains(t, out, "Door:closed/slam")
	assert.Contains(t, out, "#2 3 &lt; Tick.count")
	assert.NotContains(t, out, "# namespace traffic")
}

func TestCompile_JSON(t *testing.T) {
	out, _, err := execute(t, "compile", trafficSpec, "--format", "json")
	require.NoError(t, err)

	var result CompilationResult
	resp := decode(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, result.Namespaces, 1)

	spec := compiler.MustLoad(trafficSpec)[0]
	hash, err := ir.NamespaceHash(compiler.Registrations(&spec))
	require.NoError(t, err)

	s := result.Namespaces[0]
	assert.Equal(t, "traffic", s.Name)
	assert.Equal(t, hash, s.Hash)
	assert.Equal(t, 1, s.Events)
	assert.Equal(t, 3, s.Stats.Clauses)
	assert.True(t, s.Stats.Exhaustive)
	assert.Equal(t, 6, s.Stats.Orderings)
	assert.Empty(t, s.Cycles)

	golden, err := os.ReadFile(filepath.Join("testdata", "golden", "traffic.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(golden), s.Graph)
}

func TestCompile_SearchFlags(t *testing.T) {
	out, _, err := execute(t, "compile", trafficSpec, "--format", "json", "--exhaustive-limit", "2", "--samples", "5")
	require.NoError(t, err)

	var result CompilationResult
	decode(t, out, &result)
	require.Len(t, result.Namespaces, 1)
	assert.False(t, result.Namespaces[0].Stats.Exhaustive)
	assert.Equal(t, 5, result.Namespaces[0].Stats.Orderings)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		exitCode int
		contains []string
	}{
		{
			name:     "missing path",
			args:     []string{"compile", filepath.Join("testdata", "nope.cue")},
			exitCode: ExitCommandError,
			contains: []string{"✗ Compilation failed", "E005"},
		},
		{
			name:     "invalid spec",
			args:     []string{"compile", invalidSpec},
			exitCode: ExitFailure,
			contains: []string{"✗ Compilation failed", "E103", `state "flying"`, "E111", `attribute "fuel"`, "2 error(s)"},
		},
		{
			name:     "invalid spec json",
			args:     []string{"compile", invalidSpec, "--format", "json"},
			exitCode: ExitFailure,
			contains: []string{`"status": "error"`, `"code": "E103"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
		})
	}
}
