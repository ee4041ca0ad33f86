package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fsmnet/internal/compiler"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		exitCode int
		contains []string
		absent   []string
	}{
		{
			name:     "valid file",
			args:     []string{"validate", trafficSpec},
			contains: []string{"✓ All specs valid (1 namespace(s))"},
			absent:   []string{"warning"},
		},
		{
			name:     "directory with a loop",
			args:     []string{"validate", networkDir},
			contains: []string{"✓ All specs valid (2 namespace(s))", "  warning: Self-emitting event detected: Ball → Ball"},
		},
		{
			name:     "invalid spec",
			args:     []string{"validate", invalidSpec},
			exitCode: ExitFailure,
			contains: []string{
				"✗ Validation failed",
				"E103: machines[0].transitions[0]",
				`state "flying" is not declared on machine "Car"`,
				`E111`,
				"2 error(s)",
			},
		},
		{
			name:     "missing path",
			args:     []string{"validate", filepath.Join("testdata", "nope")},
			exitCode: ExitCommandError,
			contains: []string{"✗ Validation failed", "E005"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.args...)
			assert.Equal(t, tt.exitCode, GetExitCode(err), "output: %s", out)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestValidate_JSON(t *testing.T) {
	out, _, err := execute(t, "validate", networkDir, "--format", "json")
	require.NoError(t, err)

	var result ValidationResult
	resp := decode(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.ElementsMatch(t, []string{"traffic", "loop"}, result.Namespaces)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "warning", result.Warnings[0].Level)
	assert.Empty(t, result.Errors)
}

func TestValidate_JSONErrors(t *testing.T) {
	out, _, err := execute(t, "validate", invalidSpec, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ValidationResult
	resp := decode(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrUndeclaredState, resp.Error.Code)
	assert.False(t, result.Valid)

	codes := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		codes = append(codes, e.Code)
	}
	assert.ElementsMatch(t, []string{compiler.ErrUndeclaredState, compiler.ErrUndeclaredAttr}, codes)
}
