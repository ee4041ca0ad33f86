package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const switchCUE = `
namespace: power: {
	event: Flip: {force: bool}
	machine: Switch: {
		states: ["off", "on"]
		initial: "off"
		transitions: [{on: "Flip", from: "off", to: "on", guard: "force"}]
	}
}
`

func writeCUE(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeCUE(t, t.TempDir(), "switch.cue", switchCUE)

	res, errs := Load(path, LoadModeFailFast)
	require.Empty(t, errs)
	assert.Equal(t, 1, res.FileCount)
	require.Len(t, res.Namespaces, 1)

	ns := res.Namespaces[0]
	assert.Equal(t, "power", ns.Name)
	require.Len(t, ns.Machines, 1)
	assert.Equal(t, "Switch", ns.Machines[0].Name)
	assert.Equal(t, "force", ns.Machines[0].Transitions[0].If)
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "switch.cue", "package specs\n"+switchCUE)
	writeCUE(t, dir, "bell.cue", `package specs

namespace: bell: {
	event: Ring: {}
	machine: Bell: {states: ["quiet", "ringing"], initial: "quiet"}
}
`)

	res, errs := Load(dir, LoadModeCollectAll)
	require.Empty(t, errs)
	assert.Equal(t, 2, res.FileCount)

	var names []string
	for _, ns := range res.Namespaces {
		names = append(names, ns.Name)
	}
	assert.ElementsMatch(t, []string{"power", "bell"}, names)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string) string
		code  string
	}{
		{
			name:  "missing path",
			setup: func(t *testing.T, dir string) string { return filepath.Join(dir, "nope.cue") },
			code:  ErrCodeNotFound,
		},
		{
			name:  "empty directory",
			setup: func(t *testing.T, dir string) string { return dir },
			code:  ErrCodeNoFiles,
		},
		{
			name:  "not a cue file",
			setup: func(t *testing.T, dir string) string { return writeCUE(t, dir, "spec.json", "{}") },
			code:  ErrCodeNoFiles,
		},
		{
			name:  "syntax error",
			setup: func(t *testing.T, dir string) string { return writeCUE(t, dir, "bad.cue", "namespace: {") },
			code:  ErrCodeBuildFailed,
		},
		{
			name:  "no namespace",
			setup: func(t *testing.T, dir string) string { return writeCUE(t, dir, "other.cue", "answer: 42") },
			code:  ErrCodeNoNamespace,
		},
		{
			name: "schema error",
			setup: func(t *testing.T, dir string) string {
				return writeCUE(t, dir, "bad.cue", `namespace: n: machine: M: {initial: "a"}`)
			},
			code: ErrCodeSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setup(t, t.TempDir())
			_, errs := Load(path, LoadModeFailFast)
			require.Len(t, errs, 1)

			var loadErr *LoadError
			require.True(t, errors.As(errs[0], &loadErr), "got %T", errs[0])
			assert.Equal(t, tt.code, loadErr.Code)
		})
	}
}

func TestLoad_CollectAll(t *testing.T) {
	path := writeCUE(t, t.TempDir(), "mixed.cue", `
namespace: a: machine: M: {initial: "x"}
namespace: b: machine: M: {states: ["x"], initial: "x"}
namespace: c: {}
`)

	res, errs := Load(path, LoadModeCollectAll)
	assert.Len(t, errs, 2)
	require.Len(t, res.Namespaces, 1)
	assert.Equal(t, "b", res.Namespaces[0].Name)

	_, errs = Load(path, LoadModeFailFast)
	assert.Len(t, errs, 1)
}

func TestLoadError_Error(t *testing.T) {
	err := &LoadError{Code: ErrCodeNoFiles, Message: "no CUE files found in x"}
	assert.Equal(t, "E003: no CUE files found in x", err.Error())
}

func TestMustLoad(t *testing.T) {
	path := writeCUE(t, t.TempDir(), "switch.cue", switchCUE)
	assert.Len(t, MustLoad(path), 1)
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "nope.cue")) })
}
