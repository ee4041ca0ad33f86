package harness

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios. They double
// as reference examples of the scenario format.
func TestScenarios(t *testing.T) {
	paths, err := FindScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, result, err := RunFile(t.Context(), path)
			require.NoError(t, err)
			assert.NotEmpty(t, scenario.Description)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt", "nested/c.YAML"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("name: x\n"), 0644))
	}

	paths, err := FindScenarios(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "nested", "c.YAML"),
	}, paths)
}

func TestResolveScenarios(t *testing.T) {
	paths, err := ResolveScenarios("testdata", "scenarios/rally.yaml", "scenarios")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "scenarios", "rally.yaml"),
		filepath.Join("testdata", "scenarios", "loop.yaml"),
		filepath.Join("testdata", "scenarios", "rally.yaml"),
		filepath.Join("testdata", "scenarios", "traffic_light.yaml"),
	}, paths)
}

func TestResolveScenarios_NotFound(t *testing.T) {
	_, err := ResolveScenarios("testdata", "scenarios/missing.yaml")
	require.Error(t, err)

	var notFound *ScenarioNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "scenarios/missing.yaml", notFound.ScenarioPath)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "missing.yaml"), notFound.ResolvedPath)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestRunSuite(t *testing.T) {
	dir := t.TempDir()
	specDir, err := filepath.Abs(filepath.Join("testdata", "specs"))
	require.NoError(t, err)

	failing := filepath.Join(dir, "failing.yaml")
	require.NoError(t, os.WriteFile(failing, []byte(`
name: failing
description: "expects the wrong state"
specs: [`+filepath.Join(specDir, "rally.cue")+`]
instances: [{id: ping, machine: Ping}]
events: [{class: Serve}]
assertions: [{type: final_state, instance: ping, state: idle}]
`), 0644))

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("name: broken\n"), 0644))

	passing := filepath.Join("testdata", "scenarios", "rally.yaml")

	result := RunSuite(t.Context(), []string{passing, failing, broken})
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, []ScenarioOutcome{
		{Name: "rally", ScenarioPath: passing, Pass: true},
		{Name: "failing", ScenarioPath: failing},
		{ScenarioPath: broken},
	}, result.Outcomes)
	require.Len(t, result.Failures, 2)

	assert.Equal(t, "failing", result.Failures[0].Name)
	assert.Equal(t, failing, result.Failures[0].ScenarioPath)
	require.Len(t, result.Failures[0].Errors, 1)
	assert.Contains(t, result.Failures[0].Errors[0], "final_state")

	assert.Empty(t, result.Failures[1].Name, "a scenario that does not load has no name")
	assert.Contains(t, result.Failures[1].Errors[0], "invalid scenario")
}
