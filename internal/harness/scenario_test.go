package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestSpec creates a minimal CUE spec file for testing.
func createTestSpec(t *testing.T, dir, name string) string {
	t.Helper()
	specsDir := filepath.Join(dir, "specs")
	require.NoError(t, os.MkdirAll(specsDir, 0755))
	specPath := filepath.Join(specsDir, name)
	require.NoError(t, os.WriteFile(specPath, []byte(`namespace: n: machine: M: {states: ["a"], initial: "a"}`), 0644))
	return specPath
}

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	specPath := createTestSpec(t, dir, "switch.cue")

	path := writeScenario(t, dir, `
name: test_scenario
description: "Test scenario for validation"
specs:
  - specs/switch.cue
max_steps: 10
instances:
  - id: s1
    namespace: n
    machine: M
    vars: { level: 3, mode: ":eco" }
events:
  - namespace: n
    class: Flip
    attrs: { force: true }
    priority: 2
  - class: Flip
    expect_error: INVALID_EVENT
assertions:
  - type: final_state
    instance: s1
    state: a
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, []string{specPath}, scenario.Specs, "relative spec paths resolve against the scenario file")
	assert.Equal(t, 10, scenario.MaxSteps)
	require.Len(t, scenario.Instances, 1)
	assert.Equal(t, InstanceStep{ID: "s1", Namespace: "n", Machine: "M", Vars: map[string]any{"level": 3, "mode": ":eco"}}, scenario.Instances[0])
	require.Len(t, scenario.Events, 2)
	assert.Equal(t, EventStep{Namespace: "n", Class: "Flip", Attrs: map[string]any{"force": true}, Priority: 2}, scenario.Events[0])
	assert.Equal(t, "INVALID_EVENT", scenario.Events[1].ExpectError)
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	dir := t.TempDir()
	specPath := createTestSpec(t, dir, "switch.cue")
	scenarioDir := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(scenarioDir, 0755))

	path := writeScenario(t, scenarioDir, `
name: based
description: "spec paths relative to another directory"
specs: [specs/switch.cue]
events: [{class: Flip}]
assertions: [{type: fired_count, count: 0}]
`)

	_, err := LoadScenario(path)
	require.Error(t, err, "spec is not next to the scenario")
	assert.Contains(t, err.Error(), "spec file not found")

	scenario, err := LoadScenarioWithBasePath(path, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{specPath}, scenario.Specs)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_InvalidYAML(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "name: [unclosed\n")
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, t.TempDir(), `
name: typo
description: "misspelled key"
assertion:
  - type: fired_count
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertion")
	assert.Contains(t, err.Error(), "not found")
}

func TestParseScenario_KeepsPathsAsWritten(t *testing.T) {
	scenario, err := ParseScenario([]byte("name: x\nspecs: [a.cue]\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.cue"}, scenario.Specs)
}

func TestValidateScenario(t *testing.T) {
	dir := t.TempDir()
	specPath := createTestSpec(t, dir, "switch.cue")

	valid := func() *Scenario {
		return &Scenario{
			Name:        "ok",
			Description: "valid",
			Specs:       []string{specPath},
			Instances:   []InstanceStep{{ID: "s1", Machine: "M"}},
			Events:      []EventStep{{Class: "Flip"}},
			Assertions:  []Assertion{{Type: AssertFiredCount, Count: 0}},
		}
	}

	tests := []struct {
		name       string
		mutate     func(*Scenario)
		errContain string
	}{
		{name: "valid", mutate: func(*Scenario) {}},
		{name: "missing name", mutate: func(s *Scenario) { s.Name = "" }, errContain: "name is required"},
		{name: "missing description", mutate: func(s *Scenario) { s.Description = "" }, errContain: "description is required"},
		{name: "no specs", mutate: func(s *Scenario) { s.Specs = nil }, errContain: "specs list is required"},
		{name: "no events", mutate: func(s *Scenario) { s.Events = nil }, errContain: "events list is required"},
		{name: "no assertions", mutate: func(s *Scenario) { s.Assertions = nil }, errContain: "assertions list is required"},
		{name: "negative max steps", mutate: func(s *Scenario) { s.MaxSteps = -1 }, errContain: "max_steps"},
		{
			name:       "spec not found",
			mutate:     func(s *Scenario) { s.Specs = []string{filepath.Join(dir, "missing.cue")} },
			errContain: "spec file not found",
		},
		{
			name:       "instance without machine",
			mutate:     func(s *Scenario) { s.Instances[0].Machine = "" },
			errContain: "instances[0]: machine is required",
		},
		{
			name: "duplicate instance id",
			mutate: func(s *Scenario) {
				s.Instances = append(s.Instances, InstanceStep{ID: "s1", Machine: "M"})
			},
			errContain: `instances[1]: duplicate id "s1"`,
		},
		{
			name:       "event without class",
			mutate:     func(s *Scenario) { s.Events[0].Class = "" },
			errContain: "events[0]: class is required",
		},
		{
			name:       "bad assertion",
			mutate:     func(s *Scenario) { s.Assertions[0].Type = "trace_contains" },
			errContain: `unknown assertion type "trace_contains"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := validateScenario(s)
			if tt.errContain == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContain)
		})
	}
}

func TestValidateAssertion(t *testing.T) {
	tests := []struct {
		name       string
		assertion  Assertion
		errContain string
	}{
		{name: "final_state", assertion: Assertion{Type: AssertFinalState, Instance: "a", State: "on"}},
		{name: "final_state without instance", assertion: Assertion{Type: AssertFinalState, State: "on"}, errContain: "instance is required"},
		{name: "final_state without state", assertion: Assertion{Type: AssertFinalState, Instance: "a"}, errContain: "state is required"},
		{name: "var", assertion: Assertion{Type: AssertVar, Instance: "a", Name: "n", Value: 1}},
		{name: "var without instance", assertion: Assertion{Type: AssertVar, Name: "n"}, errContain: "instance is required"},
		{name: "var without name", assertion: Assertion{Type: AssertVar, Instance: "a"}, errContain: "name is required"},
		{name: "fired_count zero", assertion: Assertion{Type: AssertFiredCount}},
		{name: "fired_count negative", assertion: Assertion{Type: AssertFiredCount, Count: -2}, errContain: "non-negative"},
		{name: "fired_order", assertion: Assertion{Type: AssertFiredOrder, Transitions: []string{"a:x->y"}}},
		{name: "fired_order empty", assertion: Assertion{Type: AssertFiredOrder}, errContain: "transitions list is required"},
		{name: "runtime_error", assertion: Assertion{Type: AssertRuntimeError, Code: "QUOTA_EXCEEDED"}},
		{name: "runtime_error without code", assertion: Assertion{Type: AssertRuntimeError}, errContain: "code is required"},
		{name: "missing type", assertion: Assertion{}, errContain: "type is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAssertion(3, &tt.assertion)
			if tt.errContain == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "assertions[3]")
			assert.Contains(t, err.Error(), tt.errContain)
		})
	}
}
