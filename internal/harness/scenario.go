package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// A scenario spawns machine instances, posts a list of events, lets every
// cascade run to completion and then asserts on the fired transitions and
// the final instance states.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists paths to CUE files or directories declaring namespaces.
	// Relative paths are resolved against the scenario file's directory.
	Specs []string `yaml:"specs"`

	// MaxSteps overrides the engine's per-cascade step quota when positive.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// Instances are spawned in order before any event is posted.
	Instances []InstanceStep `yaml:"instances"`

	// Events are posted in order before the queue is drained, so priority
	// decides delivery order among them.
	Events []EventStep `yaml:"events"`

	// Assertions validate the final trace and state.
	// Supported types: final_state, var, fired_count, fired_order, runtime_error
	Assertions []Assertion `yaml:"assertions"`
}

// InstanceStep spawns one machine instance.
type InstanceStep struct {
	// ID is the instance ID. When empty a sequential ID is assigned.
	ID string `yaml:"id,omitempty"`

	// Namespace may be omitted when the specs declare a single namespace.
	Namespace string `yaml:"namespace,omitempty"`

	// Machine is the machine class to instantiate.
	Machine string `yaml:"machine"`

	// Vars override the machine's initial state variables.
	// Strings starting with ':' are read as symbols.
	Vars map[string]any `yaml:"vars,omitempty"`
}

// EventStep posts one external event.
type EventStep struct {
	// Namespace may be omitted when the specs declare a single namespace.
	Namespace string `yaml:"namespace,omitempty"`

	// Class is the event class.
	Class string `yaml:"class"`

	// Attrs are the event attributes. Strings starting with ':' are symbols.
	Attrs map[string]any `yaml:"attrs,omitempty"`

	// Priority orders delivery; higher is delivered first.
	Priority int `yaml:"priority,omitempty"`

	// ExpectError is the runtime error code Post must fail with, e.g.
	// INVALID_EVENT. Empty means the post must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_state": instance is in State
	// - "var": instance variable Name equals Value
	// - "fired_count": exactly Count transitions fired (for Instance, if set)
	// - "fired_order": Transitions fired in this relative order
	// - "runtime_error": a runtime error with Code occurred while draining
	Type string `yaml:"type"`

	// Instance is the instance ID (final_state, var, optional for fired_count).
	Instance string `yaml:"instance,omitempty"`

	// State is the expected state (final_state).
	State string `yaml:"state,omitempty"`

	// Name is the state variable name (var).
	Name string `yaml:"name,omitempty"`

	// Value is the expected variable value (var).
	Value any `yaml:"value,omitempty"`

	// Count is the expected number of firings (fired_count).
	Count int `yaml:"count,omitempty"`

	// Transitions lists firings as "instance:from->to" (fired_order).
	// Other firings may occur in between.
	Transitions []string `yaml:"transitions,omitempty"`

	// Code is the runtime error code (runtime_error).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState   = "final_state"
	AssertVar          = "var"
	AssertFiredCount   = "fired_count"
	AssertFiredOrder   = "fired_order"
	AssertRuntimeError = "runtime_error"
)

// LoadScenario reads and parses a scenario YAML file. Relative spec paths
// are resolved against the directory holding the file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve spec paths relative to base path BEFORE validation
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML without resolving or checking spec
// paths.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}

	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	ids := make(map[string]bool)
	for i, inst := range s.Instances {
		if inst.Machine == "" {
			return fmt.Errorf("instances[%d]: machine is required", i)
		}
		if inst.ID == "" {
			continue
		}
		if ids[inst.ID] {
			return fmt.Errorf("instances[%d]: duplicate id %q", i, inst.ID)
		}
		ids[inst.ID] = true
	}

	for i, ev := range s.Events {
		if ev.Class == "" {
			return fmt.Errorf("events[%d]: class is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalState:
		if a.Instance == "" {
			return fmt.Errorf("assertions[%d]: instance is required for final_state", index)
		}
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for final_state", index)
		}
	case AssertVar:
		if a.Instance == "" {
			return fmt.Errorf("assertions[%d]: instance is required for var", index)
		}
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for var", index)
		}
	case AssertFiredCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for fired_count", index)
		}
	case AssertFiredOrder:
		if len(a.Transitions) == 0 {
			return fmt.Errorf("assertions[%d]: transitions list is required for fired_order", index)
		}
	case AssertRuntimeError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for runtime_error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
