package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), scenario, opts...)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an already computed result's trace against a
// golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()
	newGoldie(t).Assert(t, scenarioName, []byte(FormatTrace(scenarioName, result.Trace)))
}

// AssertGraphGolden compares the compiled decision graph of one namespace
// against testdata/golden/{scenarioName}.{namespace}.golden.
func AssertGraphGolden(t *testing.T, scenarioName, namespace string, result *Result) {
	t.Helper()

	graph, ok := result.Graphs[namespace]
	if !ok {
		t.Fatalf("no compiled graph for namespace %q", namespace)
	}
	newGoldie(t).Assert(t, fmt.Sprintf("%s.%s", scenarioName, namespace), []byte(graph))
}
