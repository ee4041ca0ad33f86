package harness

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ScenarioNotFoundError is returned when a named scenario file or
// directory doesn't exist.
type ScenarioNotFoundError struct {
	ScenarioPath string
	ResolvedPath string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario %q does not exist (resolved to: %s)", e.ScenarioPath, e.ResolvedPath)
}

// SuiteResult summarizes a batch of scenario runs.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Outcomes []ScenarioOutcome `json:"outcomes"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioOutcome is the verdict on one scenario file, in run order.
type ScenarioOutcome struct {
	Name         string `json:"name,omitempty"`
	ScenarioPath string `json:"scenario_path"`
	Pass         bool   `json:"pass"`
}

// ScenarioFailure is one failed scenario of a suite.
type ScenarioFailure struct {
	Name         string   `json:"name,omitempty"`
	ScenarioPath string   `json:"scenario_path"`
	Errors       []string `json:"errors"`
}

// ResolveScenarios expands paths into scenario files. A directory yields
// every .yaml and .yml file beneath it in lexical order; a file is used as
// is. Relative paths are resolved against baseDir.
func ResolveScenarios(baseDir string, paths ...string) ([]string, error) {
	var out []string
	for _, p := range paths {
		resolved := p
		if !filepath.IsAbs(resolved) && baseDir != "" {
			resolved = filepath.Join(baseDir, resolved)
		}

		info, err := os.Stat(resolved)
		if os.IsNotExist(err) {
			return nil, &ScenarioNotFoundError{ScenarioPath: p, ResolvedPath: resolved}
		}
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", resolved, err)
		}
		if !info.IsDir() {
			out = append(out, resolved)
			continue
		}

		found, err := FindScenarios(resolved)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

// FindScenarios walks dir and returns every scenario file beneath it.
func FindScenarios(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, nil
}

// RunSuite loads and runs every scenario file in order and collects the
// outcome. A scenario that cannot be loaded or executed counts as failed;
// the suite keeps going.
func RunSuite(ctx context.Context, paths []string, opts ...Option) *SuiteResult {
	result := &SuiteResult{Outcomes: []ScenarioOutcome{}}

	for _, path := range paths {
		result.Total++

		scenario, runResult, err := RunFile(ctx, path, opts...)
		outcome := ScenarioOutcome{ScenarioPath: path}
		if scenario != nil {
			outcome.Name = scenario.Name
		}

		var errs []string
		switch {
		case err != nil:
			errs = []string{err.Error()}
		case !runResult.Pass:
			errs = runResult.Errors
		default:
			outcome.Pass = true
		}
		result.Outcomes = append(result.Outcomes, outcome)

		if outcome.Pass {
			result.Passed++
			continue
		}
		result.Failed++
		result.Failures = append(result.Failures, ScenarioFailure{
			Name:         outcome.Name,
			ScenarioPath: path,
			Errors:       errs,
		})
	}

	return result
}
