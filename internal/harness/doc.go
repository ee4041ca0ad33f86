// Package harness runs conformance scenarios against the FSM engine.
//
// A scenario names CUE spec files, spawns machine instances, posts events
// and asserts on what fired and where every instance ended up. Scenarios
// drive the real engine: guards are compiled into decision graphs, emitted
// events cascade, and every firing lands in a private in-memory store that
// the trace is read back from.
//
// # Scenario Format
//
//	name: traffic_light
//	description: "Light turns green once enough cars wait"
//	specs:
//	  - specs/traffic.cue
//	instances:
//	  - id: light
//	    machine: Light
//	  - machine: Door           # gets ID inst-1
//	    vars: { locked: true }
//	events:
//	  - class: Tick
//	    attrs: { count: 5 }
//	  - class: Tick
//	    attrs: { count: "five" }
//	    expect_error: INVALID_EVENT
//	assertions:
//	  - type: final_state
//	    instance: light
//	    state: green
//	  - type: var
//	    instance: inst-1
//	    name: locked
//	    value: true
//	  - type: fired_count
//	    count: 1
//	  - type: fired_order
//	    transitions: ["light:red->green"]
//
// Namespace may be left out of instances and events when the specs declare
// a single namespace. Strings starting with ':' are symbols.
//
// # Assertion Types
//
//   - final_state: the instance ends in the given state
//   - var: a state variable of the instance equals the value
//   - fired_count: exactly N transitions fired, for one instance if given
//   - fired_order: the listed firings happened in that relative order
//   - runtime_error: draining raised an error with the given code
//
// Runtime errors raised while draining fail the scenario unless a
// runtime_error assertion expects them.
//
// # Deterministic Testing
//
// The harness uses a deterministic logical clock (testutil.Clock)
// and fixed instance IDs, so traces are byte-identical across runs and can
// be compared against golden files with RunWithGolden. AssertGraphGolden
// does the same for a namespace's compiled decision graph.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/traffic.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
