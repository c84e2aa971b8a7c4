// Package harness provides conformance testing for rule sets: it loads a
// CUE rule-set spec, executes a scenario (an initial working memory plus a
// firing count), and validates the resulting firing trace and final fact
// state against the scenario's assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: age-pension-single-person
//	description: "A single eligible person is paid once and marked ineligible"
//	specs:
//	  - age_pension.cue
//	facts:
//	  - type: Budget
//	    as: budget
//	    fields: { amount: 100 }
//	  - type: Person
//	    as: person
//	    fields: { age: 70, eligible: true, addr: "a1" }
//	fire: 1
//	assertions:
//	  - type: trace_contains
//	    rule: pay-eligible
//	  - type: trace_count
//	    rule: pay-eligible
//	    count: 1
//	  - type: final_state
//	    fact: budget
//	    expect: { amount: 90 }
//
// # Assertion Types
//
//   - trace_contains: a named rule fired at least once
//   - trace_order: named rules' first firings appear in the given relative order
//   - trace_count: a named rule fired exactly N times
//   - final_state: an aliased fact's fields match the expected subset after firing
//
// # Deterministic Execution
//
// A scenario's facts are inserted in the order written, so handle
// allocation order is a pure function of the YAML — no wall-clock or
// random seed ever enters a scenario run. Running the same scenario twice
// produces byte-identical firing traces; RunWithGolden takes advantage of
// this for snapshot comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/age_pension_single_person.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil || !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
