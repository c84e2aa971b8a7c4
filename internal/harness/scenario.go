package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: a rule set (as CUE spec
// files), an initial working memory, a firing count, and assertions against
// the resulting firing trace and final fact state.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists paths to CUE rule-set files to compile and load.
	// Paths are relative to the scenario file location.
	Specs []string `yaml:"specs"`

	// Facts seeds initial working memory before firing.
	Facts []FactSpec `yaml:"facts"`

	// Fire is the number of FireAllRules calls to make. Defaults to 1 when
	// omitted or zero; scenarios encoding repeated batches of insertion +
	// firing (rare, since one FireAllRules call already runs to exhaustion)
	// set it explicitly.
	Fire int `yaml:"fire,omitempty"`

	// Assertions validate the firing trace and final fact state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// FactSpec seeds one fact in working memory before the scenario fires.
type FactSpec struct {
	// Type is the declared fact type name (must match a factType in Specs).
	Type string `yaml:"type"`

	// As optionally names this fact so assertions (final_state) can refer
	// back to it after firing. Unaliased facts can still appear in
	// trace_contains/trace_order/trace_count assertions, which key on rule
	// name rather than fact identity.
	As string `yaml:"as,omitempty"`

	// Fields are the fact's initial field values.
	Fields map[string]interface{} `yaml:"fields"`
}

// Assertion validates the firing trace or final fact state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a rule fired at least once
	// - "trace_order": rules fired in the given relative order
	// - "trace_count": a rule fired exactly Count times
	// - "final_state": an aliased fact's fields match Expect after firing
	Type string `yaml:"type"`

	// Rule is the rule name checked by trace_contains/trace_count.
	Rule string `yaml:"rule,omitempty"`

	// Rules is the expected relative firing order, used by trace_order.
	Rules []string `yaml:"rules,omitempty"`

	// Count is the expected number of firings, used by trace_count.
	Count int `yaml:"count,omitempty"`

	// Fact is the alias (FactSpec.As) of the fact whose fields are checked
	// by final_state.
	Fact string `yaml:"fact,omitempty"`

	// Expect contains expected field values, used by final_state. Subset
	// match - only the named fields are checked.
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file, resolving
// spec paths relative to basePath rather than the scenario file's own
// directory. Tests that load scenarios from a fixed testdata root but want
// specs resolved against the project root use this.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, specPath := range scenario.Specs {
		if filepath.IsAbs(specPath) {
			continue
		}
		if basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		} else {
			scenario.Specs[i] = filepath.Join(filepath.Dir(path), specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
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
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	for i, f := range s.Facts {
		if f.Type == "" {
			return fmt.Errorf("facts[%d]: type is required", i)
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
	case AssertTraceContains:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Rules) == 0 {
			return fmt.Errorf("assertions[%d]: rules list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Fact == "" {
			return fmt.Errorf("assertions[%d]: fact is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
