package harness

import (
	"context"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/nysm/internal/compiler"
	"github.com/roach88/nysm/internal/engine"
	"github.com/roach88/nysm/internal/host"
	"github.com/roach88/nysm/internal/ir"
)

// Run compiles a scenario's rule set, seeds its initial facts into a fresh
// host.Mock, fires the engine the requested number of times, and evaluates
// the scenario's assertions against the resulting trace and final fact
// state. Unlike an earlier version of this harness, every step genuinely
// drives engine.Engine.FireAllRules — nothing here manufactures a trace or
// a result from the scenario's own expectations.
func Run(scenario *Scenario) (*Result, error) {
	ruleSet, err := compileRuleSet(scenario.Specs)
	if err != nil {
		return nil, fmt.Errorf("harness: compile rule set: %w", err)
	}

	mockHost := host.NewMock(false)
	eng, err := engine.New(*ruleSet, mockHost, engine.WithGenerator(engine.NewFixedGenerator(scenario.Name)))
	if err != nil {
		return nil, fmt.Errorf("harness: build engine: %w", err)
	}

	aliases := make(map[string]ir.FactRef, len(scenario.Facts))
	for i, f := range scenario.Facts {
		fields, err := convertFieldsToIR(f.Fields)
		if err != nil {
			return nil, fmt.Errorf("harness: facts[%d]: %w", i, err)
		}
		ref := mockHost.Seed(f.Type, fields)
		if _, err := eng.InsertFact(f.Type, ref); err != nil {
			return nil, fmt.Errorf("harness: facts[%d]: insert: %w", i, err)
		}
		if f.As != "" {
			aliases[f.As] = ref
		}
	}

	fireCount := scenario.Fire
	if fireCount == 0 {
		fireCount = 1
	}

	result := NewResult()
	ctx := context.Background()
	for i := 0; i < fireCount; i++ {
		trace, err := eng.FireAllRules(ctx)
		if trace != nil {
			for _, firing := range trace.Firings {
				result.AddFiring(firing.RuleName, firing.Handles)
			}
		}
		if err != nil {
			result.AddError(fmt.Sprintf("fire[%d]: %v", i, err))
			break
		}
	}

	actx := &AssertionContext{Host: mockHost, Aliases: aliases}
	for _, err := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(err)
	}

	return result, nil
}

// compileRuleSet reads and unifies every CUE file named in specs into one
// cue.Value and hands it to compiler.CompileRuleSet, exactly the path the
// CLI's `compile` command takes for a single spec directory (here the
// scenario names its files explicitly rather than scanning a directory, so
// a conformance fixture can mix rule files across directories).
func compileRuleSet(specs []string) (*ir.RuleSet, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no spec files given")
	}

	ctx := cuecontext.New()
	var merged cue.Value
	for _, path := range specs {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("compile %s: %w", path, err)
		}
		if !merged.Exists() {
			merged = v
		} else {
			merged = merged.Unify(v)
		}
	}
	if err := merged.Err(); err != nil {
		return nil, fmt.Errorf("unify specs: %w", err)
	}

	return compiler.CompileRuleSet(merged)
}

// convertFieldsToIR converts a YAML-parsed field map into the ir.IRValue
// map host.Mock.Seed expects. Rejects floats and nulls: the value domain
// (§3 "Data Model") is a closed set of int/bool/string/handle, the same
// restriction the compiler's literal parser enforces on constraint and RHS
// expressions.
func convertFieldsToIR(fields map[string]interface{}) (map[string]ir.IRValue, error) {
	out := make(map[string]ir.IRValue, len(fields))
	for k, v := range fields {
		irv, err := convertToIRValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = irv
	}
	return out, nil
}

// convertToIRValue converts a single YAML-decoded value (string, int, bool,
// []interface{}, map[string]interface{}) into its ir.IRValue equivalent.
func convertToIRValue(val interface{}) (ir.IRValue, error) {
	switch v := val.(type) {
	case nil:
		return nil, fmt.Errorf("null values are not supported")
	case string:
		return ir.NewIRString(v), nil
	case bool:
		return ir.NewIRBool(v), nil
	case int:
		return ir.NewIRInt(int64(v)), nil
	case int64:
		return ir.NewIRInt(v), nil
	case float64:
		if v == float64(int64(v)) {
			return ir.NewIRInt(int64(v)), nil
		}
		return nil, fmt.Errorf("floats are not supported, got %v", v)
	case []interface{}:
		elems := make([]ir.IRValue, len(v))
		for i, elem := range v {
			converted, err := convertToIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			elems[i] = converted
		}
		return ir.NewIRArray(elems...), nil
	case map[string]interface{}:
		obj := make(map[string]ir.IRValue, len(v))
		for key, elem := range v {
			converted, err := convertToIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", key, err)
			}
			obj[key] = converted
		}
		return ir.NewIRObjectFromMap(obj), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", val)
	}
}
