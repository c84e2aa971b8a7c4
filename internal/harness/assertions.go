package harness

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/nysm/internal/host"
	"github.com/roach88/nysm/internal/ir"
)

// AssertionError is returned when an assertion fails. It carries enough
// context (expected vs. actual, full trace) to debug the failure without
// re-running the scenario.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s\n", e.Actual)
	fmt.Fprintf(&buf, "\nfull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %v\n", event.Seq, event.RuleName, event.Handles)
	}
	return buf.String()
}

// AssertionContext carries the state final_state assertions need to look up
// an aliased fact's current field values.
type AssertionContext struct {
	Host    *host.Mock
	Aliases map[string]ir.FactRef
}

// assertTraceContains checks that the named rule fired at least once.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.RuleName == assertion.Rule {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("rule %q to fire", assertion.Rule),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the named rules' first firings appear in the
// given relative order. Intervening firings of other rules are permitted.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		for _, want := range assertion.Rules {
			if event.RuleName == want {
				if _, seen := positions[want]; !seen {
					positions[want] = i + 1
				}
			}
		}
	}

	for _, rule := range assertion.Rules {
		if _, ok := positions[rule]; !ok {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all rules present: %v", assertion.Rules),
				Actual:   fmt.Sprintf("missing rule: %s", rule),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Rules); i++ {
		prev, curr := assertion.Rules[i-1], assertion.Rules[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("rules in order: %v", assertion.Rules),
				Actual: fmt.Sprintf("%s (pos %d) should fire before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks that the named rule fired exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.RuleName == assertion.Rule {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d firings of %s", assertion.Count, assertion.Rule),
			Actual:   fmt.Sprintf("%d firings", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks that the aliased fact's current fields (read
// straight from the host, the fact's single source of truth) match the
// expected subset.
func assertFinalState(trace []TraceEvent, actx *AssertionContext, assertion Assertion) error {
	ref, ok := actx.Aliases[assertion.Fact]
	if !ok {
		return fmt.Errorf("final_state: no fact aliased %q (add `as: %s` to a facts[] entry)", assertion.Fact, assertion.Fact)
	}

	fields := actx.Host.Fields(ref)
	if fields == nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("fact %q to exist", assertion.Fact),
			Actual:   "fact not found (deleted or never inserted)",
			Trace:    trace,
		}
	}

	for key, expected := range assertion.Expect {
		actual, ok := fields[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist on %q", key, assertion.Fact),
				Actual:   fmt.Sprintf("fields present: %v", fieldNames(fields)),
				Trace:    trace,
			}
		}
		if !fieldMatches(actual, expected) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %v", assertion.Fact, key, expected),
				Actual:   fmt.Sprintf("%s.%s = %v", assertion.Fact, key, actual),
				Trace:    trace,
			}
		}
	}

	return nil
}

func fieldNames(fields map[string]ir.IRValue) []string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	return names
}

// fieldMatches compares a fact's current ir.IRValue field against a
// YAML-decoded expected value, coercing the expected value to the matching
// IR type before comparing.
func fieldMatches(actual ir.IRValue, expected interface{}) bool {
	switch a := actual.(type) {
	case ir.IRString:
		s, ok := expected.(string)
		return ok && string(a) == s
	case ir.IRInt:
		switch e := expected.(type) {
		case int:
			return int64(a) == int64(e)
		case int64:
			return int64(a) == e
		case float64:
			return e == float64(int64(e)) && int64(a) == int64(e)
		}
		return false
	case ir.IRBool:
		b, ok := expected.(bool)
		return ok && bool(a) == b
	default:
		return reflect.DeepEqual(actual, expected)
	}
}

// EvaluateAssertions evaluates every assertion against result's trace and
// the scenario's final host state, returning one error message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Host == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires a host context", i)
			} else {
				err = assertFinalState(result.Trace, actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
