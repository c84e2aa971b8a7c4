package harness

import "github.com/roach88/nysm/internal/ir"

// TraceEvent records one rule firing: the rule that fired and the tuple of
// fact handles bound to its patterns, in pattern order. This is the harness's
// unit of observation — trace_contains/trace_order/trace_count assertions
// (§8-FULL) all read a sequence of TraceEvent, not individual field writes.
type TraceEvent struct {
	Seq      int             `json:"seq"`
	RuleName string          `json:"rule"`
	Handles  []ir.FactHandle `json:"handles,omitempty"`
}

// Result is the outcome of running a scenario: every rule firing observed
// across all FireAllRules calls the scenario's `fire` count requested, plus
// the pass/fail verdict assertions produced against that trace.
type Result struct {
	Pass   bool         `json:"pass"`
	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`
}

// NewResult creates a new passing result with an empty trace.
func NewResult() *Result {
	return &Result{
		Pass:  true,
		Trace: []TraceEvent{},
	}
}

// AddError records an assertion failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddFiring appends one rule activation to the trace.
func (r *Result) AddFiring(ruleName string, handles []ir.FactHandle) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:      len(r.Trace) + 1,
		RuleName: ruleName,
		Handles:  handles,
	})
}
