package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/nysm/internal/compiler"
	"github.com/roach88/nysm/internal/host"
	"github.com/roach88/nysm/internal/ir"
)

// Engine owns one compiled rule set's RETE graph, its working memory (the
// fact table), and the injected host it reaches through for every field
// read/write and side effect. It never touches storage directly (§5 "Host
// integration"): all of that goes through host.Host.
type Engine struct {
	rules  []CompiledRule
	graph  *Graph
	facts  *FactTable
	host   host.Host
	quota  *QuotaEnforcer
	gen    Generator
	logger *slog.Logger
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithMaxSteps bounds the number of rule firings one FireAllRules call may
// take before returning *StepsExceededError. It is a host-configured safety
// net (§4.4), not part of the matching semantics: the default, 0, is
// unlimited.
func WithMaxSteps(n int) Option {
	return func(e *Engine) { e.quota = NewQuotaEnforcer(n) }
}

// WithGenerator overrides the session ID generator used to stamp each
// FiringTrace. Tests typically supply a FixedGenerator for deterministic
// golden-trace comparison.
func WithGenerator(g Generator) Option {
	return func(e *Engine) { e.gen = g }
}

// WithLogger overrides the structured logger used for firing diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithFactTable seeds the engine's working memory from ft instead of an
// empty table, typically store.RestoreFactTable's result — resuming a
// session sees the same handles the persisting session allocated (§6
// "Persisted state").
func WithFactTable(ft *FactTable) Option {
	return func(e *Engine) { e.facts = ft }
}

// New compiles ruleSet's rules into a RETE graph and returns a ready-to-use
// Engine with empty working memory. h is the capability the engine reaches
// through for every field access and side effect.
func New(ruleSet ir.RuleSet, h host.Host, opts ...Option) (*Engine, error) {
	rules := make([]CompiledRule, 0, len(ruleSet.Rules))
	for _, rule := range ruleSet.Rules {
		plan, err := compiler.CompileLHS(rule)
		if err != nil {
			return nil, fmt.Errorf("engine: compile rule %q: %w", rule.Name, err)
		}
		rules = append(rules, CompiledRule{Rule: rule, Plan: plan})
	}

	graph, err := BuildGraph(rules)
	if err != nil {
		return nil, fmt.Errorf("engine: build graph: %w", err)
	}

	e := &Engine{
		rules:  rules,
		graph:  graph,
		facts:  NewFactTable(),
		host:   h,
		quota:  NewQuotaEnforcer(0),
		gen:    UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Facts returns the engine's working memory, for harness setup/assertions
// that need to insert or inspect facts directly.
func (e *Engine) Facts() *FactTable {
	return e.facts
}

// InsertFact registers a fact of factType stored at ref in working memory,
// returning the handle future pattern matches and RHS statements will see
// it by. Typically called once per scenario `facts` entry, after seeding the
// fact's fields through the host.
func (e *Engine) InsertFact(factType string, ref ir.FactRef) (ir.FactHandle, error) {
	return e.facts.Insert(factType, ref)
}

// DeleteFact removes handle from working memory, mirroring the RHS
// factDelete statement for callers driving the engine directly rather than
// through a rule. Honors the host's strict-delete capability the same way
// the RHS executor does: unknown handles are an error in strict mode and a
// no-op otherwise. On success, releases the handle's storage reference
// through the host, the same as execFactDelete does for an RHS-driven
// delete.
func (e *Engine) DeleteFact(ctx context.Context, handle ir.FactHandle) error {
	_, ref, known := e.facts.Lookup(handle)
	if err := e.facts.Delete(handle, e.host.StrictFactDelete()); err != nil {
		return err
	}
	if !known {
		return nil
	}
	return e.host.ReleaseRef(ctx, ref)
}

// Firing records one rule activation: the rule that fired, the step it
// fired on, and the tuple of handles bound to its patterns, in pattern
// order.
type Firing struct {
	Step     int
	RuleName string
	Handles  []ir.FactHandle
}

// FiringTrace is the complete record of one FireAllRules call, the input
// the conformance harness's trace_contains/trace_order/trace_count
// assertions (§8) read.
type FiringTrace struct {
	SessionID string
	Firings   []Firing
}

// FireAllRules runs the firing driver to completion: refresh every node,
// scan rules in textual order for the first with a non-empty terminal
// buffer, fire its first candidate tuple, and repeat until no rule has one
// (§4.4). It returns the trace of everything that fired even when it
// returns a non-nil error, since a failing step still leaves the prior
// steps' effects in place (§4.5 — only the failing step's own effects are
// incomplete).
func (e *Engine) FireAllRules(ctx context.Context) (*FiringTrace, error) {
	sessionID := e.gen.Generate()
	trace := &FiringTrace{SessionID: sessionID}
	e.quota.Reset()

	for {
		if err := e.graph.Refresh(ctx, e.facts, e.host); err != nil {
			return trace, fmt.Errorf("engine: refresh: %w", err)
		}

		ruleIdx, tup, ok := e.selectFiring()
		if !ok {
			break
		}

		if err := e.quota.Check(sessionID); err != nil {
			return trace, err
		}

		rule := e.rules[ruleIdx].Rule
		binding := e.rules[ruleIdx].Plan.Binding

		e.logger.Info("firing rule",
			"rule", rule.Name,
			"session", sessionID,
			"step", e.quota.Current(),
			"handles", tup,
		)

		if err := ExecuteRHS(ctx, rule.Then, e.facts, e.host, binding, tup); err != nil {
			return trace, fmt.Errorf("engine: rule %q: %w", rule.Name, err)
		}

		trace.Firings = append(trace.Firings, Firing{
			Step:     e.quota.Current(),
			RuleName: rule.Name,
			Handles:  append([]ir.FactHandle(nil), tup...),
		})
	}

	return trace, nil
}

// selectFiring scans rules in the order BuildGraph compiled them — the
// textual order rules appear in the rule set (§4.4) — and returns the
// first rule with a candidate match, always its first match in
// FactTable.Iter's insertion order.
func (e *Engine) selectFiring() (int, tuple, bool) {
	for i := range e.rules {
		matches := e.graph.Matches(i)
		if len(matches) > 0 {
			return i, matches[0], true
		}
	}
	return 0, nil, false
}
