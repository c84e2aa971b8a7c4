package compiler

import (
	"fmt"

	"github.com/roach88/nysm/internal/ir"
)

// AlphaSpec is one pattern's alpha node: the fact type it filters and the
// (possibly nil) constraint restricted to fields of that single pattern.
// Key is a content hash of (FactType, Constraint) used to decide whether
// two patterns across different rules can share the same alpha node (§4.1
// "Sharing") — sharing is an optimisation the engine may apply; behaviour
// must be identical whether or not it does.
type AlphaSpec struct {
	FactType   string
	Constraint ir.Expr // nil means "match every fact of this type"
	Key        string
	// PatternIndex is the position this pattern occupies in the rule's
	// tuple (and the Pattern value any FieldRef within Constraint uses,
	// since an alpha constraint only ever references its own pattern).
	PatternIndex int
}

// BetaSpec is the join predicate folded in when pattern index Pattern is
// added to the accumulated left chain. Predicate may be nil (a plain
// cross-join with no filter).
type BetaSpec struct {
	Pattern   int
	Predicate ir.Expr
}

// RulePlan is the LHS compiler's output for one rule: one alpha node per
// pattern plus a left-to-right fold of beta joins, per the graph-shape
// rule in §4.1 (B0 = alpha0; Bk = beta(Bk-1, alphak, joinPredicate_k)).
// Binding maps each pattern's outer binding identifier to its tuple
// position — pattern index i always occupies position i in the final
// joined tuple, since patterns fold strictly left to right.
type RulePlan struct {
	RuleName string
	Alphas   []AlphaSpec
	Betas    []BetaSpec // len(Alphas)-1 entries, Betas[i] joins pattern i+1 into the chain
	Binding  *BindingTable
}

// CompileLHS classifies every field expression of rule's patterns as
// alpha (references only the pattern being matched) or beta (references
// an earlier pattern's binding), per §4.1's normative classification
// rule, and builds the binding table the RHS/engine use to resolve
// identifiers to tuple positions.
func CompileLHS(rule ir.Rule) (*RulePlan, error) {
	if len(rule.Patterns) == 0 {
		return nil, &CompileError{Rule: rule.Name, Field: "when", Message: "rule has no patterns to compile"}
	}

	binding := newBindingTable()
	for i, p := range rule.Patterns {
		if p.Binding != "" {
			if err := binding.bindPattern(p.Binding, i); err != nil {
				return nil, &CompileError{Rule: rule.Name, Field: fmt.Sprintf("when[%d].bind", i), Message: err.Error()}
			}
		}
		for _, fe := range p.Fields {
			if fb, ok := fe.(ir.FieldBinding); ok {
				if err := binding.bindField(fb.Name, i, fb.Field); err != nil {
					return nil, &CompileError{Rule: rule.Name, Field: fmt.Sprintf("when[%d].fields", i), Message: err.Error()}
				}
			}
		}
	}

	plan := &RulePlan{RuleName: rule.Name, Binding: binding}

	for i, p := range rule.Patterns {
		var alphaConstraint ir.Expr
		var betaConstraint ir.Expr

		for _, fe := range p.Fields {
			fc, ok := fe.(ir.FieldConstraint)
			if !ok {
				continue
			}
			refs := referencedPatterns(fc.Constraint, rule)
			if hasForwardReference(refs, i) {
				return nil, &CompileError{
					Rule: rule.Name, Field: fmt.Sprintf("when[%d]", i),
					Message: "constraint references a pattern bound later in the same rule (forward intra-pattern reference)",
				}
			}
			if onlyReferences(refs, i) {
				alphaConstraint = andExpr(alphaConstraint, fc.Constraint)
			} else {
				betaConstraint = andExpr(betaConstraint, fc.Constraint)
			}
		}

		key, err := alphaSharingKey(p.FactType, alphaConstraint)
		if err != nil {
			return nil, &CompileError{Rule: rule.Name, Field: fmt.Sprintf("when[%d]", i), Message: err.Error()}
		}
		plan.Alphas = append(plan.Alphas, AlphaSpec{FactType: p.FactType, Constraint: alphaConstraint, Key: key, PatternIndex: i})

		if i > 0 {
			plan.Betas = append(plan.Betas, BetaSpec{Pattern: i, Predicate: betaConstraint})
		}
	}

	return plan, nil
}

// referencedPatterns collects the set of pattern indices an expression
// touches, resolving BindingRef names back to the pattern that
// introduced them.
func referencedPatterns(e ir.Expr, rule ir.Rule) map[int]bool {
	refs := make(map[int]bool)
	collectReferencedPatterns(e, rule, refs)
	return refs
}

func collectReferencedPatterns(e ir.Expr, rule ir.Rule, refs map[int]bool) {
	switch x := e.(type) {
	case ir.Literal:
		// no pattern reference
	case ir.FieldRef:
		refs[x.Pattern] = true
	case ir.BindingRef:
		for i, p := range rule.Patterns {
			if p.Binding == x.Name {
				refs[i] = true
			}
		}
	case ir.Unary:
		collectReferencedPatterns(x.X, rule, refs)
	case ir.Binary:
		collectReferencedPatterns(x.L, rule, refs)
		collectReferencedPatterns(x.R, rule, refs)
	}
}

// onlyReferences reports whether refs is empty or contains only idx.
func onlyReferences(refs map[int]bool, idx int) bool {
	for i := range refs {
		if i != idx {
			return false
		}
	}
	return true
}

// hasForwardReference reports whether refs contains a pattern index
// bound later than idx — a pattern may only reference itself or a
// pattern bound earlier in the same rule's when clause.
func hasForwardReference(refs map[int]bool, idx int) bool {
	for i := range refs {
		if i > idx {
			return true
		}
	}
	return false
}

// andExpr folds a new constraint into an accumulator with &&, leaving the
// accumulator untouched (returning next) when it was nil.
func andExpr(acc, next ir.Expr) ir.Expr {
	if acc == nil {
		return next
	}
	if next == nil {
		return acc
	}
	return ir.Binary{Op: ir.OpAnd, L: acc, R: next}
}

// alphaSharingKey computes the content-addressed sharing key for an
// alpha node from its (fact-type, constraint) pair. A nil constraint
// hashes to the same key as any other rule's nil-constraint node over
// the same fact type, so unconstrained patterns over one type always
// share a node.
func alphaSharingKey(factType string, constraint ir.Expr) (string, error) {
	constraintVal, err := exprToIR(constraint)
	if err != nil {
		return "", err
	}
	keyVal := ir.NewIRObjectFromPairs(
		ir.O("fact_type", ir.NewIRString(factType)),
		ir.O("constraint", constraintVal),
	)
	return ir.HashCanonical(ir.DomainAlphaNode, keyVal)
}

// exprToIR converts an ir.Expr tree into an ir.IRValue so it can be fed
// through ir.HashCanonical, which only accepts IRValue-shaped input (the
// sealed Expr family is not itself an IRValue — it is the compiler's
// internal AST, built and consumed only in Go code).
func exprToIR(e ir.Expr) (ir.IRValue, error) {
	if e == nil {
		return ir.NewIRObjectFromPairs(ir.O("kind", ir.NewIRString("none"))), nil
	}
	switch x := e.(type) {
	case ir.Literal:
		return ir.NewIRObjectFromPairs(
			ir.O("kind", ir.NewIRString("literal")),
			ir.O("value", x.Value),
		), nil
	case ir.FieldRef:
		return ir.NewIRObjectFromPairs(
			ir.O("kind", ir.NewIRString("field_ref")),
			ir.O("pattern", ir.NewIRInt(int64(x.Pattern))),
			ir.O("field", ir.NewIRString(x.Field)),
		), nil
	case ir.BindingRef:
		return ir.NewIRObjectFromPairs(
			ir.O("kind", ir.NewIRString("binding_ref")),
			ir.O("name", ir.NewIRString(x.Name)),
		), nil
	case ir.Unary:
		inner, err := exprToIR(x.X)
		if err != nil {
			return nil, err
		}
		return ir.NewIRObjectFromPairs(
			ir.O("kind", ir.NewIRString("unary")),
			ir.O("op", ir.NewIRString(string(x.Op))),
			ir.O("x", inner),
		), nil
	case ir.Binary:
		left, err := exprToIR(x.L)
		if err != nil {
			return nil, err
		}
		right, err := exprToIR(x.R)
		if err != nil {
			return nil, err
		}
		return ir.NewIRObjectFromPairs(
			ir.O("kind", ir.NewIRString("binary")),
			ir.O("op", ir.NewIRString(string(x.Op))),
			ir.O("l", left),
			ir.O("r", right),
		), nil
	default:
		return nil, fmt.Errorf("exprToIR: unsupported expression type %T", e)
	}
}
