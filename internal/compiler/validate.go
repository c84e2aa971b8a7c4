package compiler

import (
	"fmt"

	"github.com/roach88/nysm/internal/ir"
)

// Validation error codes (E200-E299), continuing on from ir.FactTypeDecl's
// own E1xx-style field-level codes (see ir/action.go's ValidationError).
const (
	ErrUnsupportedValidateType = "E200" // Validate called with an unrecognized type
	ErrDuplicateRuleName       = "E201" // two rules share a name
	ErrUnknownFactTypeInInsert = "E202" // factInsert names an undeclared fact type
	ErrMissingUpdate           = "E203" // a binding is assigned but never updated
	ErrDuplicateFactTypeName   = "E204" // two fact types share a name
)

// ValidationError is a semantic (cross-statement, cross-rule) validation
// finding, reported alongside but distinct from *CompileError: CompileError
// covers structural/CUE-shape problems caught while parsing a single rule;
// ValidationError covers whole-ruleset checks run after every rule has
// parsed successfully, collected in a single non-fail-fast Validate pass.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate runs whole-ruleset semantic checks that require seeing every
// rule and fact type together: duplicate names, and the update
// requirement (an RHS that assigns a field of a bound fact must update
// that binding before the rule ends). Per-rule structural errors
// (unknown fact type in a pattern, unbound identifier, malformed
// expression) are caught earlier, during CompileRuleSet, as *CompileError
// values.
func Validate(v any) []ValidationError {
	switch rs := v.(type) {
	case *ir.RuleSet:
		return validateRuleSet(rs)
	case ir.RuleSet:
		return validateRuleSet(&rs)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type for Validate: %T", v),
			Code:    ErrUnsupportedValidateType,
		}}
	}
}

func validateRuleSet(rs *ir.RuleSet) []ValidationError {
	var errs []ValidationError

	errs = append(errs, validateFactTypeNames(rs)...)
	errs = append(errs, validateRuleNames(rs)...)

	for i, rule := range rs.Rules {
		errs = append(errs, validateFactInsertTargets(rs, rule, i)...)
		errs = append(errs, validateUpdateRequirement(rule, i)...)
	}

	return errs
}

func validateFactTypeNames(rs *ir.RuleSet) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)
	for i, ft := range rs.FactTypes {
		if seen[ft.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("factTypes[%d].name", i),
				Message: fmt.Sprintf("duplicate fact type name %q", ft.Name),
				Code:    ErrDuplicateFactTypeName,
			})
		}
		seen[ft.Name] = true
	}
	return errs
}

func validateRuleNames(rs *ir.RuleSet) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)
	for i, rule := range rs.Rules {
		if seen[rule.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("rules[%d].name", i),
				Message: fmt.Sprintf("duplicate rule name %q", rule.Name),
				Code:    ErrDuplicateRuleName,
			})
		}
		seen[rule.Name] = true
	}
	return errs
}

func validateFactInsertTargets(rs *ir.RuleSet, rule ir.Rule, ruleIdx int) []ValidationError {
	var errs []ValidationError
	for i, stmt := range rule.Then {
		insert, ok := stmt.(ir.FactInsert)
		if !ok {
			continue
		}
		if _, ok := rs.FactType(insert.FactType); !ok {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("rules[%d].then[%d].fact_type", ruleIdx, i),
				Message: fmt.Sprintf("rule %q: factInsert names undeclared fact type %q", rule.Name, insert.FactType),
				Code:    ErrUnknownFactTypeInInsert,
			})
		}
	}
	return errs
}

// validateUpdateRequirement enforces that every pattern binding assigned
// to in the RHS is update'd, in program order, before the rule ends.
func validateUpdateRequirement(rule ir.Rule, ruleIdx int) []ValidationError {
	bindingOfPattern := make(map[int]string, len(rule.Patterns))
	for i, p := range rule.Patterns {
		if p.Binding != "" {
			bindingOfPattern[i] = p.Binding
		}
	}

	dirty := make(map[string]bool)
	for _, stmt := range rule.Then {
		switch s := stmt.(type) {
		case ir.Assign:
			if name, ok := bindingOfPattern[s.Target.Pattern]; ok {
				dirty[name] = true
			}
		case ir.Update:
			delete(dirty, s.Binding)
		}
	}

	if len(dirty) == 0 {
		return nil
	}

	var errs []ValidationError
	for name := range dirty {
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("rules[%d].then", ruleIdx),
			Message: fmt.Sprintf("rule %q: binding %q is assigned but never updated before the rule ends", rule.Name, name),
			Code:    ErrMissingUpdate,
		})
	}
	return errs
}
