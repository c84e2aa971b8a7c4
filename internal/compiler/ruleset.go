package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/nysm/internal/ir"
)

// CompileRuleSet parses a CUE value into an ir.RuleSet by walking the value
// with LookupPath/Fields/List, building ir values field by field, and
// reporting the first structural problem as a *CompileError carrying a CUE
// source position.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`factType: "Person": fields: {...} ...`)
//	rs, err := CompileRuleSet(v)
func CompileRuleSet(v cue.Value) (*ir.RuleSet, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	rs := &ir.RuleSet{}

	factTypes, err := parseFactTypes(v)
	if err != nil {
		return nil, err
	}
	rs.FactTypes = factTypes

	rules, err := parseRules(v, rs)
	if err != nil {
		return nil, err
	}
	rs.Rules = rules

	return rs, nil
}

func parseFactTypes(v cue.Value) ([]ir.FactTypeDecl, error) {
	val := v.LookupPath(cue.ParsePath("factType"))
	if !val.Exists() {
		return nil, nil
	}

	iter, err := val.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var decls []ir.FactTypeDecl
	for iter.Next() {
		name := iter.Label()
		decl, err := parseFactTypeDecl(name, iter.Value())
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

func parseFactTypeDecl(name string, v cue.Value) (ir.FactTypeDecl, error) {
	decl := ir.FactTypeDecl{Name: name}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return decl, nil
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return decl, formatCUEError(err)
	}
	for iter.Next() {
		fieldName := iter.Label()
		typeStr, err := iter.Value().String()
		if err != nil {
			return decl, &CompileError{
				Field:   fmt.Sprintf("factType.%s.fields.%s", name, fieldName),
				Message: "field type must be a string",
				Pos:     iter.Value().Pos(),
			}
		}
		decl.Fields = append(decl.Fields, ir.FieldDecl{Name: fieldName, Type: typeStr})
	}

	if errs := decl.Validate(); len(errs) > 0 {
		return decl, &CompileError{
			Field:   fmt.Sprintf("factType.%s", name),
			Message: errs[0].Error(),
			Pos:     v.Pos(),
		}
	}
	return decl, nil
}

func parseRules(v cue.Value, rs *ir.RuleSet) ([]ir.Rule, error) {
	val := v.LookupPath(cue.ParsePath("rule"))
	if !val.Exists() {
		return nil, nil
	}

	iter, err := val.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rules []ir.Rule
	for iter.Next() {
		name := iter.Label()
		rule, err := parseRule(name, iter.Value(), rs)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseRule(name string, v cue.Value, rs *ir.RuleSet) (ir.Rule, error) {
	rule := ir.Rule{Name: name}
	binding := newBindingTable()

	patterns, err := parseWhen(name, v, rs, binding)
	if err != nil {
		return rule, err
	}
	rule.Patterns = patterns

	then, err := parseThen(name, v, binding)
	if err != nil {
		return rule, err
	}
	rule.Then = then

	return rule, nil
}

func parseWhen(ruleName string, v cue.Value, rs *ir.RuleSet, binding *BindingTable) ([]ir.Pattern, error) {
	whenVal := v.LookupPath(cue.ParsePath("when"))
	if !whenVal.Exists() {
		return nil, &CompileError{
			Rule:    ruleName,
			Field:   "when",
			Message: "rule requires a non-empty when clause",
			Pos:     v.Pos(),
		}
	}

	iter, err := whenVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var patterns []ir.Pattern
	idx := 0
	for iter.Next() {
		pat, err := parsePatternEntry(ruleName, idx, iter.Value(), rs, binding)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, pat)
		idx++
	}
	if len(patterns) == 0 {
		return nil, &CompileError{
			Rule:    ruleName,
			Field:   "when",
			Message: "rule requires a non-empty when clause",
			Pos:     whenVal.Pos(),
		}
	}
	return patterns, nil
}

func parsePatternEntry(ruleName string, idx int, v cue.Value, rs *ir.RuleSet, binding *BindingTable) (ir.Pattern, error) {
	field := fmt.Sprintf("when[%d]", idx)

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return ir.Pattern{}, &CompileError{
			Rule:    ruleName,
			Field:   field + ".type",
			Message: "pattern requires a 'type' field naming a declared fact type",
			Pos:     v.Pos(),
		}
	}
	typeName, err := typeVal.String()
	if err != nil {
		return ir.Pattern{}, &CompileError{
			Rule: ruleName, Field: field + ".type",
			Message: "'type' must be a string", Pos: typeVal.Pos(),
		}
	}
	if _, ok := rs.FactType(typeName); !ok {
		return ir.Pattern{}, &CompileError{
			Rule: ruleName, Field: field + ".type",
			Message: fmt.Sprintf("unknown fact type %q", typeName), Pos: typeVal.Pos(),
		}
	}

	pattern := ir.Pattern{FactType: typeName}

	bindVal := v.LookupPath(cue.ParsePath("bind"))
	if bindVal.Exists() {
		bindName, err := bindVal.String()
		if err != nil {
			return ir.Pattern{}, &CompileError{
				Rule: ruleName, Field: field + ".bind",
				Message: "'bind' must be a string", Pos: bindVal.Pos(),
			}
		}
		if err := binding.bindPattern(bindName, idx); err != nil {
			return ir.Pattern{}, &CompileError{
				Rule: ruleName, Field: field + ".bind", Message: err.Error(), Pos: bindVal.Pos(),
			}
		}
		pattern.Binding = bindName
	}

	constraintsVal := v.LookupPath(cue.ParsePath("constraints"))
	if constraintsVal.Exists() {
		citer, err := constraintsVal.List()
		if err != nil {
			return ir.Pattern{}, formatCUEError(err)
		}
		cidx := 0
		for citer.Next() {
			exprStr, err := citer.Value().String()
			if err != nil {
				return ir.Pattern{}, &CompileError{
					Rule:  ruleName,
					Field: fmt.Sprintf("%s.constraints[%d]", field, cidx),
					Message: "constraint must be a string expression", Pos: citer.Value().Pos(),
				}
			}
			expr, err := parseExpr(exprStr, binding)
			if err != nil {
				return ir.Pattern{}, &CompileError{
					Rule:  ruleName,
					Field: fmt.Sprintf("%s.constraints[%d]", field, cidx),
					Message: err.Error(), Pos: citer.Value().Pos(),
				}
			}
			pattern.Fields = append(pattern.Fields, ir.FieldConstraint{Constraint: expr})
			cidx++
		}
	}

	return pattern, nil
}

func parseThen(ruleName string, v cue.Value, binding *BindingTable) ([]ir.Stmt, error) {
	thenVal := v.LookupPath(cue.ParsePath("then"))
	if !thenVal.Exists() {
		return nil, &CompileError{
			Rule: ruleName, Field: "then",
			Message: "rule requires a non-empty then clause", Pos: v.Pos(),
		}
	}

	iter, err := thenVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var stmts []ir.Stmt
	idx := 0
	for iter.Next() {
		stmt, err := parseThenEntry(ruleName, idx, iter.Value(), binding)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		idx++
	}
	if len(stmts) == 0 {
		return nil, &CompileError{
			Rule: ruleName, Field: "then",
			Message: "rule requires a non-empty then clause", Pos: thenVal.Pos(),
		}
	}
	return stmts, nil
}

func parseThenEntry(ruleName string, idx int, v cue.Value, binding *BindingTable) (ir.Stmt, error) {
	field := fmt.Sprintf("then[%d]", idx)

	opVal := v.LookupPath(cue.ParsePath("op"))
	if !opVal.Exists() {
		return nil, &CompileError{
			Rule: ruleName, Field: field + ".op",
			Message: "statement requires an 'op' field", Pos: v.Pos(),
		}
	}
	op, err := opVal.String()
	if err != nil {
		return nil, &CompileError{
			Rule: ruleName, Field: field + ".op", Message: "'op' must be a string", Pos: opVal.Pos(),
		}
	}

	switch op {
	case "assign":
		return parseAssign(ruleName, field, v, binding)
	case "update":
		return parseUpdate(ruleName, field, v, binding)
	case "factInsert":
		return parseFactInsert(ruleName, field, v, binding)
	case "factDelete":
		return parseFactDelete(ruleName, field, v, binding)
	case "effect":
		return parseEffect(ruleName, field, v, binding)
	default:
		return nil, &CompileError{
			Rule: ruleName, Field: field + ".op",
			Message: fmt.Sprintf("unknown statement op %q", op), Pos: opVal.Pos(),
		}
	}
}

func parseAssign(ruleName, field string, v cue.Value, binding *BindingTable) (ir.Stmt, error) {
	targetVal := v.LookupPath(cue.ParsePath("target"))
	targetStr, err := targetVal.String()
	if err != nil {
		return nil, &CompileError{
			Rule: ruleName, Field: field + ".target",
			Message: "'target' must be a string field reference", Pos: targetVal.Pos(),
		}
	}
	targetExpr, err := parseExpr(targetStr, binding)
	if err != nil {
		return nil, &CompileError{
			Rule: ruleName, Field: field + ".target", Message: err.Error(), Pos: targetVal.Pos(),
		}
	}
	targetRef, ok := targetExpr.(ir.FieldRef)
	if !ok {
		return nil, &CompileError{
			Rule: ruleName, Field: field + ".target",
			Message: "assignment target must be a field reference (name.field)", Pos: targetVal.Pos(),
		}
	}

	valueVal := v.LookupPath(cue.ParsePath("value"))
	valueStr, err := valueVal.String()
	if err != nil {
		return nil, &CompileError{
			Rule: ruleName, Field: field + ".value",
			Message: "'value' must be a string expression", Pos: valueVal.Pos(),
		}
	}
	valueExpr, err := parseExpr(valueStr, binding)
	if err != nil {
		return nil, &CompileError{
			Rule: ruleName, Field: field + ".value", Message: err.Error(), Pos: valueVal.Pos(),
		}
	}

	return ir.Assign{Target: targetRef, Value: valueExpr}, nil
}

func parseUpdate(ruleName, field string, v cue.Value, binding *BindingTable) (ir.Stmt, error) {
	bindingVal := v.LookupPath(cue.ParsePath("binding"))
	name, err := bindingVal.String()
	if err != nil {
		return nil, &CompileError{
			Rule: ruleName, Field: field + ".binding",
			Message: "'binding' must be a string identifier", Pos: bindingVal.Pos(),
		}
	}
	if _, ok := binding.lookupPattern(name); !ok {
		return nil, &CompileError{
			Rule: ruleName, Field: field + ".binding",
			Message: fmt.Sprintf("update of unbound identifier %q", name), Pos: bindingVal.Pos(),
		}
	}
	return ir.Update{Binding: name}, nil
}

func parseFactInsert(ruleName, field string, v cue.Value, binding *BindingTable) (ir.Stmt, error) {
	intoVal := v.LookupPath(cue.ParsePath("into"))
	into := ""
	if intoVal.Exists() {
		var err error
		into, err = intoVal.String()
		if err != nil {
			return nil, &CompileError{
				Rule: ruleName, Field: field + ".into",
				Message: "'into' must be a string identifier", Pos: intoVal.Pos(),
			}
		}
	}

	typeVal := v.LookupPath(cue.ParsePath("factType"))
	factType, err := typeVal.String()
	if err != nil {
		return nil, &CompileError{
			Rule: ruleName, Field: field + ".factType",
			Message: "'factType' must be a string naming a declared fact type", Pos: typeVal.Pos(),
		}
	}

	fields := make(map[string]ir.Expr)
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if fieldsVal.Exists() {
		iter, err := fieldsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			fname := iter.Label()
			exprStr, err := iter.Value().String()
			if err != nil {
				return nil, &CompileError{
					Rule: ruleName, Field: fmt.Sprintf("%s.fields.%s", field, fname),
					Message: "field value must be a string expression", Pos: iter.Value().Pos(),
				}
			}
			expr, err := parseExpr(exprStr, binding)
			if err != nil {
				return nil, &CompileError{
					Rule: ruleName, Field: fmt.Sprintf("%s.fields.%s", field, fname),
					Message: err.Error(), Pos: iter.Value().Pos(),
				}
			}
			fields[fname] = expr
		}
	}

	if into != "" {
		if err := binding.bindPattern(into, -1); err != nil {
			return nil, &CompileError{
				Rule: ruleName, Field: field + ".into", Message: err.Error(), Pos: intoVal.Pos(),
			}
		}
	}

	return ir.FactInsert{Into: into, FactType: factType, Fields: fields}, nil
}

func parseFactDelete(ruleName, field string, v cue.Value, binding *BindingTable) (ir.Stmt, error) {
	handleVal := v.LookupPath(cue.ParsePath("handle"))
	handleStr, err := handleVal.String()
	if err != nil {
		return nil, &CompileError{
			Rule: ruleName, Field: field + ".handle",
			Message: "'handle' must be a string expression naming a bound handle", Pos: handleVal.Pos(),
		}
	}
	expr, err := parseExpr(handleStr, binding)
	if err != nil {
		return nil, &CompileError{
			Rule: ruleName, Field: field + ".handle", Message: err.Error(), Pos: handleVal.Pos(),
		}
	}
	return ir.FactDelete{Handle: expr}, nil
}

func parseEffect(ruleName, field string, v cue.Value, binding *BindingTable) (ir.Stmt, error) {
	kindVal := v.LookupPath(cue.ParsePath("kind"))
	kind, err := kindVal.String()
	if err != nil {
		return nil, &CompileError{
			Rule: ruleName, Field: field + ".kind",
			Message: "'kind' must be a string", Pos: kindVal.Pos(),
		}
	}

	args := make(map[string]ir.Expr)
	argsVal := v.LookupPath(cue.ParsePath("args"))
	if argsVal.Exists() {
		iter, err := argsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			argName := iter.Label()
			exprStr, err := iter.Value().String()
			if err != nil {
				return nil, &CompileError{
					Rule: ruleName, Field: fmt.Sprintf("%s.args.%s", field, argName),
					Message: "arg value must be a string expression", Pos: iter.Value().Pos(),
				}
			}
			expr, err := parseExpr(exprStr, binding)
			if err != nil {
				return nil, &CompileError{
					Rule: ruleName, Field: fmt.Sprintf("%s.args.%s", field, argName),
					Message: err.Error(), Pos: iter.Value().Pos(),
				}
			}
			args[argName] = expr
		}
	}

	return ir.Effect{Kind: kind, Args: args}, nil
}
