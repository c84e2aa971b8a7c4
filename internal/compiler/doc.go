// Package compiler lowers a rule source (CUE text) into ir.RuleSet
// values and then lowers each rule's left-hand side into a plan the Rete
// graph builder in internal/engine consumes: a classification of every
// field expression as alpha (single-fact) or beta (join), plus a binding
// table mapping pattern-bound identifiers to tuple positions.
//
// The CUE front end (ruleset.go) walks a cue.Value with LookupPath/Fields/
// List and builds ir values field by field, reporting the first structural
// problem as a *CompileError with CUE source position. Constraint and RHS
// expression strings (e.g. "p.age >= 65") are then lowered into ir.Expr/
// ir.Stmt trees by a small Pratt parser (lexer.go, parser.go) scoped to the
// closed fragment ir.Expr supports — its errors are reported with the CUE
// source position of the string value the expression came from.
package compiler
