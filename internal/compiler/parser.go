package compiler

import (
	"fmt"

	"github.com/roach88/nysm/internal/ir"
)

// parser lowers a tokenized constraint/RHS string into an ir.Expr,
// resolving identifiers against a BindingTable supplied by the caller.
// Precedence climbing follows the usual C-like table: || lowest, then
// &&, then the comparison operators (non-associative in practice but
// parsed left-associative), then +/-, then */, with unary -/! and
// parenthesized groups binding tightest.
type parser struct {
	lex     *lexer
	tok     token
	binding *BindingTable
}

func parseExpr(src string, binding *BindingTable) (ir.Expr, error) {
	p := &parser{lex: newLexer(src), binding: binding}
	if err := p.advance(); err != nil {
		return nil, err
	}
	expr, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, fmt.Errorf("unexpected trailing token %q", p.tok.text)
	}
	return expr, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

var precedence = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3, "<": 3, "<=": 3, ">": 3, ">=": 3,
	"+": 4, "-": 4,
	"*": 5, "/": 5,
}

var binaryOps = map[string]ir.BinaryOp{
	"==": ir.OpEq, "!=": ir.OpNeq, "<": ir.OpLt, "<=": ir.OpLte,
	">": ir.OpGt, ">=": ir.OpGte, "&&": ir.OpAnd, "||": ir.OpOr,
	"+": ir.OpAdd, "-": ir.OpSub, "*": ir.OpMul, "/": ir.OpDiv,
}

func (p *parser) parseBinary(minPrec int) (ir.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp {
		prec, ok := precedence[p.tok.text]
		if !ok || prec < minPrec {
			break
		}
		op := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		left = ir.Binary{Op: binaryOps[op], L: left, R: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (ir.Expr, error) {
	if p.tok.kind == tokOp && (p.tok.text == "-" || p.tok.text == "!") {
		op := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		unaryOp := ir.OpNeg
		if op == "!" {
			unaryOp = ir.OpNot
		}
		return ir.Unary{Op: unaryOp, X: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (ir.Expr, error) {
	switch p.tok.kind {
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseBinary(0)
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, fmt.Errorf("expected ')', got %q", p.tok.text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil

	case tokInt:
		n, err := parseIntLiteral(p.tok.text)
		if err != nil {
			return nil, fmt.Errorf("invalid integer literal %q: %w", p.tok.text, err)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ir.Literal{Value: ir.IRInt(n)}, nil

	case tokString:
		s := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ir.Literal{Value: ir.NewIRString(s)}, nil

	case tokIdent:
		return p.parseIdentExpr()

	default:
		return nil, fmt.Errorf("unexpected token %q", p.tok.text)
	}
}

func (p *parser) parseIdentExpr() (ir.Expr, error) {
	name := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}

	switch name {
	case "true":
		return ir.Literal{Value: ir.NewIRBool(true)}, nil
	case "false":
		return ir.Literal{Value: ir.NewIRBool(false)}, nil
	case "null":
		return ir.Literal{Value: ir.IRNull{}}, nil
	}

	if p.tok.kind == tokDot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokIdent {
			return nil, fmt.Errorf("expected field name after %q.", name)
		}
		field := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.binding == nil {
			return nil, fmt.Errorf("identifier %q is not bound", name)
		}
		idx, ok := p.binding.lookupPattern(name)
		if !ok {
			return nil, fmt.Errorf("identifier %q is not bound by any pattern", name)
		}
		return ir.FieldRef{Pattern: idx, Field: field}, nil
	}

	if p.binding != nil {
		if target, ok := p.binding.lookupField(name); ok {
			return ir.FieldRef{Pattern: target.pattern, Field: target.field}, nil
		}
		if !p.binding.known(name) {
			return nil, fmt.Errorf("identifier %q is not bound", name)
		}
	}
	return ir.BindingRef{Name: name}, nil
}
