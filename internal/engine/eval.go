package engine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/roach88/nysm/internal/compiler"
	"github.com/roach88/nysm/internal/host"
	"github.com/roach88/nysm/internal/ir"
)

// tuple is an ordered binding environment: tuple[i] is the fact handle
// bound to pattern i. Per §9's design note, bindings are positions, not
// maps — name-to-position resolution happens once at compile time in
// compiler.BindingTable; the engine only ever indexes by position.
type tuple []ir.FactHandle

// clone copies t so appending a new position during a beta join never
// aliases another tuple's backing array.
func (t tuple) clone() tuple {
	out := make(tuple, len(t))
	copy(out, t)
	return out
}

// evaluator evaluates the runtime counterpart of the compile-time ir.Expr
// AST against one candidate tuple, resolving FieldRef/BindingRef through
// the fact table and the injected host.
//
// t holds one binding per rule pattern starting at pattern index base: t[0]
// corresponds to pattern base, t[1] to pattern base+1, and so on. Every
// beta/terminal tuple is built left to right starting at pattern 0, so base
// is 0 there. A standalone alpha node, though, evaluates a length-1 tuple
// for a pattern that may sit anywhere in its rule's pattern list (a shared
// alpha node's own Constraint still names its original pattern index, via
// compiler.AlphaSpec.PatternIndex) — base is set to that index so the
// single bound handle lands at the position the constraint expects.
type evaluator struct {
	ctx     context.Context
	facts   *FactTable
	host    host.Host
	binding *compiler.BindingTable
	base    int
	t       tuple
	// locals holds handles a FactInsert's `into` clause bound earlier in
	// this same RHS execution. Those names are never part of the compiled
	// BindingTable (compiler/lhs.go's CompileLHS only ever sees a rule's
	// when-clause patterns, not its then-clause), so a BindingRef whose
	// name PatternIndex doesn't know falls back to locals. nil outside RHS
	// execution, where no BindingRef can legally name such a binding.
	locals map[string]ir.FactHandle
}

// index translates a rule-level pattern index into a position in t.
func (e *evaluator) index(pattern int) int {
	return pattern - e.base
}

func (e *evaluator) eval(expr ir.Expr) (ir.IRValue, error) {
	switch x := expr.(type) {
	case ir.Literal:
		return x.Value, nil
	case ir.FieldRef:
		return e.loadField(x.Pattern, x.Field)
	case ir.BindingRef:
		pattern, ok := e.binding.PatternIndex(x.Name)
		if !ok {
			h, ok := e.locals[x.Name]
			if !ok {
				return nil, fmt.Errorf("eval: binding %q not found", x.Name)
			}
			return ir.NewIRInt(int64(h)), nil
		}
		idx := e.index(pattern)
		if idx < 0 || idx >= len(e.t) {
			return nil, fmt.Errorf("eval: binding %q resolves to pattern %d, out of range for tuple of length %d (base %d)", x.Name, pattern, len(e.t), e.base)
		}
		return ir.NewIRInt(int64(e.t[idx])), nil
	case ir.Unary:
		return e.evalUnary(x)
	case ir.Binary:
		return e.evalBinary(x)
	default:
		return nil, fmt.Errorf("eval: unsupported expression type %T", expr)
	}
}

// evalBool evaluates expr as a boolean constraint. A nil expr (an
// unconstrained pattern or join) is vacuously true.
func (e *evaluator) evalBool(expr ir.Expr) (bool, error) {
	if expr == nil {
		return true, nil
	}
	v, err := e.eval(expr)
	if err != nil {
		return false, err
	}
	b, ok := v.(ir.IRBool)
	if !ok {
		return false, fmt.Errorf("eval: constraint must evaluate to bool, got %T", v)
	}
	return bool(b), nil
}

func (e *evaluator) loadField(pattern int, field string) (ir.IRValue, error) {
	idx := e.index(pattern)
	if idx < 0 || idx >= len(e.t) {
		return nil, fmt.Errorf("eval: pattern index %d (base %d) out of range for tuple of length %d", pattern, e.base, len(e.t))
	}
	handle := e.t[idx]
	factType, ref, ok := e.facts.Lookup(handle)
	if !ok {
		return nil, fmt.Errorf("eval: handle %d not found in fact table", handle)
	}
	return e.host.LoadField(e.ctx, ref, factType, field)
}

func (e *evaluator) evalUnary(x ir.Unary) (ir.IRValue, error) {
	v, err := e.eval(x.X)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case ir.OpNeg:
		n, ok := v.(ir.IRInt)
		if !ok {
			return nil, fmt.Errorf("eval: unary %q requires an int operand, got %T", x.Op, v)
		}
		return ir.NewIRInt(-int64(n)), nil
	case ir.OpNot:
		b, ok := v.(ir.IRBool)
		if !ok {
			return nil, fmt.Errorf("eval: unary %q requires a bool operand, got %T", x.Op, v)
		}
		return ir.NewIRBool(!bool(b)), nil
	default:
		return nil, fmt.Errorf("eval: unknown unary operator %q", x.Op)
	}
}

func (e *evaluator) evalBinary(x ir.Binary) (ir.IRValue, error) {
	if x.Op == ir.OpAnd || x.Op == ir.OpOr {
		return e.evalLogical(x)
	}

	l, err := e.eval(x.L)
	if err != nil {
		return nil, err
	}
	r, err := e.eval(x.R)
	if err != nil {
		return nil, err
	}

	switch x.Op {
	case ir.OpEq:
		return ir.NewIRBool(reflect.DeepEqual(l, r)), nil
	case ir.OpNeq:
		return ir.NewIRBool(!reflect.DeepEqual(l, r)), nil
	case ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte:
		return evalIntComparison(x.Op, l, r)
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv:
		return evalIntArith(x.Op, l, r)
	default:
		return nil, fmt.Errorf("eval: unknown binary operator %q", x.Op)
	}
}

// evalLogical implements && and || with left-to-right short-circuit
// evaluation, per the left-to-right evaluation order Binary documents.
func (e *evaluator) evalLogical(x ir.Binary) (ir.IRValue, error) {
	l, err := e.eval(x.L)
	if err != nil {
		return nil, err
	}
	lb, ok := l.(ir.IRBool)
	if !ok {
		return nil, fmt.Errorf("eval: %q requires bool operands, got %T", x.Op, l)
	}
	if x.Op == ir.OpAnd && !bool(lb) {
		return ir.NewIRBool(false), nil
	}
	if x.Op == ir.OpOr && bool(lb) {
		return ir.NewIRBool(true), nil
	}

	r, err := e.eval(x.R)
	if err != nil {
		return nil, err
	}
	rb, ok := r.(ir.IRBool)
	if !ok {
		return nil, fmt.Errorf("eval: %q requires bool operands, got %T", x.Op, r)
	}
	return rb, nil
}

func evalIntComparison(op ir.BinaryOp, l, r ir.IRValue) (ir.IRValue, error) {
	ln, lok := l.(ir.IRInt)
	rn, rok := r.(ir.IRInt)
	if !lok || !rok {
		return nil, fmt.Errorf("eval: %q requires int operands, got %T and %T", op, l, r)
	}
	switch op {
	case ir.OpLt:
		return ir.NewIRBool(ln < rn), nil
	case ir.OpLte:
		return ir.NewIRBool(ln <= rn), nil
	case ir.OpGt:
		return ir.NewIRBool(ln > rn), nil
	case ir.OpGte:
		return ir.NewIRBool(ln >= rn), nil
	default:
		return nil, fmt.Errorf("eval: unknown comparison operator %q", op)
	}
}

func evalIntArith(op ir.BinaryOp, l, r ir.IRValue) (ir.IRValue, error) {
	ln, lok := l.(ir.IRInt)
	rn, rok := r.(ir.IRInt)
	if !lok || !rok {
		return nil, fmt.Errorf("eval: %q requires int operands, got %T and %T", op, l, r)
	}
	switch op {
	case ir.OpAdd:
		return ir.NewIRInt(int64(ln) + int64(rn)), nil
	case ir.OpSub:
		return ir.NewIRInt(int64(ln) - int64(rn)), nil
	case ir.OpMul:
		return ir.NewIRInt(int64(ln) * int64(rn)), nil
	case ir.OpDiv:
		if rn == 0 {
			return nil, fmt.Errorf("eval: division by zero")
		}
		return ir.NewIRInt(int64(ln) / int64(rn)), nil
	default:
		return nil, fmt.Errorf("eval: unknown arithmetic operator %q", op)
	}
}
