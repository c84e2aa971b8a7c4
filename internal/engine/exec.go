package engine

import (
	"context"
	"fmt"

	"github.com/roach88/nysm/internal/compiler"
	"github.com/roach88/nysm/internal/host"
	"github.com/roach88/nysm/internal/ir"
)

// ExecuteRHS runs one rule's action block against a matched tuple,
// executing statements strictly in order — the RHS is a straight-line
// sequence with no branching (§4.6); any per-case behavior belongs in the
// when-clause constraints, not here. locals accumulates the handles a
// FactInsert's `into` clause binds, since those names live only for the
// rest of this RHS and are never part of the match tuple.
func ExecuteRHS(ctx context.Context, stmts []ir.Stmt, facts *FactTable, h host.Host, binding *compiler.BindingTable, t tuple) error {
	locals := make(map[string]ir.FactHandle)
	ev := &evaluator{ctx: ctx, facts: facts, host: h, binding: binding, t: t, locals: locals}

	for i, stmt := range stmts {
		if err := execStmt(ctx, stmt, facts, h, ev, locals); err != nil {
			return fmt.Errorf("rhs statement %d: %w", i, err)
		}
	}
	return nil
}

func execStmt(ctx context.Context, stmt ir.Stmt, facts *FactTable, h host.Host, ev *evaluator, locals map[string]ir.FactHandle) error {
	switch s := stmt.(type) {
	case ir.Assign:
		return execAssign(ctx, s, facts, h, ev)
	case ir.Update:
		// No runtime effect under full-recompute evaluation (ir/stmt.go);
		// the next refresh re-reads storage regardless of this marker.
		return nil
	case ir.FactInsert:
		return execFactInsert(ctx, s, facts, h, ev, locals)
	case ir.FactDelete:
		return execFactDelete(ctx, s, facts, h, ev)
	case ir.Effect:
		return execEffect(ctx, s, h, ev)
	default:
		return fmt.Errorf("unsupported statement type %T", stmt)
	}
}

func execAssign(ctx context.Context, s ir.Assign, facts *FactTable, h host.Host, ev *evaluator) error {
	value, err := ev.eval(s.Value)
	if err != nil {
		return fmt.Errorf("assign value: %w", err)
	}

	handle, err := resolvePatternHandle(ev, s.Target.Pattern)
	if err != nil {
		return fmt.Errorf("assign target: %w", err)
	}
	factType, ref, ok := facts.Lookup(handle)
	if !ok {
		return fmt.Errorf("assign: handle %d not found in fact table", handle)
	}
	return h.StoreField(ctx, ref, factType, s.Target.Field, value)
}

// resolvePatternHandle reads the handle bound to pattern, honoring the
// same base offset eval.go uses for FieldRef/BindingRef resolution.
func resolvePatternHandle(ev *evaluator, pattern int) (ir.FactHandle, error) {
	idx := ev.index(pattern)
	if idx < 0 || idx >= len(ev.t) {
		return ir.NullHandle, fmt.Errorf("pattern index %d (base %d) out of range for tuple of length %d", pattern, ev.base, len(ev.t))
	}
	return ev.t[idx], nil
}

func execFactInsert(ctx context.Context, s ir.FactInsert, facts *FactTable, h host.Host, ev *evaluator, locals map[string]ir.FactHandle) error {
	fields := make(map[string]ir.IRValue, len(s.Fields))
	for name, expr := range s.Fields {
		v, err := ev.eval(expr)
		if err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		fields[name] = v
	}

	ref, err := h.AllocateRef(ctx, s.FactType, fields)
	if err != nil {
		return fmt.Errorf("allocate %s: %w", s.FactType, err)
	}
	handle, err := facts.Insert(s.FactType, ref)
	if err != nil {
		return err
	}
	if s.Into != "" {
		locals[s.Into] = handle
	}
	return nil
}

func execFactDelete(ctx context.Context, s ir.FactDelete, facts *FactTable, h host.Host, ev *evaluator) error {
	v, err := ev.eval(s.Handle)
	if err != nil {
		return fmt.Errorf("delete handle: %w", err)
	}
	n, ok := v.(ir.IRInt)
	if !ok {
		return fmt.Errorf("fact delete: handle expression must evaluate to an int, got %T", v)
	}
	handle := ir.FactHandle(n)
	_, ref, known := facts.Lookup(handle)
	if err := facts.Delete(handle, h.StrictFactDelete()); err != nil {
		return err
	}
	if !known {
		return nil
	}
	return h.ReleaseRef(ctx, ref)
}

func execEffect(ctx context.Context, s ir.Effect, h host.Host, ev *evaluator) error {
	args := make(map[string]ir.IRValue, len(s.Args))
	for name, expr := range s.Args {
		v, err := ev.eval(expr)
		if err != nil {
			return fmt.Errorf("arg %q: %w", name, err)
		}
		args[name] = v
	}
	return h.Effect(ctx, s.Kind, args)
}
