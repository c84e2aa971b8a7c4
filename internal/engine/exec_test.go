package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nysm/internal/compiler"
	"github.com/roach88/nysm/internal/host"
	"github.com/roach88/nysm/internal/ir"
)

func singlePatternPlan(t *testing.T, binding, factType string) *compiler.RulePlan {
	t.Helper()
	plan, err := compiler.CompileLHS(ir.Rule{
		Name:     "r",
		Patterns: []ir.Pattern{{Binding: binding, FactType: factType}},
	})
	require.NoError(t, err)
	return plan
}

func TestExecuteRHSAssignUpdatesField(t *testing.T) {
	m := host.NewMock(false)
	ft := NewFactTable()
	ref := m.Seed("Budget", map[string]ir.IRValue{"amount": ir.NewIRInt(100)})
	handle, err := ft.Insert("Budget", ref)
	require.NoError(t, err)

	plan := singlePatternPlan(t, "b", "Budget")
	stmts := []ir.Stmt{
		ir.Assign{
			Target: ir.FieldRef{Pattern: 0, Field: "amount"},
			Value: ir.Binary{
				Op: ir.OpSub,
				L:  ir.FieldRef{Pattern: 0, Field: "amount"},
				R:  ir.Literal{Value: ir.NewIRInt(10)},
			},
		},
	}

	require.NoError(t, ExecuteRHS(context.Background(), stmts, ft, m, plan.Binding, tuple{handle}))
	assert.Equal(t, ir.NewIRInt(90), m.Fields(ref)["amount"])
}

func TestExecuteRHSUpdateIsNoOp(t *testing.T) {
	m := host.NewMock(false)
	ft := NewFactTable()
	ref := m.Seed("Budget", map[string]ir.IRValue{"amount": ir.NewIRInt(5)})
	handle, err := ft.Insert("Budget", ref)
	require.NoError(t, err)

	plan := singlePatternPlan(t, "b", "Budget")
	stmts := []ir.Stmt{ir.Update{Binding: "b"}}
	require.NoError(t, ExecuteRHS(context.Background(), stmts, ft, m, plan.Binding, tuple{handle}))
	assert.Equal(t, ir.NewIRInt(5), m.Fields(ref)["amount"])
}

func TestExecuteRHSFactInsertBindsIntoLocal(t *testing.T) {
	m := host.NewMock(false)
	ft := NewFactTable()

	plan := singlePatternPlan(t, "b", "Budget")
	stmts := []ir.Stmt{
		ir.FactInsert{
			Into:     "r",
			FactType: "Receipt",
			Fields: map[string]ir.Expr{
				"amount": ir.Literal{Value: ir.NewIRInt(42)},
			},
		},
		ir.Effect{
			Kind: "emit",
			Args: map[string]ir.Expr{
				"receipt": ir.BindingRef{Name: "r"},
			},
		},
	}

	require.NoError(t, ExecuteRHS(context.Background(), stmts, ft, m, plan.Binding, nil))

	require.Len(t, m.Effects, 1)
	assert.Equal(t, "emit", m.Effects[0].Kind)

	refs := ft.Iter("Receipt")
	require.Len(t, refs, 1)
	gotHandle, ok := m.Effects[0].Args["receipt"].(ir.IRInt)
	require.True(t, ok)
	assert.Equal(t, ir.FactHandle(gotHandle), refs[0].Handle)
}

func TestExecuteRHSFactDelete(t *testing.T) {
	m := host.NewMock(true)
	ft := NewFactTable()
	ref := m.Seed("Budget", map[string]ir.IRValue{"amount": ir.NewIRInt(1)})
	handle, err := ft.Insert("Budget", ref)
	require.NoError(t, err)

	plan := singlePatternPlan(t, "b", "Budget")
	stmts := []ir.Stmt{ir.FactDelete{Handle: ir.BindingRef{Name: "b"}}}
	require.NoError(t, ExecuteRHS(context.Background(), stmts, ft, m, plan.Binding, tuple{handle}))

	_, _, ok := ft.Lookup(handle)
	assert.False(t, ok)
}

func TestExecuteRHSFactDeleteStrictUnknownHandleErrors(t *testing.T) {
	m := host.NewMock(true)
	ft := NewFactTable()
	plan := singlePatternPlan(t, "b", "Budget")
	stmts := []ir.Stmt{ir.FactDelete{Handle: ir.Literal{Value: ir.NewIRInt(99)}}}
	err := ExecuteRHS(context.Background(), stmts, ft, m, plan.Binding, nil)
	assert.Error(t, err)
}

func TestExecuteRHSEffectPassesArgs(t *testing.T) {
	m := host.NewMock(false)
	ft := NewFactTable()
	plan := singlePatternPlan(t, "b", "Budget")
	stmts := []ir.Stmt{
		ir.Effect{
			Kind: "transfer",
			Args: map[string]ir.Expr{
				"amount": ir.Literal{Value: ir.NewIRInt(7)},
			},
		},
	}
	require.NoError(t, ExecuteRHS(context.Background(), stmts, ft, m, plan.Binding, nil))
	require.Len(t, m.Effects, 1)
	assert.Equal(t, ir.NewIRInt(7), m.Effects[0].Args["amount"])
}

func TestExecuteRHSStopsOnFirstError(t *testing.T) {
	m := host.NewMock(false)
	ft := NewFactTable()
	plan := singlePatternPlan(t, "b", "Budget")
	stmts := []ir.Stmt{
		ir.FactDelete{Handle: ir.BindingRef{Name: "unbound"}},
		ir.Effect{Kind: "should-not-run", Args: map[string]ir.Expr{}},
	}
	err := ExecuteRHS(context.Background(), stmts, ft, m, plan.Binding, nil)
	assert.Error(t, err)
	assert.Empty(t, m.Effects)
}
