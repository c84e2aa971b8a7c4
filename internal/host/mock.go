package host

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/nysm/internal/ir"
)

// EffectCall records one Effect invocation observed by Mock, in call order.
type EffectCall struct {
	Kind string
	Args map[string]ir.IRValue
}

// Mock is an in-memory Host for unit tests. Facts are keyed by ir.FactRef;
// each holds its declared field values plus the fact type it was allocated
// with, so LoadField can validate field/type agreement the way a real
// storage layer naturally would.
type Mock struct {
	strict  bool
	seq     int
	facts   map[ir.FactRef]*mockFact
	Effects []EffectCall
}

type mockFact struct {
	factType string
	fields   map[string]ir.IRValue
}

// NewMock creates an empty Mock host. strict controls StrictFactDelete.
func NewMock(strict bool) *Mock {
	return &Mock{
		strict: strict,
		facts:  make(map[ir.FactRef]*mockFact),
	}
}

// Seed inserts a fact directly into the mock's storage without going
// through the engine's fact table, returning the ref the caller should pass
// to engine.Engine.InsertFact. Used by tests to set up initial working
// memory (the `facts` list of a harness scenario).
func (m *Mock) Seed(factType string, fields map[string]ir.IRValue) ir.FactRef {
	m.seq++
	ref := ir.FactRef(fmt.Sprintf("%s#%d", factType, m.seq))
	clone := make(map[string]ir.IRValue, len(fields))
	for k, v := range fields {
		clone[k] = v
	}
	m.facts[ref] = &mockFact{factType: factType, fields: clone}
	return ref
}

func (m *Mock) LoadField(_ context.Context, ref ir.FactRef, factType, field string) (ir.IRValue, error) {
	f, ok := m.facts[ref]
	if !ok {
		return nil, fmt.Errorf("host: unknown fact ref %q", ref)
	}
	if f.factType != factType {
		return nil, fmt.Errorf("host: ref %q is type %q, not %q", ref, f.factType, factType)
	}
	v, ok := f.fields[field]
	if !ok {
		return nil, fmt.Errorf("host: fact %q has no field %q", ref, field)
	}
	return v, nil
}

func (m *Mock) StoreField(_ context.Context, ref ir.FactRef, factType, field string, value ir.IRValue) error {
	f, ok := m.facts[ref]
	if !ok {
		return fmt.Errorf("host: unknown fact ref %q", ref)
	}
	if f.factType != factType {
		return fmt.Errorf("host: ref %q is type %q, not %q", ref, f.factType, factType)
	}
	f.fields[field] = value
	return nil
}

func (m *Mock) AllocateRef(_ context.Context, factType string, fields map[string]ir.IRValue) (ir.FactRef, error) {
	m.seq++
	ref := ir.FactRef(fmt.Sprintf("%s#%d", factType, m.seq))
	clone := make(map[string]ir.IRValue, len(fields))
	for k, v := range fields {
		clone[k] = v
	}
	m.facts[ref] = &mockFact{factType: factType, fields: clone}
	return ref, nil
}

func (m *Mock) ReleaseRef(_ context.Context, ref ir.FactRef) error {
	delete(m.facts, ref)
	return nil
}

func (m *Mock) Effect(_ context.Context, kind string, args map[string]ir.IRValue) error {
	m.Effects = append(m.Effects, EffectCall{Kind: kind, Args: args})
	return nil
}

func (m *Mock) StrictFactDelete() bool {
	return m.strict
}

// Fields returns a copy of the field values stored at ref, for test
// assertions against final state. Returns nil if ref is unknown.
func (m *Mock) Fields(ref ir.FactRef) map[string]ir.IRValue {
	f, ok := m.facts[ref]
	if !ok {
		return nil
	}
	clone := make(map[string]ir.IRValue, len(f.fields))
	for k, v := range f.fields {
		clone[k] = v
	}
	return clone
}

// Refs returns every live fact ref, sorted, for deterministic test iteration.
func (m *Mock) Refs() []ir.FactRef {
	refs := make([]ir.FactRef, 0, len(m.facts))
	for r := range m.facts {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
	return refs
}

var _ Host = (*Mock)(nil)
