package compiler

import "fmt"

// BindingTable maps the identifiers a rule's patterns introduce — the
// outer binding named in a pattern's "bind" key, plus any inner field
// bindings a FieldBinding introduces — to the pattern index that bound
// them. The expression parser consults it to turn a bare identifier or a
// "name.field" reference into an ir.BindingRef or ir.FieldRef.
type BindingTable struct {
	// patternOf maps an outer binding name to the index of the pattern
	// that introduced it.
	patternOf map[string]int
	// fieldBindingOf maps an inner field-binding name directly to an
	// ir.FieldRef, since such a binding always aliases a single field of
	// a single pattern.
	fieldBindingOf map[string]fieldRefTarget
	order          []string
}

type fieldRefTarget struct {
	pattern int
	field   string
}

func newBindingTable() *BindingTable {
	return &BindingTable{
		patternOf:      make(map[string]int),
		fieldBindingOf: make(map[string]fieldRefTarget),
	}
}

// bindPattern records that name is the outer binding for the pattern at
// index idx. It reports an error if name is already bound.
func (t *BindingTable) bindPattern(name string, idx int) error {
	if name == "" {
		return nil
	}
	if err := t.checkFresh(name); err != nil {
		return err
	}
	t.patternOf[name] = idx
	t.order = append(t.order, name)
	return nil
}

// bindField records that name aliases the field of the pattern at index
// idx. It reports an error if name is already bound.
func (t *BindingTable) bindField(name string, idx int, field string) error {
	if err := t.checkFresh(name); err != nil {
		return err
	}
	t.fieldBindingOf[name] = fieldRefTarget{pattern: idx, field: field}
	t.order = append(t.order, name)
	return nil
}

func (t *BindingTable) checkFresh(name string) error {
	if _, ok := t.patternOf[name]; ok {
		return fmt.Errorf("identifier %q is already bound", name)
	}
	if _, ok := t.fieldBindingOf[name]; ok {
		return fmt.Errorf("identifier %q is already bound", name)
	}
	return nil
}

// lookupPattern resolves an outer binding name to its pattern index.
func (t *BindingTable) lookupPattern(name string) (int, bool) {
	idx, ok := t.patternOf[name]
	return idx, ok
}

// lookupField resolves an inner field-binding name to its target.
func (t *BindingTable) lookupField(name string) (fieldRefTarget, bool) {
	target, ok := t.fieldBindingOf[name]
	return target, ok
}

// known reports whether name has been bound by either form.
func (t *BindingTable) known(name string) bool {
	_, ok := t.lookupPattern(name)
	if ok {
		return true
	}
	_, ok = t.lookupField(name)
	return ok
}

// PatternIndex resolves an outer binding name to its pattern index. It is
// the exported counterpart of lookupPattern, used by internal/engine at
// runtime to resolve an ir.BindingRef (which only ever names a whole-fact
// outer binding — "a.field" references lower to ir.FieldRef instead, see
// parser.go's parseIdentExpr) back to a tuple position.
func (t *BindingTable) PatternIndex(name string) (int, bool) {
	return t.lookupPattern(name)
}
