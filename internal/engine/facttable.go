package engine

import (
	"sort"

	"github.com/roach88/nysm/internal/ir"
)

// FactEntry is one live row of the fact table: a handle and the storage
// reference it was inserted with.
type FactEntry struct {
	Handle ir.FactHandle
	Ref    ir.FactRef
}

type factRow struct {
	factType string
	ref      ir.FactRef
}

// FactTable is working memory: the handle-indexed map of facts currently
// known to the engine, per §4.2. Handle allocation starts at 1 (NullHandle,
// 0, is reserved); the free-list from Delete is consulted before minting a
// fresh handle from the clock, reusing the lowest available handle first
// (the resolution of the Open Question on handle reuse, §9) — safe because
// a firing session captures handles into its binding tuples once per
// refresh and never retains them past the iteration that produced them.
type FactTable struct {
	clock    *Clock
	byHandle map[ir.FactHandle]factRow
	byRef    map[ir.FactRef]ir.FactHandle
	order    []ir.FactHandle // insertion order among currently-live handles
	free     []ir.FactHandle // sorted ascending
}

// NewFactTable creates an empty fact table.
func NewFactTable() *FactTable {
	return &FactTable{
		clock:    NewClock(),
		byHandle: make(map[ir.FactHandle]factRow),
		byRef:    make(map[ir.FactRef]ir.FactHandle),
	}
}

// Insert allocates a fresh handle for a fact of factType stored at ref.
// Fails with *DuplicateFactError if ref is already present (§4.2).
func (t *FactTable) Insert(factType string, ref ir.FactRef) (ir.FactHandle, error) {
	if _, exists := t.byRef[ref]; exists {
		return ir.NullHandle, &DuplicateFactError{FactType: factType, StorageRef: ref}
	}

	var h ir.FactHandle
	if len(t.free) > 0 {
		h = t.free[0]
		t.free = t.free[1:]
	} else {
		h = ir.FactHandle(t.clock.Next())
	}

	t.byHandle[h] = factRow{factType: factType, ref: ref}
	t.byRef[ref] = h
	t.order = append(t.order, h)
	return h, nil
}

// Delete removes handle from the fact table. In strict mode, deleting an
// unknown handle returns *UnknownHandleError; in permissive mode (the
// default) it is silently ignored, per §4.2.
func (t *FactTable) Delete(handle ir.FactHandle, strict bool) error {
	row, ok := t.byHandle[handle]
	if !ok {
		if strict {
			return &UnknownHandleError{Handle: handle}
		}
		return nil
	}

	delete(t.byHandle, handle)
	delete(t.byRef, row.ref)
	t.removeFromOrder(handle)
	t.insertFree(handle)
	return nil
}

// removeFromOrder deletes handle from the insertion-order slice, clearing
// the vacated trailing slot so the removed handle isn't kept reachable by
// the backing array.
func (t *FactTable) removeFromOrder(handle ir.FactHandle) {
	for i, h := range t.order {
		if h != handle {
			continue
		}
		copy(t.order[i:], t.order[i+1:])
		t.order[len(t.order)-1] = ir.NullHandle
		t.order = t.order[:len(t.order)-1]
		return
	}
}

// insertFree inserts h into the free-list, keeping it sorted ascending so
// the next Insert reuses the lowest available handle.
func (t *FactTable) insertFree(h ir.FactHandle) {
	i := sort.Search(len(t.free), func(i int) bool { return t.free[i] >= h })
	t.free = append(t.free, ir.NullHandle)
	copy(t.free[i+1:], t.free[i:])
	t.free[i] = h
}

// Iter enumerates all live facts of factType in insertion order. This order
// is observable: it determines tie-breaking in conflict resolution (§4.2).
func (t *FactTable) Iter(factType string) []FactEntry {
	var out []FactEntry
	for _, h := range t.order {
		row := t.byHandle[h]
		if row.factType == factType {
			out = append(out, FactEntry{Handle: h, Ref: row.ref})
		}
	}
	return out
}

// Lookup resolves a handle to its fact type and storage reference.
func (t *FactTable) Lookup(handle ir.FactHandle) (factType string, ref ir.FactRef, ok bool) {
	row, ok := t.byHandle[handle]
	return row.factType, row.ref, ok
}

// Len returns the number of live facts, for diagnostics and tests.
func (t *FactTable) Len() int {
	return len(t.order)
}

// Snapshot returns every currently live fact (handle, fact type, storage
// reference) in insertion order, for a caller that needs to diff working
// memory across a FireAllRules call — e.g. a durable store reconciling
// facts a rule's RHS inserted or deleted against the rows it already has.
func (t *FactTable) Snapshot() []RestoredFact {
	out := make([]RestoredFact, 0, len(t.order))
	for _, h := range t.order {
		row := t.byHandle[h]
		out = append(out, RestoredFact{Handle: h, FactType: row.factType, Ref: row.ref})
	}
	return out
}

// RestoredFact is one durable fact row rehydrated into a FactTable by
// RestoreFactTable, preserving the handle it was persisted under.
type RestoredFact struct {
	Handle   ir.FactHandle
	FactType string
	Ref      ir.FactRef
}

// RestoreFactTable rebuilds working memory from durable fact rows in the
// order they were inserted (store.Store persists them in that order
// already), preserving every handle so a resumed firing session sees
// identical bindings to the session that wrote them. lastSeq seeds the
// handle clock via NewClockAt's "resume from last known position" support,
// so a subsequent Insert never collides with a restored handle.
func RestoreFactTable(facts []RestoredFact, lastSeq int64) *FactTable {
	t := &FactTable{
		clock:    NewClockAt(lastSeq),
		byHandle: make(map[ir.FactHandle]factRow, len(facts)),
		byRef:    make(map[ir.FactRef]ir.FactHandle, len(facts)),
	}
	for _, f := range facts {
		t.byHandle[f.Handle] = factRow{factType: f.FactType, ref: f.Ref}
		t.byRef[f.Ref] = f.Handle
		t.order = append(t.order, f.Handle)
	}
	return t
}
