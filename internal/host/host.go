// Package host defines the narrow interface the matching engine uses to
// reach outside its own working-memory model: loading and storing fact
// fields, and invoking host-level effects (transfers, external calls). The
// engine never touches storage directly — it reaches the surrounding
// contract runtime only through this injected collaborator, never through a
// concrete dependency threaded through call sites.
package host

import (
	"context"

	"github.com/roach88/nysm/internal/ir"
)

// Host is the engine's view of the surrounding contract runtime. A real
// implementation backs it with persistent storage keyed by ir.FactRef; test
// code uses Mock.
type Host interface {
	// LoadField reads one field of the fact stored at ref, whose declared
	// type is factType. Returns an error if the field is unset or the ref
	// is unknown to the host.
	LoadField(ctx context.Context, ref ir.FactRef, factType, field string) (ir.IRValue, error)

	// StoreField writes one field of the fact stored at ref. The engine
	// calls this only for fields named as the Target of an ir.Assign
	// statement.
	StoreField(ctx context.Context, ref ir.FactRef, factType, field string, value ir.IRValue) error

	// AllocateRef reserves storage for a new fact of factType with the
	// given initial field values and returns the reference the fact table
	// should record alongside the handle ir.FactInsert allocates.
	AllocateRef(ctx context.Context, factType string, fields map[string]ir.IRValue) (ir.FactRef, error)

	// ReleaseRef frees storage previously allocated by AllocateRef, called
	// when ir.FactDelete removes a fact from the fact table.
	ReleaseRef(ctx context.Context, ref ir.FactRef) error

	// Effect executes a generic host-level side effect (a transfer, an
	// external call) named by kind with the given resolved arguments.
	Effect(ctx context.Context, kind string, args map[string]ir.IRValue) error

	// StrictFactDelete reports whether FactDelete of an unknown handle
	// should surface *engine.UnknownHandleError (strict mode) or be
	// silently ignored (permissive mode, the default per §4.2).
	StrictFactDelete() bool
}
