// Package store provides SQLite-backed durable storage for one contract
// instance's fact table and firing trace (§6 "Persisted state").
//
// The store implements an append-only log with:
//   - Facts: every handle ever allocated, its type tag, and the storage
//     reference it addresses (deletion marks deleted_seq rather than
//     removing the row, per CP-2 below).
//   - Firings: every rule activation across every FireAllRules session,
//     read back by the trace and replay CLI commands. The conformance
//     harness checks its trace assertions against the in-memory
//     engine.FiringTrace and does not read this table.
//
// # Critical Patterns
//
// CP-2: Logical Identity and Time
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps.
//   - Enables deterministic replay regardless of wall time.
//
// CP-4: Deterministic Query Results
//   - All queries order by seq ASC (ties broken by handle/rowid ASC).
//   - Ensures identical results across replays.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes.
//   - synchronous=NORMAL: Balance durability/performance.
//   - busy_timeout=5000: Wait for locks up to 5 seconds.
//   - foreign_keys=ON: Enforce referential integrity.
//
// binding_json is canonical JSON (RFC 8785, internal/ir/canonical.go) of
// the fired tuple's handles in pattern order, so two replays of the same
// rule set over the same fact sequence produce byte-identical traces.
package store
