package store

import (
	"context"
	"fmt"

	"github.com/roach88/nysm/internal/ir"
)

// WriteFact durably records one fact-table row: a handle, its declared
// fact type, the host storage reference it addresses, and the logical seq
// it was inserted at. Uses ON CONFLICT(handle) DO NOTHING for idempotency —
// replaying the same insert twice is a no-op.
func (s *Store) WriteFact(ctx context.Context, rec FactRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO facts (handle, type_tag, storage_ref, inserted_seq, deleted_seq)
		VALUES (?, ?, ?, ?, NULL)
		ON CONFLICT(handle) DO NOTHING
	`,
		uint64(rec.Handle),
		rec.FactType,
		string(rec.StorageRef),
		rec.InsertedSeq,
	)
	if err != nil {
		return fmt.Errorf("write fact: %w", err)
	}
	return nil
}

// MarkFactDeleted stamps handle's row with deleted_seq, per CP-2: the row
// stays (append-only log), liveness is derived by the reader filtering on
// deleted_seq IS NULL, not by removing the row (§4.2 "Deletion removes the
// handle" is a working-memory statement; the durable log never forgets).
func (s *Store) MarkFactDeleted(ctx context.Context, handle ir.FactHandle, seq int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE facts SET deleted_seq = ? WHERE handle = ? AND deleted_seq IS NULL
	`, seq, uint64(handle))
	if err != nil {
		return fmt.Errorf("mark fact deleted: %w", err)
	}
	return nil
}

// WriteFiring appends one rule activation to the durable firing trace: the
// session it belongs to, the rule that fired, and the tuple of handles
// bound to its patterns in pattern order (§4.4, §8 trace assertions).
// binding_json is the canonical JSON encoding of that tuple, so two
// replays of the same rule set over the same fact sequence produce
// byte-identical rows.
func (s *Store) WriteFiring(ctx context.Context, sessionID, ruleName string, handles []ir.FactHandle) (seq int64, err error) {
	bindingJSON, err := marshalHandles(handles)
	if err != nil {
		return 0, fmt.Errorf("write firing: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO firings (session_id, rule_id, binding_json)
		VALUES (?, ?, ?)
	`, sessionID, ruleName, bindingJSON)
	if err != nil {
		return 0, fmt.Errorf("write firing: %w", err)
	}

	seq, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write firing: last insert id: %w", err)
	}
	return seq, nil
}
