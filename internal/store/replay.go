package store

import (
	"context"
	"fmt"

	"github.com/roach88/nysm/internal/engine"
)

// RestoreFactTable rebuilds an engine.FactTable from every live fact this
// store has durably recorded, preserving each fact's original handle so a
// resumed contract instance sees identical bindings to the session that
// persisted them (§6 "Persisted state": "a dense handle→reference map plus
// type-indexed buckets").
func (s *Store) RestoreFactTable(ctx context.Context) (*engine.FactTable, error) {
	rows, err := s.ReadAllLiveFacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore fact table: %w", err)
	}

	restored := make([]engine.RestoredFact, len(rows))
	for i, r := range rows {
		restored[i] = engine.RestoredFact{Handle: r.Handle, FactType: r.FactType, Ref: r.StorageRef}
	}

	lastSeq, err := s.LastHandleSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore fact table: %w", err)
	}
	for _, r := range rows {
		if int64(r.Handle) > lastSeq {
			lastSeq = int64(r.Handle)
		}
	}

	return engine.RestoreFactTable(restored, lastSeq), nil
}

// PersistTrace durably writes every firing in trace, in order, under
// trace.SessionID. Called once after a FireAllRules call returns (whether
// or not it errored — §4.5 "a failing step still leaves the prior steps'
// effects in place") so the trace and replay CLI commands can read the
// session back later.
func (s *Store) PersistTrace(ctx context.Context, trace *engine.FiringTrace) error {
	for _, f := range trace.Firings {
		if _, err := s.WriteFiring(ctx, trace.SessionID, f.RuleName, f.Handles); err != nil {
			return fmt.Errorf("persist trace: %w", err)
		}
	}
	return nil
}

// ReplayTrace re-reads a persisted session's firings and returns them as
// an engine.FiringTrace, the same shape FireAllRules returns live — used
// by the replay CLI and by determinism tests that compare a live run
// against its durable record.
func (s *Store) ReplayTrace(ctx context.Context, sessionID string) (*engine.FiringTrace, error) {
	records, err := s.ReadFiringsForSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("replay trace: %w", err)
	}

	trace := &engine.FiringTrace{SessionID: sessionID}
	for i, r := range records {
		trace.Firings = append(trace.Firings, engine.Firing{
			Step:     i + 1,
			RuleName: r.RuleName,
			Handles:  r.Handles,
		})
	}
	return trace, nil
}
