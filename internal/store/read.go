package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/nysm/internal/ir"
	"github.com/roach88/nysm/internal/queryir"
	"github.com/roach88/nysm/internal/querysql"
)

// factBindings names every column of the facts table, unaliased, for the
// portable Select queries ReadFact and friends compile through
// querysql.SQLCompiler. Field order in the query result is decided by
// SQLCompiler.compileBindings (alphabetical), not by this map, so scanFact's
// Scan order must track that sort rather than this declaration's order.
var factBindings = map[string]string{
	"handle":       "handle",
	"type_tag":     "type_tag",
	"storage_ref":  "storage_ref",
	"inserted_seq": "inserted_seq",
	"deleted_seq":  "deleted_seq",
}

// factOrderBy is the tiebreaker §4.2's iter operation relies on: insertion
// order among facts, with handle as a secondary key for facts inserted in
// the same firing step.
var factOrderBy = []string{"inserted_seq ASC", "handle ASC"}

// FactRecord is one durable row of the facts table (§6 "Persisted state"):
// a handle, its declared fact type, the storage reference it addresses,
// the seq it was inserted at, and — once deleted — the seq it was removed
// at. DeletedSeq is nil for a still-live fact.
type FactRecord struct {
	Handle      ir.FactHandle
	FactType    string
	StorageRef  ir.FactRef
	InsertedSeq int64
	DeletedSeq  *int64
}

// Live reports whether the fact was still present in working memory as of
// the last write, i.e. no MarkFactDeleted call has stamped it.
func (r FactRecord) Live() bool {
	return r.DeletedSeq == nil
}

// FiringRecord is one durable row of the firings table: one rule
// activation, the session it belongs to, and the tuple of handles bound to
// its patterns in pattern order.
type FiringRecord struct {
	Seq       int64
	SessionID string
	RuleName  string
	Handles   []ir.FactHandle
}

// ReadFact returns the durable row for handle.
func (s *Store) ReadFact(ctx context.Context, handle ir.FactHandle) (FactRecord, error) {
	sel := queryir.Select{
		From:     "facts",
		Filter:   queryir.Equals{Field: "handle", Value: ir.NewIRInt(int64(handle))},
		Bindings: factBindings,
		OrderBy:  []string{"handle ASC"},
	}
	sqlStr, params, err := querysql.NewSQLCompiler().Compile(sel)
	if err != nil {
		return FactRecord{}, fmt.Errorf("compile read fact query: %w", err)
	}
	row := s.db.QueryRowContext(ctx, sqlStr, params...)
	return scanFactRow(row)
}

// ReadLiveFacts returns every fact of factType that has not been deleted,
// in insertion-seq order — the same order §4.2's iter operation exposes,
// so a reader reconstructing working memory sees the tie-break order the
// engine itself would use.
func (s *Store) ReadLiveFacts(ctx context.Context, factType string) ([]FactRecord, error) {
	sel := queryir.Select{
		From: "facts",
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "type_tag", Value: ir.NewIRString(factType)},
			queryir.IsNull{Field: "deleted_seq"},
		}},
		Bindings: factBindings,
		OrderBy:  factOrderBy,
	}
	sqlStr, params, err := querysql.NewSQLCompiler().Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("compile read live facts query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, params...)
	if err != nil {
		return nil, fmt.Errorf("read live facts: %w", err)
	}
	defer rows.Close()
	return scanFactRows(rows)
}

// ReadAllLiveFacts returns every live fact across all fact types, in
// insertion-seq order — the input RestoreFactTable needs to rehydrate a
// full FactTable across a contract's declared fact types at once.
func (s *Store) ReadAllLiveFacts(ctx context.Context) ([]FactRecord, error) {
	sel := queryir.Select{
		From:     "facts",
		Filter:   queryir.IsNull{Field: "deleted_seq"},
		Bindings: factBindings,
		OrderBy:  factOrderBy,
	}
	sqlStr, params, err := querysql.NewSQLCompiler().Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("compile read all live facts query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, params...)
	if err != nil {
		return nil, fmt.Errorf("read all live facts: %w", err)
	}
	defer rows.Close()
	return scanFactRows(rows)
}

// ReadAllFacts returns every fact row ever written, live or deleted, in
// insertion-seq order. Used by diagnostics and the replay CLI to show the
// complete history of a contract's working memory.
func (s *Store) ReadAllFacts(ctx context.Context) ([]FactRecord, error) {
	sel := queryir.Select{
		From:     "facts",
		Bindings: factBindings,
		OrderBy:  factOrderBy,
	}
	sqlStr, params, err := querysql.NewSQLCompiler().Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("compile read all facts query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, params...)
	if err != nil {
		return nil, fmt.Errorf("read all facts: %w", err)
	}
	defer rows.Close()
	return scanFactRows(rows)
}

func scanFactRows(rows *sql.Rows) ([]FactRecord, error) {
	out := []FactRecord{}
	for rows.Next() {
		rec, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return out, nil
}

type scannable interface {
	Scan(dest ...any) error
}

// scanFact reads one row in the column order querysql.SQLCompiler emits for
// factBindings: compileBindings sorts binding keys alphabetically, so the
// SELECT list is deleted_seq, handle, inserted_seq, storage_ref, type_tag —
// not factBindings' declaration order.
func scanFact(row scannable) (FactRecord, error) {
	var (
		deletedSeq  sql.NullInt64
		handle      uint64
		insertedSeq int64
		storageRef  string
		factType    string
	)
	if err := row.Scan(&deletedSeq, &handle, &insertedSeq, &storageRef, &factType); err != nil {
		return FactRecord{}, fmt.Errorf("scan fact: %w", err)
	}
	rec := FactRecord{
		Handle:      ir.FactHandle(handle),
		FactType:    factType,
		StorageRef:  ir.FactRef(storageRef),
		InsertedSeq: insertedSeq,
	}
	if deletedSeq.Valid {
		v := deletedSeq.Int64
		rec.DeletedSeq = &v
	}
	return rec, nil
}

func scanFactRow(row *sql.Row) (FactRecord, error) {
	rec, err := scanFact(row)
	if err == sql.ErrNoRows {
		return FactRecord{}, err
	}
	return rec, err
}

// ReadFiringsForSession returns every firing recorded during sessionID's
// FireAllRules call, in firing order (the seq primary key already reflects
// insertion order, which is firing order — §4.4 step 4 appends one row per
// executed rule before looping back to step 1).
func (s *Store) ReadFiringsForSession(ctx context.Context, sessionID string) ([]FiringRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, session_id, rule_id, binding_json
		FROM firings
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read firings for session: %w", err)
	}
	defer rows.Close()
	return scanFiringRows(rows)
}

// ReadAllFirings returns every firing ever recorded, across every session,
// in seq order.
func (s *Store) ReadAllFirings(ctx context.Context) ([]FiringRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, session_id, rule_id, binding_json
		FROM firings
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read all firings: %w", err)
	}
	defer rows.Close()
	return scanFiringRows(rows)
}

// ListSessions returns every distinct firing-session ID, in the order each
// first appears (seq order), for the trace CLI to enumerate available
// sessions.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id FROM firings GROUP BY session_id ORDER BY MIN(seq) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func scanFiringRows(rows *sql.Rows) ([]FiringRecord, error) {
	out := []FiringRecord{}
	for rows.Next() {
		var (
			seq         int64
			sessionID   string
			ruleID      string
			bindingJSON string
		)
		if err := rows.Scan(&seq, &sessionID, &ruleID, &bindingJSON); err != nil {
			return nil, fmt.Errorf("scan firing: %w", err)
		}
		handles, err := unmarshalHandles(bindingJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, FiringRecord{Seq: seq, SessionID: sessionID, RuleName: ruleID, Handles: handles})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate firings: %w", err)
	}
	return out, nil
}

// LastHandleSeq returns the highest inserted_seq recorded in facts (0 for
// an empty store). Store.RestoreFactTable seeds the restored handle clock
// from it, or from the highest restored handle when that is larger, so a
// restored FactTable never mints a handle a still-live durable row already
// claims. Deliberately independent of firings.seq,
// which is a separate DB-assigned sequence for trace ordering, not a
// handle source.
func (s *Store) LastHandleSeq(ctx context.Context) (int64, error) {
	var maxSeq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(inserted_seq) FROM facts`).Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("last handle seq: %w", err)
	}
	if !maxSeq.Valid {
		return 0, nil
	}
	return maxSeq.Int64, nil
}
