// Package engine implements the forward-chaining production-rule engine: a
// RETE-style match/fire loop over a fact table the host owns the storage
// for.
//
// ARCHITECTURE:
//
// Full Recompute, Not Incremental:
// Every FireAllRules step rebuilds every node's memory from the live fact
// table rather than propagating deltas. This trades the throughput a
// classic incremental RETE network gets from delta propagation for a much
// simpler invariant: a node's memory is always exactly "every tuple that
// currently satisfies this node's constraints", full stop. There is no
// stale-memory class of bug to worry about.
//
// Firing Loop:
//  1. Graph.Refresh recomputes every alpha node (scan FactTable.Iter, keep
//     facts passing the pattern's own constraint), then every beta node
//     (cross-join parent memory with the next alpha node's memory, keep
//     combinations passing the join predicate).
//  2. Engine.selectFiring scans rules in textual (declaration) order and
//     picks the first rule with a non-empty terminal buffer, and that
//     rule's first candidate tuple in FactTable.Iter's insertion order.
//  3. ExecuteRHS runs the fired rule's action block straight through,
//     stopping at the first error.
//  4. Repeat from 1 until no rule has a candidate.
//
// Termination is not guaranteed by the matching semantics themselves — a
// rule whose RHS recreates its own match fires forever unless some other
// condition eventually breaks the cycle (the fibonacci-style recurrence is
// the canonical example). QuotaEnforcer is the host-configured backstop
// (engine.WithMaxSteps), not part of core semantics.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Fresh fact handles are allocated from a monotonic Clock.Next(), never a
// wall-clock timestamp; a deleted handle is reused (lowest first) before a
// fresh one is minted. Handle allocation is a pure function of the
// insert/delete history, so it replays identically.
//
// Deterministic Scheduling:
// Rules are scanned in declaration order, never re-sorted. FactTable.Iter
// returns facts in insertion order, which is what decides tie-breaking
// when a rule has more than one candidate tuple. No randomness, no
// concurrency in the match/fire loop itself.
package engine
