// Package ir provides canonical intermediate representation types for the
// rule engine: fact types, fact handles, patterns, the closed expression and
// statement fragment rule LHS/RHS bodies are restricted to, and compiled
// rules.
//
// This package contains type definitions and their encoding, hashing and
// validation helpers. All other internal packages
// import ir; ir imports nothing internal. This ensures IR remains the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - values are string/int64/bool/array/object,
//     matching the host's 256-bit integer and struct semantics without
//     introducing non-deterministic float comparison.
//   - Fact handles are dense uint64 identifiers; 0 is reserved as the null
//     handle and is never returned by factInsert.
//   - All JSON tags use snake_case.
package ir
