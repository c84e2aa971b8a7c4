package ir

// FactHandle is a dense, injective identifier for a fact instance currently
// present in working memory. Handles are allocated by factInsert starting
// at 1; NullHandle (0) is reserved and never returned by a successful
// insert, so handle values can be compared against it as an "absent" marker
// without a separate ok-bool.
type FactHandle uint64

// NullHandle is the reserved zero handle.
const NullHandle FactHandle = 0

// Valid reports whether h is a non-null handle value. It does not consult
// the fact table — use it only to distinguish an uninitialized handle from
// one that has been assigned, not to check liveness.
func (h FactHandle) Valid() bool {
	return h != NullHandle
}
