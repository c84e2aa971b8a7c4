package ir

// FactRef is an opaque reference to a fact instance's storage cell. The
// engine never dereferences it; it is captured once at factInsert time and
// handed back to the host for field loads/stores. Its concrete shape (e.g.
// an account address plus a storage slot) is a host concern — the engine
// only requires that equal facts compare equal as Go values, since the fact
// table rejects inserting the same reference twice.
type FactRef string

// NullRef is the zero value of FactRef; no real fact ever uses it.
const NullRef FactRef = ""
