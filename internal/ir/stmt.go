package ir

// Stmt is a sealed interface over an RHS statement. A rule's action block
// is a straight-line sequence of Stmt values with no branching — per-rule
// conditional behavior lives in pattern constraints, not in the RHS.
type Stmt interface {
	stmtNode()
}

// Assign mutates a field of a bound fact. Target identifies the field by
// pattern position; per the update requirement, every binding touched by
// an Assign must have a subsequent Update statement for the same binding
// before the RHS ends — checked at compile time, not enforced here.
type Assign struct {
	Target FieldRef `json:"target"`
	Value  Expr     `json:"value"`
}

func (Assign) stmtNode() {}

// Update is the `update` operator: it declares that Binding's fact may have
// changed. Under the full-recompute evaluation model this carries no
// runtime effect of its own (the next refresh reads current storage
// regardless); it exists so the compiler can enforce the update
// requirement and so an alternative incremental engine has a hook.
type Update struct {
	Binding string `json:"binding"`
}

func (Update) stmtNode() {}

// FactInsert allocates a new fact of FactType with the given field values
// and binds the resulting handle to Into for the remainder of the RHS.
type FactInsert struct {
	Into     string          `json:"into"`
	FactType string          `json:"fact_type"`
	Fields   map[string]Expr `json:"fields"`
}

func (FactInsert) stmtNode() {}

// FactDelete removes the fact identified by Handle (an expression that must
// evaluate to a fact handle, typically a BindingRef) from working memory.
type FactDelete struct {
	Handle Expr `json:"handle"`
}

func (FactDelete) stmtNode() {}

// Effect is a generic host-effect call — a transfer, an external call, or
// any other side effect the matching engine itself has no opinion about.
// Executed via host.Host.Effect.
type Effect struct {
	Kind string          `json:"kind"`
	Args map[string]Expr `json:"args"`
}

func (Effect) stmtNode() {}
