package ir

// Version constants for the IR schema and the engine implementation.
const (
	// IRVersion is the IR schema version. Bump when the shape of Rule,
	// Pattern, Expr, or Stmt changes in a way that invalidates previously
	// compiled rule sets.
	IRVersion = "1"

	// EngineVersion is the rule engine's implementation version.
	EngineVersion = "0.1.0"
)
