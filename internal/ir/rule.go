package ir

// Rule is the ordered triple (name, patterns, action-block). Patterns are
// ordered as written; this order defines join order and binding scope —
// pattern k may reference bindings introduced by patterns 0..k-1.
type Rule struct {
	Name     string    `json:"name"`
	Patterns []Pattern `json:"patterns"`
	Then     []Stmt    `json:"then"`
}
