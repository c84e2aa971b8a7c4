package ir

// FieldDecl declares one field of a fact type: its name and its value
// type, restricted to the same closed set IRValue supports.
type FieldDecl struct {
	Name string `json:"name"`
	Type string `json:"type"` // one of ValidTypes
}

// FactTypeDecl declares a named record type with a fixed, ordered set of
// typed fields. Every fact instance of this type lives in host storage and
// is addressed by a FactRef; the engine reads fields through the host
// interface rather than copying them.
type FactTypeDecl struct {
	Name   string      `json:"name"`
	Fields []FieldDecl `json:"fields"`
}

// FieldType looks up the declared type of a field by name, returning false
// if the fact type has no such field.
func (d FactTypeDecl) FieldType(name string) (string, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return "", false
}

// RuleSet is a fully compiled collection of fact type declarations and
// rules, the output of the CUE textual front end (and the input to the LHS
// compiler).
type RuleSet struct {
	FactTypes []FactTypeDecl `json:"fact_types"`
	Rules     []Rule         `json:"rules"`
}

// FactType looks up a declared fact type by name.
func (rs RuleSet) FactType(name string) (FactTypeDecl, bool) {
	for _, d := range rs.FactTypes {
		if d.Name == name {
			return d, true
		}
	}
	return FactTypeDecl{}, false
}
