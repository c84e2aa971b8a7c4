package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ValidTypes defines the allowed type strings for fact fields. There is no
// "float" entry: floats are forbidden because float equality would make
// match evaluation non-deterministic.
var ValidTypes = map[string]bool{
	"string": true,
	"int":    true,
	"bool":   true,
	"array":  true,
	"object": true,
}

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a FactTypeDecl against schema rules. Returns all errors
// (not fail-fast) so a compiler front end can report every problem at once.
func (d *FactTypeDecl) Validate() []ValidationError {
	var errs []ValidationError

	if d.Name == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "fact type name must not be empty"})
	}

	seen := make(map[string]bool)
	for i, f := range d.Fields {
		if seen[f.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("fields[%d].name", i),
				Message: fmt.Sprintf("duplicate field name: %q", f.Name),
			})
		}
		seen[f.Name] = true

		if !ValidTypes[f.Type] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("fields[%d].type", i),
				Message: fmt.Sprintf("invalid type %q for field %q, must be one of: string, int, bool, array, object", f.Type, f.Name),
			})
		}
	}

	return errs
}

// MarshalJSON produces JSON with a fixed field order for determinism:
// fields, name. This is NOT canonical marshaling; use MarshalCanonical for
// content-addressed hashing.
func (d FactTypeDecl) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	buf.WriteString(`"fields":`)
	fieldsBytes, err := marshalFieldDecls(d.Fields)
	if err != nil {
		return nil, err
	}
	buf.Write(fieldsBytes)

	buf.WriteString(`,"name":`)
	nameBytes, err := json.Marshal(d.Name)
	if err != nil {
		return nil, err
	}
	buf.Write(nameBytes)

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalFieldDecls(fields []FieldDecl) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		fBytes, err := f.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(fBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalJSON produces JSON with sorted field keys for determinism: name, type.
func (f FieldDecl) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	buf.WriteString(`"name":`)
	nameBytes, err := json.Marshal(f.Name)
	if err != nil {
		return nil, err
	}
	buf.Write(nameBytes)

	buf.WriteString(`,"type":`)
	typeBytes, err := json.Marshal(f.Type)
	if err != nil {
		return nil, err
	}
	buf.Write(typeBytes)

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
