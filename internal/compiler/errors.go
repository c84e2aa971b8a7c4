package compiler

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	cuetoken "cuelang.org/go/cue/token"
)

// CompileError is the standard compile-time error type for problems the
// CUE front end and the expression parser detect. An expression-parser
// error carries the Pos of the CUE string value the expression came from;
// Pos is the zero value only when there is no CUE value to point at. The
// semantic validator (validate.go) reports *ValidationError instead.
type CompileError struct {
	Rule    string
	Field   string
	Message string
	Pos     cuetoken.Pos
}

func (e *CompileError) Error() string {
	prefix := e.Field
	if e.Rule != "" {
		prefix = fmt.Sprintf("rule %q: %s", e.Rule, e.Field)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			prefix, e.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// CompileDiagnostic marks CompileError as a host-facing diagnostic, per
// the error-kind taxonomy's "compile-time errors are surfaced as host
// diagnostics" rule.
func (e *CompileError) CompileDiagnostic() {}

// formatCUEError extracts position info from CUE errors reported by the
// cuelang.org/go/cue front end.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
