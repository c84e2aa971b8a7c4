package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/nysm/internal/ir"
)

// RuntimeErrorCode categorizes recoverable runtime errors raised by fact
// table operators, per §4.5's failure semantics.
type RuntimeErrorCode string

const (
	// ErrCodeDuplicateFact indicates factInsert was called with a storage
	// reference already present in the fact table.
	ErrCodeDuplicateFact RuntimeErrorCode = "DUPLICATE_FACT"

	// ErrCodeUnknownHandle indicates factDelete (in strict mode) was
	// called with a handle not present in the fact table.
	ErrCodeUnknownHandle RuntimeErrorCode = "UNKNOWN_HANDLE"

	// ErrCodeStepsExceeded indicates a FireAllRules session exceeded its
	// configured step quota.
	ErrCodeStepsExceeded RuntimeErrorCode = "STEPS_EXCEEDED"
)

// DuplicateFactError is returned by the fact table's Insert when storageRef
// is already recorded against a live handle. Per §4.2, this aborts only the
// operator call site, not the enclosing firing session.
type DuplicateFactError struct {
	FactType   string
	StorageRef ir.FactRef
}

func (e *DuplicateFactError) Error() string {
	return fmt.Sprintf("%s: fact of type %q already inserted for ref %q", ErrCodeDuplicateFact, e.FactType, e.StorageRef)
}

// RuntimeError returns the error code for matching, mirroring the
// discriminated-error idiom used throughout this engine.
func (e *DuplicateFactError) RuntimeError() RuntimeErrorCode { return ErrCodeDuplicateFact }

// IsDuplicateFactError reports whether err is (or wraps) a DuplicateFactError.
func IsDuplicateFactError(err error) bool {
	var de *DuplicateFactError
	return errors.As(err, &de)
}

// UnknownHandleError is returned by the fact table's Delete, in strict mode,
// when handle is not present. In permissive mode (the default, a
// host.Host.StrictFactDelete() capability flag) Delete of an unknown handle
// is silently ignored instead.
type UnknownHandleError struct {
	Handle ir.FactHandle
}

func (e *UnknownHandleError) Error() string {
	return fmt.Sprintf("%s: no fact with handle %d", ErrCodeUnknownHandle, e.Handle)
}

func (e *UnknownHandleError) RuntimeError() RuntimeErrorCode { return ErrCodeUnknownHandle }

// IsUnknownHandleError reports whether err is (or wraps) an UnknownHandleError.
func IsUnknownHandleError(err error) bool {
	var ue *UnknownHandleError
	return errors.As(err, &ue)
}
