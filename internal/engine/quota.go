package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer tracks the number of rule firings within one FireAllRules
// session and enforces a maximum steps limit.
//
// Per §4.4, termination of the firing driver is not guaranteed in general —
// the rule language admits non-terminating rule sets (a rule whose RHS
// re-creates a match for itself, e.g. the fibonacci scenario, fires forever
// unless some other rule's condition eventually stops holding). The quota
// is a host-level safety net, analogous to a gas limit, not part of the
// matching semantics themselves.
type QuotaEnforcer struct {
	maxSteps int // Maximum allowed steps for this session
	current  int // Current step count
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
//
// maxSteps: maximum number of rule firings allowed in one FireAllRules call.
// Configured via engine.WithMaxSteps(); unlimited (0) by default in the core
// matching semantics.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{
		maxSteps: maxSteps,
		current:  0,
	}
}

// Check increments the step counter and validates against the limit.
//
// Returns StepsExceededError if the quota is exceeded. maxSteps == 0 means
// unlimited: Check never fails. Called once per firing, before executing
// the selected rule's RHS.
func (q *QuotaEnforcer) Check(sessionID string) error {
	if q.maxSteps == 0 {
		q.current++
		return nil
	}
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			SessionID: sessionID,
			Steps:     q.current,
			Limit:     q.maxSteps,
		}
	}
	return nil
}

// Reset resets the step counter to 0.
// Engine.FireAllRules calls it at the start of every call, so the step
// bound applies to each FireAllRules invocation separately.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the current step count.
// Used for logging and diagnostics.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
// Used for logging and diagnostics.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when a FireAllRules session exceeds the
// max steps quota. It terminates the firing session: per §4.5, no partial
// side effects from the aborting step remain, and it propagates through
// FireAllRules via standard error wrapping.
type StepsExceededError struct {
	SessionID string // The firing session that exceeded the quota
	Steps     int    // Number of steps taken
	Limit     int    // Maximum allowed steps
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("session %s exceeded max steps quota: %d steps > %d limit",
		e.SessionID, e.Steps, e.Limit)
}

// RuntimeError returns the error code for matching, mirroring the
// discriminated-error idiom used throughout this engine.
func (e *StepsExceededError) RuntimeError() RuntimeErrorCode { return ErrCodeStepsExceeded }

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
