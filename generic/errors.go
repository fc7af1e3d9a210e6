/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every rejected operation returns one of these so callers can map it 1:1
  to a form-field message or an HTTP status. Nothing here is retried.

ERROR CATEGORIES:
  1. Validation - a field or invariant violation (ValidationError,
     ValidationErrors, InvalidPeriodError)
  2. Not found - a referenced entity does not exist (NotFoundError)
  3. Temporal conflicts - an invariant about to be violated (OverlapError,
     AmbiguousAssignmentError)
  4. Locked records - mutation of an approved contract (StaleStateError)
  5. Partial writes - a multi-step write failed halfway (PartialFailureError)

USAGE:
  if errors.Is(err, generic.ErrValidation) {
      var verrs generic.ValidationErrors
      if errors.As(err, &verrs) {
          return verrs.ToMap() // field -> message
      }
  }

SEE ALSO:
  - api/handlers.go: maps these to HTTP status codes
  - benefit/resolver.go: OverlapError, AmbiguousAssignmentError, PartialFailureError
  - fixedterm/ledger.go: InvalidPeriodError
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is matched by every field or invariant violation.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidPeriod is matched by fixed-term period continuity violations.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrOverlap is returned when a write would make two validity windows overlap.
	ErrOverlap = errors.New("validity windows overlap")

	// ErrAmbiguous is returned when the store holds more than one record
	// where the invariants allow at most one.
	ErrAmbiguous = errors.New("ambiguous active record")

	// ErrStaleState is returned when mutating a record whose state forbids it.
	ErrStaleState = errors.New("record is locked in its current state")

	// ErrPartialFailure is returned when a multi-step write stopped halfway.
	ErrPartialFailure = errors.New("partial failure")
)

// =============================================================================
// VALIDATION ERRORS
// =============================================================================

// ValidationError is a single field-scoped violation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a *ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ValidationErrors collects every violation found in one pass.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, err := range v {
		msgs = append(msgs, err.Field+": "+err.Reason)
	}
	return strings.Join(msgs, "; ")
}

func (v ValidationErrors) Unwrap() []error {
	errs := make([]error, 0, len(v)+1)
	errs = append(errs, ErrValidation)
	for i := range v {
		errs = append(errs, &v[i])
	}
	return errs
}

// ToMap returns field -> reason, the shape form layers bind to.
func (v ValidationErrors) ToMap() map[string]string {
	result := make(map[string]string, len(v))
	for _, err := range v {
		result[err.Field] = err.Reason
	}
	return result
}

// Add appends a violation.
func (v *ValidationErrors) Add(field, reason string) {
	*v = append(*v, ValidationError{Field: field, Reason: reason})
}

// Err returns nil when nothing was collected.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Fields lists the offending field names in order.
func (v ValidationErrors) Fields() []string {
	fields := make([]string, len(v))
	for i, err := range v {
		fields[i] = err.Field
	}
	return fields
}

// =============================================================================
// PERIOD ERRORS
// =============================================================================

// PeriodRule names the continuity invariant a period broke.
type PeriodRule string

const (
	RuleNotADate         PeriodRule = "not_a_date"
	RuleEndBeforeStart   PeriodRule = "end_before_start"
	RuleGapOrOverlap     PeriodRule = "gap_or_overlap"
	RuleFuturePeriod     PeriodRule = "future_period"
	RuleKindMismatch     PeriodRule = "kind_mismatch"
	RuleSequenceMismatch PeriodRule = "sequence_mismatch"
)

// InvalidPeriodError reports which invariant a fixed-term period broke.
// It matches both ErrInvalidPeriod and ErrValidation.
type InvalidPeriodError struct {
	Sequence int
	Rule     PeriodRule
	Field    string
	Day      *Date // the expected start for gap_or_overlap, the offending end for future_period
	Reason   string
}

func (e *InvalidPeriodError) Error() string {
	msg := fmt.Sprintf("period %d: %s", e.Sequence, e.Rule)
	if e.Day != nil {
		msg += " at " + e.Day.String()
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidPeriodError) Unwrap() []error {
	return []error{ErrInvalidPeriod, ErrValidation}
}

// =============================================================================
// NOT FOUND / CONFLICT ERRORS
// =============================================================================

// NotFoundError names the missing entity and the key it was looked up by.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// OverlapError is returned when a new validity window would start inside an
// existing one.
type OverlapError struct {
	Key       string
	Existing  Window
	Requested Date
	Reason    string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("overlap on %s: %s conflicts with %s: %s",
		e.Key, e.Requested, e.Existing, e.Reason)
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// AmbiguousAssignmentError is returned instead of silently picking one of
// several records that all claim to be in effect.
type AmbiguousAssignmentError struct {
	Key string
	On  *Date
	IDs []string
}

func (e *AmbiguousAssignmentError) Error() string {
	at := ""
	if e.On != nil {
		at = " on " + e.On.String()
	}
	return fmt.Sprintf("%d active assignments for %s%s: %s",
		len(e.IDs), e.Key, at, strings.Join(e.IDs, ", "))
}

func (e *AmbiguousAssignmentError) Unwrap() error { return ErrAmbiguous }

// StaleStateError is returned when an operation is attempted on a record
// whose lifecycle state does not allow it (e.g. editing an approved contract).
type StaleStateError struct {
	Entity    string
	ID        string
	State     string
	Operation string
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in state %s", e.Operation, e.Entity, e.ID, e.State)
}

func (e *StaleStateError) Unwrap() error { return ErrStaleState }

// PartialFailureError is returned when the first write of a multi-step
// operation succeeded and a later one failed. Completed names what was
// persisted so the caller can reconcile by hand.
type PartialFailureError struct {
	Operation string
	Completed string
	Failed    string
	Cause     error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s partially applied: %s succeeded, %s failed: %v",
		e.Operation, e.Completed, e.Failed, e.Cause)
}

func (e *PartialFailureError) Unwrap() []error {
	return []error{ErrPartialFailure, e.Cause}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the request clashes with the current state of
// the records rather than with its own content.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOverlap) ||
		errors.Is(err, ErrAmbiguous) ||
		errors.Is(err, ErrStaleState)
}
