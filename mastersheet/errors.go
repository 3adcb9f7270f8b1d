/*
errors.go - Centralized error types for the master-sheet engine

PURPOSE:
  All session-engine error types in one place. Callers branch with
  errors.Is/errors.As; structured types carry the context the UI needs
  (which record conflicted, which field failed validation).

ERROR CATEGORIES:
  1. Edit errors    - Rejected before entering the buffer
  2. Commit errors  - Empty batches, per-record conflicts
  3. Transport errors - The request never reached a verdict; retryable

SEE ALSO:
  - buffer.go: Returns validation errors
  - session.go: Returns commit and transport errors
*/
package mastersheet

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when an edit does not match the field's
	// declared type. The edit never enters the buffer.
	ErrValidation = errors.New("edit failed validation")

	// ErrEmptyCommit is returned when a commit is attempted with no
	// pending edits in the snapshot.
	ErrEmptyCommit = errors.New("nothing to commit")

	// ErrConflict is returned per record when the server's version has
	// moved past the one the client saw. Non-fatal to the batch.
	ErrConflict = errors.New("version conflict")

	// ErrTransport is returned when a fetch or commit failed to reach a
	// verdict. Retryable; local state is left untouched.
	ErrTransport = errors.New("transport failure")

	// ErrUnknownField is returned when an edit references a field the
	// schema does not declare.
	ErrUnknownField = errors.New("unknown field")

	// ErrUnknownRecord is returned when an edit or read references a
	// record the cache has never seen.
	ErrUnknownRecord = errors.New("unknown record")

	// ErrForbidden is returned when the caller's role does not permit
	// the requested command.
	ErrForbidden = errors.New("role not permitted")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports why a value was rejected for a field.
type ValidationError struct {
	RecordID RecordID
	FieldID  FieldID
	Declared FieldType
	Value    Value
	Cause    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %s declared %s, value %q rejected: %v",
		e.FieldID, e.Declared, e.Value, e.Cause)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError reports a per-record version conflict from a bulk update.
// The record's pending edits are retained; the caller may refetch and retry.
type ConflictError struct {
	RecordID       RecordID
	CurrentVersion int64
	Reason         string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("record %s rejected (server at version %d): %s",
		e.RecordID, e.CurrentVersion, e.Reason)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// TransportError wraps a failure to reach the record source. The buffer
// and cache are guaranteed untouched when one is returned.
type TransportError struct {
	Op    string // "fetch" or "commit"
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error { return ErrTransport }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the operation might succeed if repeated.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrEmptyCommit) ||
		errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrUnknownRecord)
}
