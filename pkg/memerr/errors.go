// Package memerr defines the error taxonomy shared by all agentmem packages.
//
// Callers classify failures with errors.Is against the sentinel errors, or
// with the Is* helpers. Operations wrap their failures in MemoryError so the
// failing operation is visible in the message.
package memerr

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrNotFound indicates that a requested session or memory does not exist.
	// Expired sessions and sessions claimed by consolidation report this.
	ErrNotFound = errors.New("not found")

	// ErrTransient indicates a retryable infrastructure failure, such as an
	// unreachable cache or archive backend. Callers may retry with backoff.
	ErrTransient = errors.New("transient backend failure")

	// ErrValidation indicates malformed input, such as an embedding whose
	// dimensionality does not match the collection.
	ErrValidation = errors.New("validation failed")

	// ErrConsistency indicates a concurrent-update conflict that could not be
	// resolved, such as an optimistic transaction exhausting its retries.
	ErrConsistency = errors.New("consistency conflict")

	// ErrConfiguration indicates invalid or missing configuration.
	ErrConfiguration = errors.New("invalid configuration")
)

// MemoryError wraps errors with operation context.
//
// It provides additional context about which operation failed,
// making error messages more informative for debugging.
//
// Example:
//
//	err := &MemoryError{
//	    Op:  "StoreSession",
//	    Err: ErrValidation,
//	}
//	// Error() returns: "agentmem: StoreSession: validation failed"
type MemoryError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "agentmem: <Op>: <Err>"
func (e *MemoryError) Error() string {
	return fmt.Sprintf("agentmem: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with MemoryError.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// New creates a new MemoryError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return memerr.New("StoreSession", err)
//	}
//
// Parameters:
//   - op: Name of the operation (e.g., "StoreSession", "Query", "Consolidate")
//   - err: The underlying error to wrap
//
// Returns a MemoryError, or nil if err is nil.
func New(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{
		Op:  op,
		Err: err,
	}
}

// NotFound builds a MemoryError around ErrNotFound with a descriptive detail.
//
// Example:
//
//	return memerr.NotFound("GetSession", "session %s", id)
func NotFound(op, format string, args ...interface{}) error {
	return &MemoryError{Op: op, Err: fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)}
}

// Transient builds a MemoryError around ErrTransient, keeping the cause.
func Transient(op string, cause error) error {
	if cause == nil {
		return &MemoryError{Op: op, Err: ErrTransient}
	}
	return &MemoryError{Op: op, Err: fmt.Errorf("%v: %w", cause, ErrTransient)}
}

// Validation builds a MemoryError around ErrValidation with a descriptive detail.
func Validation(op, format string, args ...interface{}) error {
	return &MemoryError{Op: op, Err: fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)}
}

// Consistency builds a MemoryError around ErrConsistency with a descriptive detail.
func Consistency(op, format string, args ...interface{}) error {
	return &MemoryError{Op: op, Err: fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConsistency)}
}

// Configuration builds a MemoryError around ErrConfiguration with a descriptive detail.
func Configuration(op, format string, args ...interface{}) error {
	return &MemoryError{Op: op, Err: fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConfiguration)}
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTransient reports whether err is or wraps ErrTransient.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// IsValidation reports whether err is or wraps ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsConsistency reports whether err is or wraps ErrConsistency.
func IsConsistency(err error) bool { return errors.Is(err, ErrConsistency) }

// IsConfiguration reports whether err is or wraps ErrConfiguration.
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }
