// Package apperr defines the typed error taxonomy shared across the engine.
// Modeled on backend's pkg/errors.AppError, extended with the full kind set
// the knowledge graph core needs to surface to callers without leaking
// internal exception types.
package apperr

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure so callers can branch on it without string
// matching. Every user-visible operation returns either a success envelope
// or an error carrying one of these kinds.
type Kind string

const (
	NotFound          Kind = "NOT_FOUND"
	Conflict          Kind = "CONFLICT"
	DimensionMismatch Kind = "DIMENSION_MISMATCH"
	UnknownVocabType  Kind = "UNKNOWN_VOCAB_TYPE"
	Stale             Kind = "STALE"
	IntegrityError    Kind = "INTEGRITY_ERROR"
	ProviderUnavailable Kind = "PROVIDER_UNAVAILABLE"
	ProviderInvalid   Kind = "PROVIDER_INVALID"
	QuotaExceeded     Kind = "QUOTA_EXCEEDED"
	Cancelled         Kind = "CANCELLED"
	Timeout           Kind = "TIMEOUT"
	Internal          Kind = "INTERNAL"
	Validation        Kind = "VALIDATION"
)

// Error is the single error type surfaced across package boundaries.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, apperr.NotFound) style checks via a sentinel
// wrapper — see KindOf for the usual call site.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Retryable reports whether an error of this kind should be retried with
// backoff inside a job before being surfaced as a terminal failure.
func (k Kind) Retryable() bool {
	switch k {
	case ProviderUnavailable, Timeout:
		return true
	default:
		return false
	}
}

// KindOf extracts the Kind from err, defaulting to Internal for unrecognized
// errors so callers never have to special-case "unknown" themselves.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
