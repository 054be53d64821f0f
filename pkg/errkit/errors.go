// Package errkit classifies failures into a small taxonomy of kinds with
// severity and retryability, and provides a bounded-backoff retry executor
// for the retryable ones.
package errkit

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Kind identifies the class of a failure
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindSecurity      Kind = "security"
	KindRateLimit     Kind = "rate_limit"
	KindFileSystem    Kind = "filesystem"
	KindNetwork       Kind = "network"
	KindAPI           Kind = "api"
	KindConfiguration Kind = "configuration"
	KindInternal      Kind = "internal"
)

// Severity indicates how serious an error is
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// kindDefaults maps each kind to its default severity and retryability
var kindDefaults = map[Kind]struct {
	severity  Severity
	retryable bool
}{
	KindValidation:    {SeverityWarning, false},
	KindNotFound:      {SeverityWarning, false},
	KindSecurity:      {SeverityError, false},
	KindRateLimit:     {SeverityWarning, false},
	KindFileSystem:    {SeverityError, false},
	KindNetwork:       {SeverityWarning, true},
	KindAPI:           {SeverityWarning, true},
	KindConfiguration: {SeverityCritical, false},
	KindInternal:      {SeverityCritical, false},
}

// Error is a classified error carrying severity, retryability and a
// correlation ID for cross-log tracing. Created at the point of failure and
// never mutated afterward.
type Error struct {
	Kind          Kind                   `json:"kind"`
	Severity      Severity               `json:"severity"`
	Message       string                 `json:"message"`
	Retryable     bool                   `json:"retryable"`
	RetryAfter    time.Duration          `json:"retry_after,omitempty"`
	CorrelationID string                 `json:"correlation_id"`
	Context       map[string]interface{} `json:"context,omitempty"`
	Err           error                  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with the kind's default severity and
// retryability. Security and internal errors are logged at creation.
func New(kind Kind, message string) *Error {
	return newError(kind, message, nil)
}

// Newf creates a classified error with a formatted message
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return newError(kind, fmt.Sprintf(format, args...), nil)
}

// Wrap classifies an existing error. A nil cause returns nil. An already
// classified error keeps its original kind and correlation ID.
func Wrap(kind Kind, err error, message string) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	return newError(kind, message, err)
}

func newError(kind Kind, message string, cause error) *Error {
	defaults, ok := kindDefaults[kind]
	if !ok {
		defaults = kindDefaults[KindInternal]
		kind = KindInternal
	}

	e := &Error{
		Kind:          kind,
		Severity:      defaults.severity,
		Message:       message,
		Retryable:     defaults.retryable,
		CorrelationID: uuid.NewString(),
		Err:           cause,
	}

	// Security and internal failures are always logged
	if kind == KindSecurity || kind == KindInternal {
		log.Error().
			Str("kind", string(kind)).
			Str("correlation_id", e.CorrelationID).
			Err(cause).
			Msg(message)
	}

	return e
}

// WithContext attaches a key/value pair to the error's context
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRetryAfter sets the delay the caller should honor before retrying
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// As extracts a classified error from an error chain. Returns nil if the
// chain contains no *Error.
func As(err error) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	return nil
}

// KindOf returns the kind of an error, or KindInternal for unclassified ones
func KindOf(err error) Kind {
	if e := As(err); e != nil {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether an error may be retried. Unclassified errors
// are not retryable.
func IsRetryable(err error) bool {
	if e := As(err); e != nil {
		return e.Retryable
	}
	return false
}

// FromStatusCode classifies an upstream HTTP status. Transient statuses
// (5xx, 429) produce retryable API errors.
func FromStatusCode(status int, message string) *Error {
	e := New(KindAPI, message).WithContext("status", status)
	e.Retryable = status >= 500 || status == 429
	return e
}
