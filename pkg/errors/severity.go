// Package errors provides severity-aware error types.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Severity indicates error impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// QuoteError is a structured error with context.
type QuoteError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	Field       string   `json:"field,omitempty"`
	Recoverable bool     `json:"recoverable"`
	Err         error    `json:"-"`
}

func (e *QuoteError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s (field: %s)", e.Severity, e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
}

func (e *QuoteError) Unwrap() error { return e.Err }

// Error codes
const (
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeConfigInvalid  = "CONFIG_INVALID"
	ErrCodeStorageFailed  = "STORAGE_FAILED"
	ErrCodeDeliveryFailed = "DELIVERY_FAILED"
)

// NewNotFoundError reports a catalog id that does not exist. Catalog ids come
// from a closed set owned by the caller, so this is a programmer error.
func NewNotFoundError(kind, id string) *QuoteError {
	return &QuoteError{
		Code:        ErrCodeNotFound,
		Message:     fmt.Sprintf("unknown %s id: %q", kind, id),
		Severity:    SeverityError,
		Field:       kind,
		Recoverable: false,
	}
}

// NewInvalidInputError reports a malformed request field.
func NewInvalidInputError(field, msg string) *QuoteError {
	return &QuoteError{
		Code:        ErrCodeInvalidInput,
		Message:     msg,
		Severity:    SeverityWarning,
		Field:       field,
		Recoverable: true,
	}
}

// NewConfigError reports an invalid catalog configuration.
func NewConfigError(msg string) *QuoteError {
	return &QuoteError{
		Code:        ErrCodeConfigInvalid,
		Message:     msg,
		Severity:    SeverityFatal,
		Recoverable: false,
	}
}

// NewStorageError wraps a persistence failure.
func NewStorageError(op string, err error) *QuoteError {
	return &QuoteError{
		Code:        ErrCodeStorageFailed,
		Message:     fmt.Sprintf("%s failed: %v", op, err),
		Severity:    SeverityError,
		Recoverable: true,
		Err:         err,
	}
}

// NewDeliveryError wraps an email delivery failure.
func NewDeliveryError(recipient string, err error) *QuoteError {
	return &QuoteError{
		Code:        ErrCodeDeliveryFailed,
		Message:     fmt.Sprintf("delivery to %s failed: %v", recipient, err),
		Severity:    SeverityWarning,
		Field:       recipient,
		Recoverable: true,
		Err:         err,
	}
}

// HasCode reports whether err, or anything it wraps, is a QuoteError with code.
func HasCode(err error, code string) bool {
	var qe *QuoteError
	if stderrors.As(err, &qe) {
		return qe.Code == code
	}
	return false
}

// IsNotFound reports whether err is a NOT_FOUND QuoteError.
func IsNotFound(err error) bool { return HasCode(err, ErrCodeNotFound) }

// IsInvalidInput reports whether err is an INVALID_INPUT QuoteError.
func IsInvalidInput(err error) bool { return HasCode(err, ErrCodeInvalidInput) }
