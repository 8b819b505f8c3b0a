// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithMessage returns a copy of the error with a more specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg, Cause: e.Cause}
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Audit errors. ErrInsufficientHistory is retryable: the forward window
	// simply has not produced enough closed bars yet.
	ErrInsufficientHistory = &Error{Code: "INSUFFICIENT_HISTORY", Message: "not enough forward candle data to audit yet"}
	ErrNeutralPlan         = &Error{Code: "NEUTRAL_PLAN", Message: "neutral plans are not simulated"}
	ErrAuditInFlight       = &Error{Code: "AUDIT_IN_FLIGHT", Message: "audit already running for this snapshot"}

	// Collaborator errors
	ErrMalformedSeries        = &Error{Code: "MALFORMED_SERIES", Message: "candle series violates ordering invariant"}
	ErrMarketDataUnavailable  = &Error{Code: "MARKET_DATA_UNAVAILABLE", Message: "market data collaborator failed"}
	ErrNarrativeFailed        = &Error{Code: "NARRATIVE_FAILED", Message: "post-mortem narrative request failed"}

	// Storage errors
	ErrSnapshotNotFound = &Error{Code: "SNAPSHOT_NOT_FOUND", Message: "analysis snapshot not found"}

	// API errors
	ErrJobNotFound  = &Error{Code: "JOB_NOT_FOUND", Message: "job not found"}
	ErrBadRequest   = &Error{Code: "BAD_REQUEST", Message: "malformed request"}
	ErrUnauthorized = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid API key"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// LLM errors
	ErrLLMFailed = &Error{Code: "LLM_FAILED", Message: "LLM request failed"}
)
