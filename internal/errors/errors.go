package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Reel error code.
type ErrorCode string

const (
	ErrInvalidRequest         ErrorCode = "INVALID_REQUEST"         // 400
	ErrNotFound               ErrorCode = "NOT_FOUND"               // 404
	ErrFileNotFound           ErrorCode = "FILE_NOT_FOUND"          // 404
	ErrConflict               ErrorCode = "CONFLICT"                // 409
	ErrInsufficientCandidates ErrorCode = "INSUFFICIENT_CANDIDATES" // 422
	ErrCancelled              ErrorCode = "CANCELLED"               // 499
	ErrInternal               ErrorCode = "INTERNAL"                // 500
	ErrStageRetryExhausted    ErrorCode = "STAGE_RETRY_EXHAUSTED"   // 502
)

// ReelError represents a structured error with code, status, and details.
type ReelError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *ReelError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *ReelError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ReelError {
	return &ReelError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewValidation creates a 400 error carrying per-field validation failures.
func NewValidation(msg string, fields map[string]string) *ReelError {
	err := NewInvalidRequest(msg)
	if len(fields) > 0 {
		err.Details = map[string]any{"fields": fields}
	}
	return err
}

// NewNotFound creates a 404 error for a missing resource.
func NewNotFound(kind, identifier string) *ReelError {
	return &ReelError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for import paths that do not exist.
func NewFileNotFound(path string) *ReelError {
	return &ReelError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *ReelError {
	return &ReelError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewInsufficientCandidates creates a 422 error when the candidate search
// returned fewer items than the configured minimum.
func NewInsufficientCandidates(found, required int) *ReelError {
	return &ReelError{
		Code:    ErrInsufficientCandidates,
		Status:  422,
		Message: fmt.Sprintf("insufficient candidates: found %d, need at least %d", found, required),
		Details: map[string]any{"found": found, "required": required, "stage": "catalog"},
	}
}

// NewCancelled creates a 499 error when an operation observes a done context.
func NewCancelled(operation string) *ReelError {
	return &ReelError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
		Details: map[string]any{"operation": operation},
	}
}

// NewStageRetryExhausted creates a 502 error naming the failed stage and
// wrapping the last underlying error.
func NewStageRetryExhausted(stage string, attempts int, last error) *ReelError {
	msg := "unknown error"
	if last != nil {
		msg = last.Error()
	}
	return &ReelError{
		Code:    ErrStageRetryExhausted,
		Status:  502,
		Message: fmt.Sprintf("%s failed after %d attempts: %s", stage, attempts, msg),
		Details: map[string]any{"stage": stage, "attempts": attempts, "last_error": msg},
		cause:   last,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ReelError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ReelError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// As returns the first ReelError in err's chain.
func As(err error) (*ReelError, bool) {
	var rErr *ReelError
	if stderrors.As(err, &rErr) {
		return rErr, true
	}
	return nil, false
}

// Is checks if an error (or anything it wraps) is a ReelError with the given code.
func Is(err error, code ErrorCode) bool {
	if rErr, ok := As(err); ok {
		return rErr.Code == code
	}
	return false
}

// Stage returns the pipeline stage recorded on err, or "" if none.
func Stage(err error) string {
	rErr, ok := As(err)
	if !ok || rErr.Details == nil {
		return ""
	}
	s, _ := rErr.Details["stage"].(string)
	return s
}
