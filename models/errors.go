package models

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds used in API responses and internal error handling.
const (
	ErrKindNavigation      = "NAVIGATION_FAILED"
	ErrKindTimeout         = "TIMEOUT"
	ErrKindElementNotFound = "ELEMENT_NOT_FOUND"
	ErrKindEvaluation      = "EVALUATION_FAILED"
	ErrKindUpload          = "UPLOAD_FAILED"
	ErrKindConnection      = "CONNECTION_FAILED"
	ErrKindInvalidInput    = "INVALID_INPUT"
	ErrKindRateLimited     = "RATE_LIMITED"
	ErrKindUnauthorized    = "UNAUTHORIZED"
	ErrKindUnknown         = "UNKNOWN"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// AcquireError is the internal error type carrying an error kind.
// It implements the error interface and supports error wrapping via Unwrap.
type AcquireError struct {
	Kind    string
	Message string
	Err     error // wrapped original error
}

func (e *AcquireError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AcquireError) Unwrap() error {
	return e.Err
}

// NewAcquireError creates a new AcquireError.
func NewAcquireError(kind, message string, err error) *AcquireError {
	return &AcquireError{Kind: kind, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *AcquireError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Kind: e.Kind, Message: e.Message}
}

// Categorize wraps a raw error into a typed AcquireError. Context deadline
// and cancellation errors map to the timeout kind; already-typed errors pass
// through unchanged.
func Categorize(err error, msg string) *AcquireError {
	var ae *AcquireError
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.Is(err, context.DeadlineExceeded):
		return NewAcquireError(ErrKindTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return NewAcquireError(ErrKindTimeout, "request canceled", err)
	default:
		return NewAcquireError(ErrKindUnknown, msg, err)
	}
}

// Detail converts any error to an ErrorDetail, categorizing untyped errors.
func Detail(err error) *ErrorDetail {
	return Categorize(err, err.Error()).ToDetail()
}
