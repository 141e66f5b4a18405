package storage

import (
	"errors"
	"fmt"
)

// ErrorCode identifies one failure kind in the closed storage error taxonomy.
// Codes are stable across backends so callers can handle a local-disk failure
// and a network failure through the same switch.
type ErrorCode string

const (
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeAlreadyExists      ErrorCode = "ALREADY_EXISTS"
	CodePermissionDenied   ErrorCode = "PERMISSION_DENIED"
	CodeQuotaExceeded      ErrorCode = "QUOTA_EXCEEDED"
	CodeInvalidKey         ErrorCode = "INVALID_KEY"
	CodeInvalidContent     ErrorCode = "INVALID_CONTENT"
	CodeChecksumMismatch   ErrorCode = "CHECKSUM_MISMATCH"
	CodePreconditionFailed ErrorCode = "PRECONDITION_FAILED"
	CodeNetworkError       ErrorCode = "NETWORK_ERROR"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// Error is the typed error returned by every storage operation. Callers
// inspect Code rather than the message; Retryable distinguishes transient
// failures (network, timeout) from ones that need caller intervention.
type Error struct {
	Code      ErrorCode
	Key       string
	Retryable bool
	Detail    map[string]string
	Err       error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Key != "" {
		msg = fmt.Sprintf("%s: key %q", msg, e.Key)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a non-retryable storage error for the given code and key.
func NewError(code ErrorCode, key string) *Error {
	return &Error{Code: code, Key: key}
}

// WrapError builds a storage error wrapping an underlying cause.
func WrapError(code ErrorCode, key string, err error) *Error {
	return &Error{Code: code, Key: key, Err: err, Retryable: code == CodeNetworkError || code == CodeTimeout}
}

// CodeOf extracts the ErrorCode from err, or CodeInternal when err is not a
// storage error.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}

// IsCode reports whether err is a storage error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == code
}

// IsRetryable reports whether err is a storage error marked retryable.
func IsRetryable(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Retryable
}

// IsNotFound reports whether err carries CodeNotFound.
func IsNotFound(err error) bool { return IsCode(err, CodeNotFound) }
