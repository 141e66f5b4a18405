package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := NewError(CodeNotFound, "a/b.txt")
	assert.Contains(t, err.Error(), "NOT_FOUND")
	assert.Contains(t, err.Error(), "a/b.txt")
}

func TestWrapErrorRetryability(t *testing.T) {
	cause := errors.New("connection refused")

	assert.True(t, IsRetryable(WrapError(CodeNetworkError, "k", cause)))
	assert.True(t, IsRetryable(WrapError(CodeTimeout, "k", cause)))
	assert.False(t, IsRetryable(WrapError(CodeChecksumMismatch, "k", cause)))
	assert.False(t, IsRetryable(WrapError(CodePreconditionFailed, "k", cause)))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := fmt.Errorf("put failed: %w", WrapError(CodeInternal, "k", cause))

	assert.Equal(t, CodeInternal, CodeOf(wrapped))
	assert.True(t, errors.Is(wrapped, cause))
}

func TestCodeHelpers(t *testing.T) {
	assert.True(t, IsNotFound(NewError(CodeNotFound, "k")))
	assert.False(t, IsNotFound(NewError(CodeAlreadyExists, "k")))
	assert.True(t, IsCode(NewError(CodeQuotaExceeded, "k"), CodeQuotaExceeded))

	// a non-storage error degrades to INTERNAL_ERROR
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.False(t, IsRetryable(errors.New("plain")))
}
