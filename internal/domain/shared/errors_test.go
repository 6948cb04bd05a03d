package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "INVALID_INPUT", ErrorCode(ErrInvalidInput("name is required")))
	assert.Equal(t, "NOT_FOUND", ErrorCode(ErrNotFound("contact")))
	assert.Equal(t, "PERMISSION_DENIED", ErrorCode(ErrPermissionDenied("sms")))
	assert.Equal(t, "", ErrorCode(errors.New("plain")))
}

func TestWrapDomainError(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapDomainError(cause, ErrCodeStorageWriteFailed, "persist emergency flag")

	assert.Equal(t, "STORAGE_WRITE_FAILED", ErrorCode(err))
	assert.ErrorIs(t, err, cause)
}

func TestMillis(t *testing.T) {
	var zero Millis
	assert.True(t, zero.IsZero())
	assert.True(t, zero.Time().IsZero())

	m := Millis(1700000000123)
	assert.Equal(t, int64(1700000000123), m.Time().UnixMilli())
}
