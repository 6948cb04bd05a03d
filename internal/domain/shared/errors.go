package shared

import (
	"fmt"

	"github.com/samber/oops"
)

// Domain error codes
const (
	ErrCodeInvalidInput       = 1001
	ErrCodeNotFound           = 1002
	ErrCodePermissionDenied   = 1003
	ErrCodeStorageWriteFailed = 1004
	ErrCodeNoRecipients       = 1005
	ErrCodeInvalidState       = 1006
)

// NewDomainError creates a new domain error using oops
func NewDomainError(code int, message string) error {
	return oops.
		Code(codeToString(code)).
		In("domain").
		With("error_code", code).
		Errorf(message)
}

// NewDomainErrorf creates a new domain error with formatted message
func NewDomainErrorf(code int, format string, args ...interface{}) error {
	return oops.
		Code(codeToString(code)).
		In("domain").
		With("error_code", code).
		Errorf(format, args...)
}

// WrapDomainError wraps an existing error with domain context
func WrapDomainError(err error, code int, message string) error {
	return oops.
		Code(codeToString(code)).
		In("domain").
		With("error_code", code).
		Wrapf(err, message)
}

// ErrorCode extracts the string code attached by NewDomainError, or "" for
// foreign errors.
func ErrorCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code := fmt.Sprint(oopsErr.Code())
	if code == "<nil>" {
		return ""
	}
	return code
}

func codeToString(code int) string {
	switch code {
	case ErrCodeInvalidInput:
		return "INVALID_INPUT"
	case ErrCodeNotFound:
		return "NOT_FOUND"
	case ErrCodePermissionDenied:
		return "PERMISSION_DENIED"
	case ErrCodeStorageWriteFailed:
		return "STORAGE_WRITE_FAILED"
	case ErrCodeNoRecipients:
		return "NO_RECIPIENTS"
	case ErrCodeInvalidState:
		return "INVALID_STATE"
	default:
		return "UNKNOWN_ERROR"
	}
}

func ErrInvalidInput(msg string) error {
	return NewDomainError(ErrCodeInvalidInput, msg)
}

func ErrNotFound(resource string) error {
	return NewDomainErrorf(ErrCodeNotFound, "%s not found", resource)
}

func ErrPermissionDenied(capability string) error {
	return NewDomainErrorf(ErrCodePermissionDenied, "%s permission not granted", capability)
}
