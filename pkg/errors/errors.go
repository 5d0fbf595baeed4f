package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType classifies the outcome of a remote call
type ErrorType string

const (
	// ErrorTypeThrottled is an HTTP 429 from the remote service
	ErrorTypeThrottled ErrorType = "throttled"
	// ErrorTypeTransient covers transport failures and any other non-200 status
	ErrorTypeTransient ErrorType = "transient"
	// ErrorTypeParsing means the body arrived but could not be decoded
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeContentTooShort means a document body was below the size threshold
	ErrorTypeContentTooShort ErrorType = "content_too_short"
	// ErrorTypePermanent is a failure that no retry can fix (e.g. a malformed request)
	ErrorTypePermanent ErrorType = "permanent"
)

// Error represents a typed failure at the provider boundary
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// New builds a typed error
func New(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{
		Type:    t,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeThrottled, ErrorTypeTransient:
		return true
	default:
		return false
	}
}

// FromStatusCode maps a non-200 HTTP status to a typed error.
// 429 is throttling; every other status is treated as transient.
func FromStatusCode(statusCode int) *Error {
	if statusCode == http.StatusTooManyRequests {
		return New(ErrorTypeThrottled, statusCode, "rate limit exceeded")
	}
	return New(ErrorTypeTransient, statusCode, "unexpected status code: %d", statusCode)
}

// As finds the first typed error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// TypeOf extracts the ErrorType from err, or "" when err is not a typed error
func TypeOf(err error) ErrorType {
	if e, ok := As(err); ok {
		return e.Type
	}
	return ""
}

// Is reports whether err is a typed error of type t
func Is(err error, t ErrorType) bool {
	return TypeOf(err) == t
}
