package errors

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeState       ErrorType = "state"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a platform API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	// RetryAfter is the server-suggested wait before retrying,
	// taken from a Retry-After header when present. Zero if absent.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// New creates an Error with the given type, code and message
func New(errorType ErrorType, code int, message string) *Error {
	return &Error{Type: errorType, Message: message, Code: code}
}

// FromStatusCode builds an Error classified by HTTP status code
func FromStatusCode(code int, message string) *Error {
	switch {
	case code == 429:
		return &Error{Type: ErrorTypeRateLimit, Message: message, Code: code}
	case code == 404:
		return &Error{Type: ErrorTypeNotFound, Message: message, Code: code}
	case code >= 500:
		return &Error{Type: ErrorTypeServerError, Message: message, Code: code}
	case code >= 400:
		return &Error{Type: ErrorTypeParsing, Message: message, Code: code}
	default:
		return &Error{Type: ErrorTypeUnknown, Message: message, Code: code}
	}
}

// IsRetryable checks if an error type should be retried. Unknown types are
// retried up to the cap, favoring availability over fast-fail.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	case ErrorTypeParsing, ErrorTypeNotFound, ErrorTypeConfig, ErrorTypeState:
		return false
	default:
		return true
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 400, 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500 // Retry all 5xx errors
	}
}

// IsNetworkError reports whether err looks like a transient network failure
// (connection reset, refused, timeout, DNS lookup failure).
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// Sentinel errors for session configuration and state machine violations.
var (
	// ErrInvalidConfig is returned when a session is created with a missing
	// platform/query or a non-positive target count.
	ErrInvalidConfig = errors.New("invalid session configuration")

	// ErrInvalidState is returned when an operation is attempted on a session
	// whose status does not permit it.
	ErrInvalidState = errors.New("invalid session state transition")

	// ErrAlreadyRunning is returned when a session is started while another
	// owner holds it in the running state.
	ErrAlreadyRunning = errors.New("session is already running")

	// ErrSessionNotFound is returned when no session exists for the given id.
	ErrSessionNotFound = errors.New("session not found")
)
