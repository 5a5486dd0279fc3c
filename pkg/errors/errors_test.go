package errors

import (
	"testing"
)

func TestFromStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want ErrorType
	}{
		{429, ErrorTypeRateLimit},
		{404, ErrorTypeNotFound},
		{500, ErrorTypeServerError},
		{503, ErrorTypeServerError},
		{400, ErrorTypeParsing},
		{403, ErrorTypeParsing},
		{302, ErrorTypeUnknown},
		{100, ErrorTypeUnknown},
	}

	for _, test := range tests {
		err := FromStatusCode(test.code, "boom")
		if err.Type != test.want {
			t.Errorf("FromStatusCode(%d): expected type %s, got %s", test.code, test.want, err.Type)
		}
		if err.Code != test.code {
			t.Errorf("FromStatusCode(%d): code not carried, got %d", test.code, err.Code)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		retryable bool
	}{
		{ErrorTypeNetwork, true},
		{ErrorTypeRateLimit, true},
		{ErrorTypeServerError, true},
		{ErrorTypeParsing, false},
		{ErrorTypeNotFound, false},
		{ErrorTypeConfig, false},
		{ErrorTypeState, false},
		// Unknown types are retried up to the cap
		{ErrorTypeUnknown, true},
	}

	for _, test := range tests {
		if got := IsRetryable(test.errorType); got != test.retryable {
			t.Errorf("IsRetryable(%s) = %v, want %v", test.errorType, got, test.retryable)
		}
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	retryable := []int{0, 429, 500, 502, 503, 504, 599}
	for _, code := range retryable {
		if !IsRetryableStatusCode(code) {
			t.Errorf("Expected status %d to be retryable", code)
		}
	}

	fatal := []int{400, 401, 403, 404}
	for _, code := range fatal {
		if IsRetryableStatusCode(code) {
			t.Errorf("Expected status %d to be fatal", code)
		}
	}
}
