// Package retry provides retry logic with configurable backoff strategies for
// page fetches against rate-limited platform APIs.
//
// Errors are classified through the pkg/errors taxonomy: network failures,
// rate limits (HTTP 429) and server errors (5xx) are retried, other client
// errors are fatal, and unknown errors are retried up to the cap. When retries
// run out the last error is wrapped in an ExhaustedError so callers can tell
// exhaustion apart from a fatal first failure.
package retry
