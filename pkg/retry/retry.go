package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forumscraper/pkg/config"
	errs "forumscraper/pkg/errors"
	"forumscraper/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func() error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func() (T, error)

// ExhaustedError wraps the last error after the retry cap is reached, so that
// callers can tell a retryable-but-exhausted failure apart from a fatal one.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// IsExhausted reports whether err is a retries-exhausted failure
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts (0 means unlimited)
	MaxAttempts int
	// Backoff strategy to use
	Backoff BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry attempt. Observability only; it must
	// not alter control flow.
	OnRetry func(attempt int, err error, delay time.Duration)
	// RespectRetryAfter lets a server-provided Retry-After value override the
	// computed backoff delay
	RespectRetryAfter bool
	// Context for cancellation
	Context context.Context
	// Logger for retry attempts
	Logger logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
		Logger:      logger.GetLogger(),
	}
}

// FromPlatformConfig builds a retry configuration from a platform's settings
func FromPlatformConfig(pc config.PlatformConfig, log logger.Logger) *Config {
	return &Config{
		MaxAttempts: pc.MaxRetries + 1, // first attempt plus retries
		Backoff: &ExponentialBackoff{
			BaseDelay:    pc.InitialDelay,
			MaxDelay:     pc.MaxDelay,
			Multiplier:   pc.BackoffMultiplier,
			JitterFactor: 0.1,
		},
		RetryIf:           DefaultRetryIf,
		RespectRetryAfter: pc.RespectRateLimitHeaders,
		Context:           context.Background(),
		Logger:            log,
	}
}

// DefaultRetryIf is the default retry predicate. Typed platform errors are
// classified by their error type, context errors are never retried, and
// unknown errors default to retryable to favor availability over fast-fail.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if errs.IsNetworkError(err) {
		return true
	}

	// Default to retrying unknown errors
	return true
}

// Do executes an operation with retry logic. A non-retryable error propagates
// immediately; once MaxAttempts is exhausted the last error is returned
// wrapped in an ExhaustedError.
func Do(op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}

	var lastErr error
	attempt := 0

	for {
		attempt++

		err := op()
		if err == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		lastErr = err

		if !cfg.RetryIf(err) {
			if cfg.Logger != nil {
				cfg.Logger.DebugWithFields("error is not retryable", map[string]interface{}{
					"error": err.Error(),
				})
			}
			return err
		}

		// The final permitted attempt fails without another backoff or callback
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			if cfg.Logger != nil {
				cfg.Logger.ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
					"attempts":   attempt,
					"last_error": lastErr.Error(),
				})
			}
			return &ExhaustedError{Attempts: attempt, Err: lastErr}
		}

		delay := cfg.Backoff.NextDelay(attempt)

		// A server-provided Retry-After wins over the computed backoff
		if cfg.RespectRetryAfter {
			var apiErr *errs.Error
			if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
				delay = apiErr.RetryAfter
			}
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		if cfg.Logger != nil {
			cfg.Logger.WarnWithFields("retrying operation", map[string]interface{}{
				"attempt":      attempt,
				"error":        err.Error(),
				"delay_ms":     delay.Milliseconds(),
				"max_attempts": cfg.MaxAttempts,
			})
		}

		if err := Wait(ctx, delay); err != nil {
			if cfg.Logger != nil {
				cfg.Logger.WarnWithFields("retry cancelled", map[string]interface{}{
					"attempt": attempt,
					"reason":  err.Error(),
				})
			}
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](op OperationWithResult[T], cfg *Config) (T, error) {
	var result T

	err := Do(func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, cfg)

	return result, err
}

// Retrier provides a reusable retry mechanism
type Retrier struct {
	config *Config
}

// NewRetrier creates a new retrier with the given configuration
func NewRetrier(cfg *Config) *Retrier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Retrier{config: cfg}
}

// Do executes an operation with retry logic
func (r *Retrier) Do(op Operation) error {
	return Do(op, r.config)
}

// WithContext returns a new retrier with updated context
func (r *Retrier) WithContext(ctx context.Context) *Retrier {
	newConfig := *r.config
	newConfig.Context = ctx
	return &Retrier{config: &newConfig}
}

// WithOnRetry returns a new retrier with a per-attempt callback
func (r *Retrier) WithOnRetry(fn func(attempt int, err error, delay time.Duration)) *Retrier {
	newConfig := *r.config
	newConfig.OnRetry = fn
	return &Retrier{config: &newConfig}
}
