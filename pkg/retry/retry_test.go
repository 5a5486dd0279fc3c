package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"forumscraper/pkg/config"
	errs "forumscraper/pkg/errors"
)

func testPlatformConfig() config.PlatformConfig {
	return config.PlatformConfig{
		MaxRetries:              3,
		BackoffMultiplier:       2.0,
		InitialDelay:            250 * time.Millisecond,
		MaxDelay:                5 * time.Second,
		RespectRateLimitHeaders: true,
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0, // No jitter for predictable testing
	}

	tests := []struct {
		attempt     int
		expected    time.Duration
		description string
	}{
		{1, 100 * time.Millisecond, "First attempt"},
		{2, 200 * time.Millisecond, "Second attempt"},
		{3, 400 * time.Millisecond, "Third attempt"},
		{4, 800 * time.Millisecond, "Fourth attempt"},
		{5, 1 * time.Second, "Fifth attempt (capped at max)"},
		{6, 1 * time.Second, "Sixth attempt (still capped)"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			if delay := backoff.NextDelay(test.attempt); delay != test.expected {
				t.Errorf("Expected delay %v, got %v", test.expected, delay)
			}
		})
	}
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	// With jitter we should see different delays, all inside the jitter band
	delays := make(map[time.Duration]bool)
	for i := 0; i < 10; i++ {
		delay := backoff.NextDelay(2)
		delays[delay] = true

		min := 140 * time.Millisecond // 200ms - 30%
		max := 260 * time.Millisecond // 200ms + 30%
		if delay < min || delay > max {
			t.Errorf("Delay %v outside jitter band [%v, %v]", delay, min, max)
		}
	}
	if len(delays) < 2 {
		t.Error("Expected jitter to produce varying delays")
	}
}

func TestConstantBackoff(t *testing.T) {
	backoff := &ConstantBackoff{Delay: 50 * time.Millisecond}

	for attempt := 1; attempt <= 3; attempt++ {
		if delay := backoff.NextDelay(attempt); delay != 50*time.Millisecond {
			t.Errorf("Expected constant delay, got %v on attempt %d", delay, attempt)
		}
	}
	if backoff.NextDelay(0) != 0 {
		t.Error("Expected zero delay for attempt 0")
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	var retryAttempts []int

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			retryAttempts = append(retryAttempts, attempt)
		},
		Context: context.Background(),
	}

	err := Do(func() error {
		attempts++
		if attempts <= 2 {
			return errs.FromStatusCode(503, "service unavailable")
		}
		return nil
	}, cfg)

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	// One callback per failed attempt
	if len(retryAttempts) != 2 || retryAttempts[0] != 1 || retryAttempts[1] != 2 {
		t.Errorf("Unexpected retry callbacks: %v", retryAttempts)
	}
}

func TestDoFatalErrorNotRetried(t *testing.T) {
	attempts := 0
	fatal := errs.FromStatusCode(404, "no such subreddit")

	err := Do(func() error {
		attempts++
		return fatal
	}, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
	})

	if attempts != 1 {
		t.Errorf("Expected exactly 1 attempt for a fatal error, got %d", attempts)
	}
	if err != fatal {
		t.Errorf("Expected the original error back, got %v", err)
	}
	if IsExhausted(err) {
		t.Error("A fatal error must not look like retry exhaustion")
	}
}

func TestDoExhausted(t *testing.T) {
	attempts := 0

	err := Do(func() error {
		attempts++
		return errs.FromStatusCode(429, "slow down")
	}, &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
	})

	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if !IsExhausted(err) {
		t.Fatalf("Expected an exhausted error, got %v", err)
	}

	var ee *ExhaustedError
	errors.As(err, &ee)
	if ee.Attempts != 3 {
		t.Errorf("Expected 3 recorded attempts, got %d", ee.Attempts)
	}

	// The underlying typed error must stay reachable through Unwrap
	var apiErr *errs.Error
	if !errors.As(err, &apiErr) || apiErr.Code != 429 {
		t.Errorf("Expected the wrapped 429 to be reachable, got %v", err)
	}
}

func TestDoExhaustedWithoutFinalBackoff(t *testing.T) {
	attempts := 0
	var retryAttempts []int

	start := time.Now()
	err := Do(func() error {
		attempts++
		return errs.FromStatusCode(503, "unavailable")
	}, &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: 50 * time.Millisecond},
		RetryIf:     DefaultRetryIf,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			retryAttempts = append(retryAttempts, attempt)
		},
		Context: context.Background(),
	})
	elapsed := time.Since(start)

	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if !IsExhausted(err) {
		t.Fatalf("Expected an exhausted error, got %v", err)
	}
	// One callback per retry, never one for the final failure
	if len(retryAttempts) != 2 || retryAttempts[0] != 1 || retryAttempts[1] != 2 {
		t.Errorf("Unexpected retry callbacks: %v", retryAttempts)
	}
	// Only the two inter-attempt backoffs are slept; exhaustion surfaces
	// immediately after the last attempt fails
	if elapsed >= 140*time.Millisecond {
		t.Errorf("Expected ~100ms of backoff before exhaustion, waited %v", elapsed)
	}
}

func TestDoRespectsRetryAfter(t *testing.T) {
	attempts := 0
	rateLimited := errs.FromStatusCode(429, "slow down")
	rateLimited.RetryAfter = 150 * time.Millisecond

	cfg := &Config{
		MaxAttempts:       2,
		Backoff:           &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:           DefaultRetryIf,
		RespectRetryAfter: true,
		Context:           context.Background(),
	}

	start := time.Now()
	_ = Do(func() error {
		attempts++
		if attempts == 1 {
			return rateLimited
		}
		return nil
	}, cfg)
	elapsed := time.Since(start)

	if elapsed < 150*time.Millisecond {
		t.Errorf("Expected the Retry-After value to govern the delay, waited %v", elapsed)
	}
}

func TestDoIgnoresRetryAfterWhenDisabled(t *testing.T) {
	attempts := 0
	rateLimited := errs.FromStatusCode(429, "slow down")
	rateLimited.RetryAfter = 500 * time.Millisecond

	cfg := &Config{
		MaxAttempts:       2,
		Backoff:           &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:           DefaultRetryIf,
		RespectRetryAfter: false,
		Context:           context.Background(),
	}

	start := time.Now()
	_ = Do(func() error {
		attempts++
		if attempts == 1 {
			return rateLimited
		}
		return nil
	}, cfg)
	elapsed := time.Since(start)

	if elapsed > 200*time.Millisecond {
		t.Errorf("Expected the computed backoff to be used, waited %v", elapsed)
	}
}

func TestDoCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- Do(func() error {
			return errs.FromStatusCode(500, "boom")
		}, &Config{
			MaxAttempts: 10,
			Backoff:     &ConstantBackoff{Delay: time.Hour},
			RetryIf:     DefaultRetryIf,
			Context:     ctx,
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil error", nil, false},
		{"rate limit", errs.FromStatusCode(429, "too many requests"), true},
		{"server error", errs.FromStatusCode(502, "bad gateway"), true},
		{"not found", errs.FromStatusCode(404, "gone"), false},
		{"client error", errs.FromStatusCode(400, "bad request"), false},
		{"config error", errs.New(errs.ErrorTypeConfig, 0, "bad config"), false},
		{"unclassified status", errs.FromStatusCode(302, "moved"), true},
		{"context canceled", context.Canceled, false},
		{"context deadline", context.DeadlineExceeded, false},
		{"unknown plain error", errors.New("something odd"), true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := DefaultRetryIf(test.err); got != test.retryable {
				t.Errorf("Expected retryable=%v for %v, got %v", test.retryable, test.err, got)
			}
		})
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0

	result, err := DoWithResult(func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errs.FromStatusCode(503, "unavailable")
		}
		return "payload", nil
	}, &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
	})

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result != "payload" {
		t.Errorf("Expected result to survive the retry, got %q", result)
	}
}

func TestFromPlatformConfig(t *testing.T) {
	cfg := FromPlatformConfig(testPlatformConfig(), nil)

	// MaxRetries counts retries after the first attempt
	if cfg.MaxAttempts != 4 {
		t.Errorf("Expected 4 attempts for 3 retries, got %d", cfg.MaxAttempts)
	}
	if !cfg.RespectRetryAfter {
		t.Error("Expected Retry-After handling to follow platform config")
	}

	eb, ok := cfg.Backoff.(*ExponentialBackoff)
	if !ok {
		t.Fatalf("Expected exponential backoff, got %T", cfg.Backoff)
	}
	if eb.BaseDelay != 250*time.Millisecond || eb.MaxDelay != 5*time.Second || eb.Multiplier != 2.0 {
		t.Errorf("Backoff does not match platform config: %+v", eb)
	}
}

func TestRetrierWithOnRetry(t *testing.T) {
	calls := 0
	r := NewRetrier(&Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
	}).WithOnRetry(func(attempt int, err error, delay time.Duration) {
		calls++
	})

	attempts := 0
	err := r.Do(func() error {
		attempts++
		if attempts < 3 {
			return errs.FromStatusCode(500, "boom")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 retry callbacks, got %d", calls)
	}
}
