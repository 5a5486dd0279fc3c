package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// CanProceed checks if a request is allowed under the current rate limit
	// without recording anything
	CanProceed() bool
	// Record records that a request was made
	Record()
	// Wait blocks until the rate limit allows another request or the context
	// is cancelled. It does not record the request.
	Wait(ctx context.Context) error
	// Reset resets the rate limiter state
	Reset()
	// Status reports the current window occupancy
	Status() Status
}

// Status describes the current state of a limiter
type Status struct {
	// Remaining is the number of requests still allowed in the current window
	Remaining int
	// ResetAt is when the oldest recorded request falls out of the window.
	// Zero when the window is empty.
	ResetAt time.Time
	// Limited is true when no further requests are allowed right now
	Limited bool
}

// SlidingWindow implements a sliding window log rate limiter: it keeps the
// timestamps of recent requests and allows a new one only while fewer than
// maxRequests fall inside the trailing window.
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	mu          sync.Mutex

	// now is swappable for tests
	now func() time.Time
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

// CanProceed checks if a request can proceed right now
func (sw *SlidingWindow) CanProceed() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.dropExpired(sw.now())
	return len(sw.requests) < sw.maxRequests
}

// Record records a request timestamp
func (sw *SlidingWindow) Record() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.dropExpired(now)
	sw.requests = append(sw.requests, now)
}

// Wait blocks until a request is allowed or the context is cancelled.
// The wait is bounded by the window size: the oldest recorded request always
// expires within one window.
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		sw.mu.Lock()
		now := sw.now()
		sw.dropExpired(now)
		if len(sw.requests) < sw.maxRequests {
			sw.mu.Unlock()
			return nil
		}
		// Sleep until the oldest request slides out of the window, then
		// re-check to handle contention from concurrent sessions.
		wait := sw.requests[0].Add(sw.windowSize).Sub(now)
		sw.mu.Unlock()

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// Status reports the current window occupancy
func (sw *SlidingWindow) Status() Status {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.dropExpired(sw.now())

	st := Status{
		Remaining: sw.maxRequests - len(sw.requests),
		Limited:   len(sw.requests) >= sw.maxRequests,
	}
	if len(sw.requests) > 0 {
		st.ResetAt = sw.requests[0].Add(sw.windowSize)
	}
	return st
}

// waitTime returns how long until a request would be allowed; zero if allowed now
func (sw *SlidingWindow) waitTime() time.Duration {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.dropExpired(now)
	if len(sw.requests) < sw.maxRequests {
		return 0
	}
	return sw.requests[0].Add(sw.windowSize).Sub(now)
}

// dropExpired removes requests outside the sliding window. Caller holds the lock.
func (sw *SlidingWindow) dropExpired(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}

	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}

// sleep waits for the given duration or until the context is cancelled
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		// Yield briefly to avoid a busy loop under heavy contention
		d = time.Millisecond
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
