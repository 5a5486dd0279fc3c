package ratelimit

import (
	"context"
	"time"

	"forumscraper/pkg/config"
)

// MultiLimiter composes several sliding windows into one limiter. A request is
// allowed only when every member window allows it, and the wait time when
// blocked is the maximum of the member waits.
type MultiLimiter struct {
	windows []*SlidingWindow
}

// NewMultiLimiter creates a limiter over the given windows
func NewMultiLimiter(windows ...*SlidingWindow) *MultiLimiter {
	return &MultiLimiter{windows: windows}
}

// ForPlatform builds the composed limiter described by a platform's
// configuration. Windows with a zero or negative cap are skipped.
func ForPlatform(pc config.PlatformConfig) *MultiLimiter {
	var windows []*SlidingWindow
	if pc.RequestsPerSecond > 0 {
		windows = append(windows, NewSlidingWindow(pc.RequestsPerSecond, time.Second))
	}
	if pc.RequestsPerMinute > 0 {
		windows = append(windows, NewSlidingWindow(pc.RequestsPerMinute, time.Minute))
	}
	if pc.RequestsPerHour > 0 {
		windows = append(windows, NewSlidingWindow(pc.RequestsPerHour, time.Hour))
	}
	return NewMultiLimiter(windows...)
}

// CanProceed reports whether every window allows a request right now
func (m *MultiLimiter) CanProceed() bool {
	for _, w := range m.windows {
		if !w.CanProceed() {
			return false
		}
	}
	return true
}

// Record records the request on every window
func (m *MultiLimiter) Record() {
	for _, w := range m.windows {
		w.Record()
	}
}

// Wait blocks until every window allows a request or the context is cancelled
func (m *MultiLimiter) Wait(ctx context.Context) error {
	for {
		var longest time.Duration
		for _, w := range m.windows {
			if wt := w.waitTime(); wt > longest {
				longest = wt
			}
		}
		if longest <= 0 {
			return nil
		}
		if err := sleep(ctx, longest); err != nil {
			return err
		}
	}
}

// Reset clears every window
func (m *MultiLimiter) Reset() {
	for _, w := range m.windows {
		w.Reset()
	}
}

// Status reports the most constrained member window: the fewest remaining
// requests and the latest reset time among limited windows.
func (m *MultiLimiter) Status() Status {
	if len(m.windows) == 0 {
		return Status{Remaining: int(^uint(0) >> 1)}
	}

	combined := m.windows[0].Status()
	for _, w := range m.windows[1:] {
		st := w.Status()
		if st.Remaining < combined.Remaining {
			combined.Remaining = st.Remaining
		}
		if st.Limited {
			combined.Limited = true
			if st.ResetAt.After(combined.ResetAt) {
				combined.ResetAt = st.ResetAt
			}
		}
	}
	return combined
}
