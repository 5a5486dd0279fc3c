package ratelimit

import (
	"context"
	"testing"
	"time"

	"forumscraper/pkg/config"
)

func TestMultiLimiterAllWindowsMustAllow(t *testing.T) {
	burst := NewSlidingWindow(1, time.Second)
	sustained := NewSlidingWindow(10, time.Minute)
	m := NewMultiLimiter(burst, sustained)

	if !m.CanProceed() {
		t.Fatal("Expected fresh limiter to allow")
	}
	m.Record()

	// The burst window is exhausted even though the sustained one is not
	if m.CanProceed() {
		t.Error("Expected denial while any member window is exhausted")
	}
	if sustained.Status().Remaining != 9 {
		t.Errorf("Expected record to hit every window, sustained has %d remaining",
			sustained.Status().Remaining)
	}
}

func TestMultiLimiterWaitUsesLongestWindow(t *testing.T) {
	// Scaled-down version of a 1/sec + 30/min pair: after the burst window
	// frees up the composed limiter must allow promptly, not wait out the
	// longer window.
	burst := NewSlidingWindow(1, 200*time.Millisecond)
	sustained := NewSlidingWindow(30, 10*time.Second)
	m := NewMultiLimiter(burst, sustained)

	m.Record()

	start := time.Now()
	if err := m.Wait(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 150*time.Millisecond {
		t.Errorf("Expected to wait out the burst window, waited %v", elapsed)
	}
	if elapsed > time.Second {
		t.Errorf("Expected only the burst window to gate, waited %v", elapsed)
	}
}

func TestMultiLimiterWaitBlocksOnSustainedWindow(t *testing.T) {
	burst := NewSlidingWindow(10, 50*time.Millisecond)
	sustained := NewSlidingWindow(2, 300*time.Millisecond)
	m := NewMultiLimiter(burst, sustained)

	m.Record()
	m.Record()

	start := time.Now()
	if err := m.Wait(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	elapsed := time.Since(start)

	// The burst window is free; the sustained window gates the wait
	if elapsed < 200*time.Millisecond {
		t.Errorf("Expected the sustained window to gate the wait, waited %v", elapsed)
	}
}

func TestMultiLimiterWaitCancelled(t *testing.T) {
	m := NewMultiLimiter(NewSlidingWindow(1, time.Hour))
	m.Record()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Wait(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
}

func TestForPlatform(t *testing.T) {
	m := ForPlatform(config.PlatformConfig{
		RequestsPerSecond: 2,
		RequestsPerMinute: 60,
		RequestsPerHour:   0, // disabled
	})

	if len(m.windows) != 2 {
		t.Fatalf("Expected 2 windows, got %d", len(m.windows))
	}
	if m.windows[0].maxRequests != 2 || m.windows[0].windowSize != time.Second {
		t.Errorf("Unexpected second window: %d per %v", m.windows[0].maxRequests, m.windows[0].windowSize)
	}
	if m.windows[1].maxRequests != 60 || m.windows[1].windowSize != time.Minute {
		t.Errorf("Unexpected minute window: %d per %v", m.windows[1].maxRequests, m.windows[1].windowSize)
	}
}

func TestMultiLimiterStatus(t *testing.T) {
	burst := NewSlidingWindow(1, time.Second)
	sustained := NewSlidingWindow(5, time.Minute)
	m := NewMultiLimiter(burst, sustained)

	m.Record()

	st := m.Status()
	if st.Remaining != 0 {
		t.Errorf("Expected 0 remaining from the most constrained window, got %d", st.Remaining)
	}
	if !st.Limited {
		t.Error("Expected limited status")
	}
}
