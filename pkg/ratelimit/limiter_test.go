package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestSlidingWindow(t *testing.T) {
	sw := NewSlidingWindow(3, time.Second)

	// Test initial requests
	for i := 0; i < 3; i++ {
		if !sw.CanProceed() {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
		sw.Record()
	}

	// Test limit reached
	if sw.CanProceed() {
		t.Error("Expected request to be denied when limit is reached")
	}

	// Test reset
	sw.Reset()
	if !sw.CanProceed() {
		t.Error("Expected request to be allowed after reset")
	}
}

func TestSlidingWindowCanProceedDoesNotRecord(t *testing.T) {
	sw := NewSlidingWindow(1, time.Second)

	// Checking repeatedly must not consume the budget
	for i := 0; i < 5; i++ {
		if !sw.CanProceed() {
			t.Fatal("Expected CanProceed to be side-effect free")
		}
	}

	sw.Record()
	if sw.CanProceed() {
		t.Error("Expected limit to be reached after the single recorded request")
	}
}

func TestSlidingWindowExpiry(t *testing.T) {
	sw := NewSlidingWindow(2, time.Second)

	current := time.Now()
	sw.now = func() time.Time { return current }

	sw.Record()
	sw.Record()
	if sw.CanProceed() {
		t.Error("Expected limit to be reached")
	}

	// Advance past the window; both requests slide out
	current = current.Add(time.Second + time.Millisecond)
	if !sw.CanProceed() {
		t.Error("Expected requests to expire out of the window")
	}

	st := sw.Status()
	if st.Remaining != 2 {
		t.Errorf("Expected 2 remaining after expiry, got %d", st.Remaining)
	}
}

func TestSlidingWindowPartialExpiry(t *testing.T) {
	sw := NewSlidingWindow(2, time.Second)

	current := time.Now()
	sw.now = func() time.Time { return current }

	sw.Record()
	current = current.Add(600 * time.Millisecond)
	sw.Record()
	if sw.CanProceed() {
		t.Error("Expected limit to be reached")
	}

	// Only the first request has expired
	current = current.Add(500 * time.Millisecond)
	if !sw.CanProceed() {
		t.Error("Expected one slot to free up")
	}
	if st := sw.Status(); st.Remaining != 1 {
		t.Errorf("Expected 1 remaining, got %d", st.Remaining)
	}
}

func TestSlidingWindowWait(t *testing.T) {
	sw := NewSlidingWindow(1, 200*time.Millisecond)
	sw.Record()

	start := time.Now()
	if err := sw.Wait(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 150*time.Millisecond {
		t.Errorf("Expected wait of roughly the window size, got %v", elapsed)
	}
	if elapsed > time.Second {
		t.Errorf("Wait took far too long: %v", elapsed)
	}
}

func TestSlidingWindowWaitNoBlockWhenFree(t *testing.T) {
	sw := NewSlidingWindow(5, time.Second)

	start := time.Now()
	if err := sw.Wait(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("Expected immediate return, waited %v", elapsed)
	}
}

func TestSlidingWindowWaitCancelled(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	sw.Record()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := sw.Wait(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}

func TestSlidingWindowStatus(t *testing.T) {
	sw := NewSlidingWindow(3, time.Second)

	current := time.Now()
	sw.now = func() time.Time { return current }

	st := sw.Status()
	if st.Remaining != 3 || st.Limited || !st.ResetAt.IsZero() {
		t.Errorf("Unexpected empty status: %+v", st)
	}

	sw.Record()
	sw.Record()
	sw.Record()

	st = sw.Status()
	if st.Remaining != 0 {
		t.Errorf("Expected 0 remaining, got %d", st.Remaining)
	}
	if !st.Limited {
		t.Error("Expected limited status")
	}
	if want := current.Add(time.Second); !st.ResetAt.Equal(want) {
		t.Errorf("Expected reset at %v, got %v", want, st.ResetAt)
	}
}
