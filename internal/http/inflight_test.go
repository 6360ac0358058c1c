package http

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestInFlightTracker verifies counting and WaitForZero behavior under
// completion and timeout.
func TestInFlightTracker(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()
	tracker.Increment()
	tracker.Decrement()
	if got := tracker.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := tracker.WaitForZero(ctx, 5*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForZero with pending request = %v, want deadline exceeded", err)
	}

	tracker.Decrement()
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := tracker.WaitForZero(ctx2, 5*time.Millisecond); err != nil {
		t.Errorf("WaitForZero at zero = %v, want nil", err)
	}
}
