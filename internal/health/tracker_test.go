package health

import (
	"testing"
	"time"
)

// TestTracker_Counts verifies request, denial, and error-rate counting
// within a window.
func TestTracker_Counts(t *testing.T) {
	tr := NewTracker(time.Minute)
	tr.RecordSuccess()
	tr.RecordSuccess()
	tr.RecordError()
	tr.RecordDenial()

	if got := tr.RequestCount(time.Minute); got != 4 {
		t.Errorf("RequestCount = %d, want 4", got)
	}
	if got := tr.DenialCount(time.Minute); got != 1 {
		t.Errorf("DenialCount = %d, want 1", got)
	}
	errs, total := tr.ErrorRate(time.Minute)
	if errs != 1 || total != 3 {
		t.Errorf("ErrorRate = (%d, %d), want (1, 3): denials excluded from total", errs, total)
	}
}

// TestTracker_WindowExcludesOldEvents verifies that events outside the
// queried window are not counted.
func TestTracker_WindowExcludesOldEvents(t *testing.T) {
	tr := NewTracker(time.Minute)
	tr.RecordSuccess()
	time.Sleep(30 * time.Millisecond)

	if got := tr.RequestCount(10 * time.Millisecond); got != 0 {
		t.Errorf("RequestCount(10ms) = %d, want 0 for an event older than the window", got)
	}
	if got := tr.RequestCount(time.Minute); got != 1 {
		t.Errorf("RequestCount(1m) = %d, want 1", got)
	}
}

// TestTracker_Reset verifies that Reset clears all events.
func TestTracker_Reset(t *testing.T) {
	tr := NewTracker(time.Minute)
	tr.RecordSuccess()
	tr.RecordDenial()
	tr.Reset()
	if got := tr.RequestCount(time.Minute); got != 0 {
		t.Errorf("RequestCount after Reset = %d, want 0", got)
	}
}

// TestShuttingDownFlag verifies the package-level lifecycle flag.
func TestShuttingDownFlag(t *testing.T) {
	t.Cleanup(func() { SetShuttingDown(false) })
	if IsShuttingDown() {
		t.Fatal("IsShuttingDown() = true before SetShuttingDown")
	}
	SetShuttingDown(true)
	if !IsShuttingDown() {
		t.Error("IsShuttingDown() = false after SetShuttingDown(true)")
	}
	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true after SetShuttingDown(false)")
	}
}

// TestDefaultTracker verifies the package-level convenience functions share
// one tracker.
func TestDefaultTracker(t *testing.T) {
	t.Cleanup(Reset)
	Reset()
	RecordSuccess()
	RecordError()
	RecordDenial()
	if got := RequestCount(time.Minute); got != 3 {
		t.Errorf("RequestCount = %d, want 3", got)
	}
	errs, total := ErrorRate(time.Minute)
	if errs != 1 || total != 2 {
		t.Errorf("ErrorRate = (%d, %d), want (1, 2)", errs, total)
	}
}
