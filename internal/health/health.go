package health

import (
	"sync/atomic"
	"time"
)

var defaultTracker = NewTracker(10 * time.Minute)

var shuttingDown atomic.Bool

// RecordSuccess records a successfully served risk request.
func RecordSuccess() { defaultTracker.RecordSuccess() }

// RecordError records a failed risk request.
func RecordError() { defaultTracker.RecordError() }

// RecordDenial records a rate-limit denial. Call from middleware when returning 429.
func RecordDenial() { defaultTracker.RecordDenial() }

// RequestCount returns all outcomes within the window. Feeds the overload
// and idle checks.
func RequestCount(window time.Duration) int { return defaultTracker.RequestCount(window) }

// DenialCount returns rate-limit denials within the window.
func DenialCount(window time.Duration) int { return defaultTracker.DenialCount(window) }

// ErrorRate returns (errors, total) within the window. Feeds the degraded check.
func ErrorRate(window time.Duration) (errs, total int) { return defaultTracker.ErrorRate(window) }

// Reset clears the default tracker. For tests only.
func Reset() { defaultTracker.Reset() }

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// The health handler returns 503 with status shutting-down while true.
func SetShuttingDown(v bool) { shuttingDown.Store(v) }

// IsShuttingDown returns true if the process is draining and should not
// receive new traffic.
func IsShuttingDown() bool { return shuttingDown.Load() }
