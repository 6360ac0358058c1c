package cache

import (
	"context"
	"sync"
	"time"

	"github.com/emberalert/risk-service/internal/models"
)

// computation tracks a single in-flight compute that multiple callers may
// wait for.
type computation struct {
	mu      sync.Mutex
	result  models.RiskAssessment
	err     error
	done    bool
	waiters []chan struct{} // closed to notify waiters when the result is ready
}

// inflightTable collapses concurrent computations for the same key into one:
// the first caller for a key executes the compute function, everyone else
// waits on its outcome. The compute runs in its own goroutine with a
// detached context, so it finishes for the benefit of the remaining waiters
// even when individual callers abandon theirs.
type inflightTable struct {
	mu          sync.Mutex
	inFlight    map[string]*computation
	waitTimeout time.Duration
}

func newInflightTable(waitTimeout time.Duration) *inflightTable {
	if waitTimeout <= 0 {
		waitTimeout = 10 * time.Second
	}
	return &inflightTable{
		inFlight:    make(map[string]*computation),
		waitTimeout: waitTimeout,
	}
}

// do returns the outcome of the single computation for key. started reports
// whether this caller initiated the compute (false = joined an existing
// one). The caller's wait is bounded by ctx and the configured wait
// timeout; the computation itself is not.
func (t *inflightTable) do(ctx context.Context, key string, fn func(context.Context) (models.RiskAssessment, error)) (result models.RiskAssessment, started bool, err error) {
	t.mu.Lock()
	comp, exists := t.inFlight[key]
	if exists {
		t.mu.Unlock()
		result, err = t.wait(ctx, comp)
		return result, false, err
	}

	comp = &computation{}
	t.inFlight[key] = comp
	t.mu.Unlock()

	go func() {
		// Detached from any single caller so one waiter's disconnect
		// does not cancel the shared computation.
		res, computeErr := fn(context.Background())

		comp.mu.Lock()
		comp.result = res
		comp.err = computeErr
		comp.done = true
		waiters := comp.waiters
		comp.waiters = nil
		comp.mu.Unlock()

		for _, notify := range waiters {
			close(notify)
		}

		t.mu.Lock()
		delete(t.inFlight, key)
		t.mu.Unlock()
	}()

	result, err = t.wait(ctx, comp)
	return result, true, err
}

// wait blocks until comp completes, ctx is cancelled, or the wait timeout
// elapses.
func (t *inflightTable) wait(ctx context.Context, comp *computation) (models.RiskAssessment, error) {
	comp.mu.Lock()
	if comp.done {
		result, err := comp.result, comp.err
		comp.mu.Unlock()
		return result, err
	}
	notify := make(chan struct{})
	comp.waiters = append(comp.waiters, notify)
	comp.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, t.waitTimeout)
	defer cancel()
	select {
	case <-notify:
		comp.mu.Lock()
		result, err := comp.result, comp.err
		comp.mu.Unlock()
		return result, err
	case <-waitCtx.Done():
		return models.RiskAssessment{}, waitCtx.Err()
	}
}
