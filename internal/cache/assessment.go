package cache

import (
	"context"
	"time"

	"github.com/emberalert/risk-service/internal/models"
	"github.com/emberalert/risk-service/internal/observability"
)

// AssessmentCache is the core cache-and-fetch coordination layer: it wraps a
// Store with the TTL policy and the single-flight guarantee that concurrent
// misses for the same key collapse into exactly one computation.
type AssessmentCache struct {
	store    Store
	backend  string // metrics label
	ttl      time.Duration
	inflight *inflightTable
}

// NewAssessmentCache creates an AssessmentCache over store. ttl <= 0 falls
// back to one hour (the reference deployment's staleness budget).
// waitTimeout bounds how long a caller waits on a shared in-flight
// computation.
func NewAssessmentCache(store Store, backend string, ttl, waitTimeout time.Duration) *AssessmentCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AssessmentCache{
		store:    store,
		backend:  backend,
		ttl:      ttl,
		inflight: newInflightTable(waitTimeout),
	}
}

// TTL returns the configured entry lifetime.
func (c *AssessmentCache) TTL() time.Duration {
	return c.ttl
}

// Backend returns the backend name used as a metrics label.
func (c *AssessmentCache) Backend() string {
	return c.backend
}

// Get returns the live, non-expired entry for key. No network side effects
// and no blocking beyond the store's own latency. A stored entry that fails
// the assessment invariants is evicted and reported as a miss; normal
// operation can never produce one.
func (c *AssessmentCache) Get(ctx context.Context, key string) (models.RiskAssessment, bool, error) {
	a, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return models.RiskAssessment{}, false, err
	}
	if !ok {
		return models.RiskAssessment{}, false, nil
	}
	if !a.Valid() {
		_ = c.store.Delete(ctx, key)
		observability.CacheEvictionsTotal.WithLabelValues("corrupt").Inc()
		return models.RiskAssessment{}, false, nil
	}
	return a, true, nil
}

// GetOrCompute returns the cached entry for key when present, otherwise
// ensures exactly one execution of fn across all concurrent callers for the
// key: the first caller computes, the rest block on that computation and
// share its result or failure. hit reports whether a pre-existing entry was
// served (callers that waited on a fresh computation get hit=false).
//
// On success the result is stored with the configured TTL before waiters
// are released, so subsequent lookups observe it until expiry. On failure
// nothing is stored and the key is immediately eligible for a fresh
// attempt; failures are never cached.
func (c *AssessmentCache) GetOrCompute(ctx context.Context, key string, fn func(context.Context) (models.RiskAssessment, error)) (result models.RiskAssessment, hit bool, err error) {
	if a, ok, getErr := c.Get(ctx, key); getErr == nil && ok {
		return a, true, nil
	}

	waitStart := time.Now()
	result, started, err := c.inflight.do(ctx, key, func(computeCtx context.Context) (models.RiskAssessment, error) {
		// Re-check under single-flight: another caller may have completed
		// and populated the store between our miss and winning the slot.
		if a, ok, getErr := c.Get(computeCtx, key); getErr == nil && ok {
			return a, nil
		}
		a, computeErr := fn(computeCtx)
		if computeErr != nil {
			return models.RiskAssessment{}, computeErr
		}
		// Stored before waiters are notified; a Set failure is not fatal
		// to the callers already holding the result.
		_ = c.store.Set(computeCtx, key, a, c.ttl)
		return a, nil
	})
	if err != nil {
		return models.RiskAssessment{}, false, err
	}
	if !started {
		observability.StampedeDetectedTotal.Inc()
		observability.InFlightWaitSeconds.Observe(time.Since(waitStart).Seconds())
	}
	return result, false, nil
}
