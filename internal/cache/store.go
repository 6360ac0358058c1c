// Package cache implements the risk assessment cache: a key-value store of
// computed assessments plus the single-flight coordination that guarantees
// one predictor call per key across concurrent callers.
package cache

import (
	"context"
	"time"

	"github.com/emberalert/risk-service/internal/models"
)

// Store is the storage backend for cached assessments. Get returns the
// entry if present and not expired, Set stores an entry with TTL. Entries
// are replaced atomically on refresh, never mutated in place.
type Store interface {
	Get(ctx context.Context, key string) (models.RiskAssessment, bool, error)
	Set(ctx context.Context, key string, value models.RiskAssessment, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
