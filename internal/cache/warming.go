package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/emberalert/risk-service/internal/models"
)

// Assessor is implemented by the service layer. Used by Warmer to avoid a
// circular dependency on the service package.
type Assessor interface {
	Assess(ctx context.Context, query models.RiskQuery) (models.RiskAssessment, error)
}

// Warmer prefetches assessments for a list of tracked locations so the
// first real request after startup or expiry hits the cache.
type Warmer struct {
	assessor Assessor
	logger   *zap.Logger
}

// NewWarmer creates a Warmer that uses the given assessor and logger.
func NewWarmer(assessor Assessor, logger *zap.Logger) *Warmer {
	return &Warmer{assessor: assessor, logger: logger}
}

// Warm assesses each query concurrently, populating the cache through the
// normal assess path. Returns an aggregated error if any location failed.
func (w *Warmer) Warm(ctx context.Context, queries []models.RiskQuery) error {
	start := time.Now()
	if w.logger != nil {
		w.logger.Info("warming cache", zap.Int("locations", len(queries)))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(queries))
	for _, q := range queries {
		q := q
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.assessor.Assess(ctx, q); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", q.LocationKey(), err)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if w.logger != nil {
		w.logger.Info("cache warming complete",
			zap.Int("locations", len(queries)),
			zap.Int("errors", len(errs)),
			zap.Duration("duration", time.Since(start)))
	}
	if len(errs) > 0 {
		return fmt.Errorf("cache warming: %v", errs)
	}
	return nil
}
