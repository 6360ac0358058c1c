package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/emberalert/risk-service/internal/alert"
	"github.com/emberalert/risk-service/internal/cache"
	"github.com/emberalert/risk-service/internal/client"
	"github.com/emberalert/risk-service/internal/history"
	"github.com/emberalert/risk-service/internal/models"
	"github.com/emberalert/risk-service/internal/observability"
	"github.com/emberalert/risk-service/internal/validation"
)

// ErrInvalidQuery is returned when a query violates the documented field
// ranges. The boundary layer validates before calling Assess; this is the
// defensive backstop.
var ErrInvalidQuery = errors.New("invalid query")

// maxBatchSize bounds AssessBatch input.
const maxBatchSize = 100

// ErrBatchTooLarge is returned when a batch exceeds maxBatchSize queries.
var ErrBatchTooLarge = fmt.Errorf("batch exceeds %d queries", maxBatchSize)

// RiskService orchestrates risk assessment using the cache-aside pattern
// with predictor fallback: consult the cache, compute on miss through the
// single-flight layer, stamp provenance, emit alerts and history events.
type RiskService struct {
	predictor client.PredictorClient
	cache     *cache.AssessmentCache
	notifier  alert.Notifier
	recorder  *history.Recorder
	stampede  *stampedeTracker
}

// NewRiskService creates a RiskService with the provided collaborators.
// notifier and recorder may be nil when alerting or history is disabled.
func NewRiskService(predictor client.PredictorClient, assessmentCache *cache.AssessmentCache, notifier alert.Notifier, recorder *history.Recorder) *RiskService {
	return &RiskService{
		predictor: predictor,
		cache:     assessmentCache,
		notifier:  notifier,
		recorder:  recorder,
		stampede:  newStampedeTracker(),
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
// Returns nil if logger is not found or context is invalid.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// Assess returns the risk assessment for query, serving from cache when a
// live entry exists and otherwise computing through the predictor exactly
// once per key across concurrent callers. The returned assessment carries
// fromCache=true only when a pre-existing entry was served without a
// predictor call. Predictor failures propagate unchanged; they are never
// masked as a default risk level.
func (s *RiskService) Assess(ctx context.Context, query models.RiskQuery) (models.RiskAssessment, error) {
	if err := validation.ValidateQuery(query); err != nil {
		return models.RiskAssessment{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	query = query.WithDefaults()

	key := query.CacheKey()
	start := time.Now()
	logger := loggerFromContext(ctx)

	if s.recorder != nil {
		s.recorder.RecordObservation(query)
	}

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		// A broken store degrades to a miss; the predictor path below
		// still serves the caller.
		if logger != nil {
			logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
	} else if ok {
		observability.CacheHitsTotal.WithLabelValues(s.cache.Backend()).Inc()
		cached.FromCache = true
		if logger != nil {
			logger.Debug("assessment served",
				zap.String("key", key),
				zap.Bool("cached", true),
				zap.Duration("duration", time.Since(start)))
		}
		s.postCheck(ctx, key, cached)
		return cached, nil
	}

	observability.CacheMissesTotal.WithLabelValues(s.cache.Backend()).Inc()
	concurrentMisses := s.stampede.RecordMiss(key)
	defer s.stampede.RecordDone(key)
	if concurrentMisses > 1 && logger != nil {
		logger.Debug("concurrent misses for key", zap.String("key", key), zap.Int("count", concurrentMisses))
	}

	result, hit, err := s.cache.GetOrCompute(ctx, key, func(computeCtx context.Context) (models.RiskAssessment, error) {
		return s.predictor.Predict(computeCtx, query)
	})
	if err != nil {
		return models.RiskAssessment{}, fmt.Errorf("assess %s: %w", key, err)
	}

	result.FromCache = hit
	if !hit {
		observability.AssessmentsTotal.WithLabelValues(string(result.RiskLevel)).Inc()
		if s.recorder != nil {
			s.recorder.RecordPrediction(query.LocationKey(), result)
		}
	}
	if logger != nil {
		logger.Debug("assessment served",
			zap.String("key", key),
			zap.Bool("cached", hit),
			zap.Duration("duration", time.Since(start)))
	}
	s.postCheck(ctx, key, result)
	return result, nil
}

// AssessBatch assesses each query in order, sharing the cache and the
// single-flight layer, so duplicate keys within one batch cost a single
// predictor call. Fails on the first invalid query or predictor error.
func (s *RiskService) AssessBatch(ctx context.Context, queries []models.RiskQuery) ([]models.RiskAssessment, error) {
	if len(queries) > maxBatchSize {
		return nil, fmt.Errorf("%w: %d", ErrBatchTooLarge, len(queries))
	}
	results := make([]models.RiskAssessment, 0, len(queries))
	for i, q := range queries {
		a, err := s.Assess(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		results = append(results, a)
	}
	return results, nil
}

// postCheck emits the extreme-risk alert signal. Side-effect free with
// respect to the assessment; never blocks the response path.
func (s *RiskService) postCheck(ctx context.Context, key string, a models.RiskAssessment) {
	if s.notifier == nil || a.RiskLevel != models.RiskExtreme {
		return
	}
	s.notifier.ExtremeRisk(ctx, alert.NewEvent(key, a.RiskScore, a.RiskLevel))
}

// History exposes recorded events for a location key, oldest first.
// Returns nil when history is disabled.
func (s *RiskService) History(key string) []history.Event {
	if s.recorder == nil {
		return nil
	}
	return s.recorder.Events(key)
}
