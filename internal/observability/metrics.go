package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emberalert/risk-service/internal/health"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases, SLO breaches.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Predictor endpoint call rate. Watch for: error vs success ratio.
	PredictorCallsTotal *prometheus.CounterVec

	// Predictor latency per call. Watch for: p95 > 2s (upstream degradation), p99 > 5s (timeout risk).
	PredictorCallDuration *prometheus.HistogramVec

	// Predictor failures by category. Watch for: timeout vs server_error mix during incidents.
	PredictorErrorsTotal *prometheus.CounterVec

	// Cache hits by backend. Hit rate = hits/(hits+misses).
	CacheHitsTotal *prometheus.CounterVec

	// Cache misses by backend.
	CacheMissesTotal *prometheus.CounterVec

	// Cache evictions by reason (expired, capacity, corrupt).
	CacheEvictionsTotal *prometheus.CounterVec

	// Concurrent misses for the same key observed before the single-flight
	// layer collapsed them. Watch for: hot keys, TTL too short.
	StampedeDetectedTotal prometheus.Counter

	// Time callers spent waiting on a shared in-flight computation.
	InFlightWaitSeconds prometheus.Histogram

	// Assessments computed, by risk level. Watch for: EXTREME share climbing.
	AssessmentsTotal *prometheus.CounterVec

	// Extreme-risk alerts emitted to the notification collaborator.
	ExtremeAlertsTotal prometheus.Counter

	// History events dropped because the recorder buffer was full.
	HistoryDroppedTotal prometheus.Counter

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker state per component (0 closed, 1 open, 2 half-open).
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	rateLimitGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	PredictorCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictorCallsTotal",
			Help: "Total number of prediction endpoint calls",
		},
		[]string{"status"},
	)
	PredictorCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "predictorCallDurationSeconds",
			Help:    "Prediction endpoint latency in seconds (per call)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	PredictorErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictorErrorsTotal",
			Help: "Prediction endpoint failures by category; which failure mode dominates",
		},
		[]string{"category"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of assessment cache hits",
		},
		[]string{"backend"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of assessment cache misses",
		},
		[]string{"backend"},
	)
	CacheEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheEvictionsTotal",
			Help: "Cache entries evicted, by reason (expired, capacity, corrupt)",
		},
		[]string{"reason"},
	)
	StampedeDetectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheStampedeDetectedTotal",
			Help: "Concurrent misses for the same key before single-flight collapse",
		},
	)
	InFlightWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inFlightWaitSeconds",
			Help:    "Time spent waiting on a shared in-flight computation",
			Buckets: []float64{.001, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)
	AssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskAssessmentsTotal",
			Help: "Risk assessments computed (cache misses), by risk level",
		},
		[]string{"level"},
	)
	ExtremeAlertsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "extremeRiskAlertsTotal",
			Help: "Extreme-risk alert events emitted",
		},
	)
	HistoryDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "historyEventsDroppedTotal",
			Help: "History events dropped because the recorder buffer was full",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		PredictorCallsTotal, PredictorCallDuration, PredictorErrorsTotal,
		CacheHitsTotal, CacheMissesTotal, CacheEvictionsTotal,
		StampedeDetectedTotal, InFlightWaitSeconds,
		AssessmentsTotal, ExtremeAlertsTotal, HistoryDroppedTotal,
		RateLimitDeniedTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
	)
}

// RegisterRateLimitGauges registers load and rejects gauges for the rate-limited path.
// Call from main after config load with cfg.OverloadWindow.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests hitting rate-limited path in sliding window; load/capacity planning",
				},
				func() float64 { return float64(health.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window; are we rejecting requests",
				},
				func() float64 { return float64(health.DenialCount(window)) },
			),
		)
	})
}

// RecordCircuitBreakerTransition records a breaker state change for metrics.
func RecordCircuitBreakerTransition(component, from, to string) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
