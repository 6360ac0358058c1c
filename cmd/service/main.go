package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/emberalert/risk-service/internal/alert"
	"github.com/emberalert/risk-service/internal/cache"
	"github.com/emberalert/risk-service/internal/circuitbreaker"
	"github.com/emberalert/risk-service/internal/client"
	"github.com/emberalert/risk-service/internal/config"
	"github.com/emberalert/risk-service/internal/health"
	"github.com/emberalert/risk-service/internal/history"
	httphandler "github.com/emberalert/risk-service/internal/http"
	"github.com/emberalert/risk-service/internal/models"
	"github.com/emberalert/risk-service/internal/observability"
	"github.com/emberalert/risk-service/internal/scheduler"
	"github.com/emberalert/risk-service/internal/service"
)

func main() {
	_ = godotenv.Load()

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	predictor, err := client.NewHTTPPredictorClient(cfg.PredictorURL, cfg.PredictorTimeout, cfg.PredictorMaxConcurrent)
	if err != nil {
		logger.Fatal("predictor client", zap.Error(err))
	}

	if cfg.BreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.BreakerFailureThreshold,
			SuccessThreshold: cfg.BreakerSuccessThreshold,
			Timeout:          cfg.BreakerTimeout,
			Component:        "predictor",
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition("predictor", from.String(), to.String())
				observability.CircuitBreakerState.WithLabelValues("predictor").Set(float64(to))
			},
		})
		predictor.SetCircuitBreaker(cb)
		observability.CircuitBreakerState.WithLabelValues("predictor").Set(0)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.BreakerFailureThreshold),
			zap.Duration("timeout", cfg.BreakerTimeout))
	}

	var store cache.Store
	var memStore *cache.MemoryStore
	var memcachedStore *cache.MemcachedStore
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached store", zap.Error(err))
		}
		memcachedStore = mc
		store = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		memStore = cache.NewMemoryStore(cfg.CacheMaxEntries)
		store = memStore
		logger.Info("cache backend: in_memory",
			zap.Int("max_entries", cfg.CacheMaxEntries),
			zap.Duration("ttl", cfg.CacheTTL))
	}
	assessmentCache := cache.NewAssessmentCache(store, cfg.CacheBackend, cfg.CacheTTL, cfg.CoalesceWaitTimeout)

	recorder := history.NewRecorder(256, cfg.HistoryMaxPerKey, cfg.HistoryMaxAge)
	notifier := alert.NewLogNotifier(logger)
	riskService := service.NewRiskService(predictor, assessmentCache, notifier, recorder)

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:         cfg.OverloadWindow,
		OverloadThresholdPct:   cfg.OverloadThresholdPct,
		RateLimitRPS:           cfg.RateLimitRPS,
		RateLimitBurst:         cfg.RateLimitBurst,
		DegradedWindow:         cfg.DegradedWindow,
		DegradedErrorPct:       cfg.DegradedErrorPct,
		IdleWindow:             cfg.IdleWindow,
		IdleThresholdReqPerMin: cfg.IdleThresholdReqPerMin,
		MinimumLifespan:        cfg.MinimumLifespan,
		StartTime:              time.Now(),
	}
	if memcachedStore != nil {
		healthConfig.CachePing = memcachedStore.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(riskService, predictor, healthConfig, logger, limiter)

	observability.RegisterRateLimitGauges(cfg.OverloadWindow)

	warmQueries := warmingQueries(cfg.Locations)
	warmer := cache.NewWarmer(riskService, logger)
	if cfg.WarmingEnabled && len(warmQueries) > 0 {
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := warmer.Warm(warmCtx, warmQueries); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		warmCancel()
	}

	sched := scheduler.New(logger)
	if memStore != nil {
		sched = sched.WithSweep(memStore, cfg.CacheSweepInterval)
	}
	if cfg.WarmingEnabled && cfg.WarmingInterval > 0 {
		sched = sched.WithWarming(warmer, warmQueries, cfg.WarmingInterval)
	}
	if err := sched.Start(); err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	riskRouter := router.PathPrefix("/api/risk").Subrouter()
	riskRouter.Use(httphandler.RateLimitMiddleware(limiter))
	riskRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	riskRouter.HandleFunc("/predict", handler.PredictRisk).Methods("POST")
	riskRouter.HandleFunc("/predict/batch", handler.PredictRiskBatch).Methods("POST")
	riskRouter.HandleFunc("/location", handler.GetRiskByLocation).Methods("GET")
	riskRouter.HandleFunc("/history", handler.GetHistory).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	health.SetShuttingDown(true)
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed",
			zap.Error(err),
			zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	recorder.Close()
	if memcachedStore != nil {
		if err := memcachedStore.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

// warmingQueries converts tracked locations into queries with default
// weather observations. The warmed entry covers the parameter-form GET
// endpoint's default bucket.
func warmingQueries(locations []config.Location) []models.RiskQuery {
	queries := make([]models.RiskQuery, 0, len(locations))
	for _, loc := range locations {
		queries = append(queries, models.RiskQuery{
			Latitude:    loc.Latitude,
			Longitude:   loc.Longitude,
			Temperature: 75,
			Humidity:    50,
			WindSpeed:   10,
		})
	}
	return queries
}
