package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/emberalert/risk-service/internal/client"
	"github.com/emberalert/risk-service/internal/health"
	"github.com/emberalert/risk-service/internal/models"
	"github.com/emberalert/risk-service/internal/service"
)

// Default weather observations for the GET parameter form when the caller
// supplies coordinates only.
const (
	defaultTemperature = 75.0
	defaultHumidity    = 50.0
	defaultWindSpeed   = 10.0
)

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow         time.Duration
	OverloadThresholdPct   int
	RateLimitRPS           int
	RateLimitBurst         int // 0 when rate limiter disabled
	DegradedWindow         time.Duration
	DegradedErrorPct       int
	IdleWindow             time.Duration
	IdleThresholdReqPerMin int
	MinimumLifespan        time.Duration
	StartTime              time.Time
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	riskService      *service.RiskService
	predictor        client.PredictorClient
	healthConfig     *HealthConfig
	logger           *zap.Logger
	rateLimiter      *rate.Limiter
	validate         *validator.Validate
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(
	riskService *service.RiskService,
	predictor client.PredictorClient,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	rateLimiter *rate.Limiter,
) *Handler {
	return &Handler{
		riskService:  riskService,
		predictor:    predictor,
		healthConfig: healthConfig,
		logger:       logger,
		rateLimiter:  rateLimiter,
		validate:     validator.New(),
	}
}

// PredictRisk handles POST /api/risk/predict.
func (h *Handler) PredictRisk(w http.ResponseWriter, r *http.Request) {
	var query models.RiskQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be a JSON risk query")
		return
	}
	if err := h.validate.Struct(query); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}

	result, err := h.riskService.Assess(r.Context(), query)
	if err != nil {
		h.writeAssessError(w, r, err)
		return
	}
	health.RecordSuccess()
	writeJSON(w, http.StatusOK, result)
}

// batchRequest is the POST /api/risk/predict/batch body.
type batchRequest struct {
	Queries []models.RiskQuery `json:"queries"`
}

// PredictRiskBatch handles POST /api/risk/predict/batch.
func (h *Handler) PredictRiskBatch(w http.ResponseWriter, r *http.Request) {
	var body batchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be a JSON object with a queries array")
		return
	}
	if len(body.Queries) == 0 {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "queries must not be empty")
		return
	}
	for i, q := range body.Queries {
		if err := h.validate.Struct(q); err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", fmt.Sprintf("query %d: %v", i, err))
			return
		}
	}

	results, err := h.riskService.AssessBatch(r.Context(), body.Queries)
	if err != nil {
		h.writeAssessError(w, r, err)
		return
	}
	health.RecordSuccess()
	writeJSON(w, http.StatusOK, map[string]interface{}{"assessments": results})
}

// GetRiskByLocation handles GET /api/risk/location. Coordinates are
// required; omitted weather parameters fall back to documented defaults.
func (h *Handler) GetRiskByLocation(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := parseCoordinates(w, r)
	if !ok {
		return
	}

	query := models.RiskQuery{
		Latitude:    lat,
		Longitude:   lon,
		Temperature: defaultTemperature,
		Humidity:    defaultHumidity,
		WindSpeed:   defaultWindSpeed,
	}
	params := r.URL.Query()
	if v, err := parseOptionalFloat(params.Get("temp")); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", "temp must be a number")
		return
	} else if v != nil {
		query.Temperature = *v
	}
	if v, err := parseOptionalFloat(params.Get("humidity")); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", "humidity must be a number")
		return
	} else if v != nil {
		query.Humidity = *v
	}
	if v, err := parseOptionalFloat(params.Get("windSpeed")); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", "windSpeed must be a number")
		return
	} else if v != nil {
		query.WindSpeed = *v
	}

	result, err := h.riskService.Assess(r.Context(), query)
	if err != nil {
		h.writeAssessError(w, r, err)
		return
	}
	health.RecordSuccess()
	writeJSON(w, http.StatusOK, result)
}

// GetHistory handles GET /api/risk/history?lat=&lon=.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := parseCoordinates(w, r)
	if !ok {
		return
	}

	key := models.RiskQuery{Latitude: lat, Longitude: lon}.LocationKey()
	events := h.riskService.History(key)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"location": key,
		"events":   events,
	})
}

// parseCoordinates extracts required lat/lon query parameters, writing a 400
// response when missing or malformed.
func parseCoordinates(w http.ResponseWriter, r *http.Request) (lat, lon float64, ok bool) {
	params := r.URL.Query()
	lat, err := strconv.ParseFloat(params.Get("lat"), 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", "lat is required and must be a number")
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(params.Get("lon"), 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", "lon is required and must be a number")
		return 0, 0, false
	}
	return lat, lon, true
}

func parseOptionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// writeAssessError maps service errors to HTTP responses and records the
// outcome for health tracking. Validation failures are the caller's fault
// and do not count against the error rate.
func (h *Handler) writeAssessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidQuery):
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
	case errors.Is(err, service.ErrBatchTooLarge):
		writeError(w, r, http.StatusBadRequest, "BATCH_TOO_LARGE", err.Error())
	case errors.Is(err, client.ErrPredictorUnavailable):
		health.RecordError()
		writeError(w, r, http.StatusServiceUnavailable, "PREDICTOR_UNAVAILABLE", "Unable to reach the prediction model")
		if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
			logger.Debug("predictor error", zap.Error(err))
		}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		health.RecordError()
		writeError(w, r, http.StatusGatewayTimeout, "REQUEST_TIMEOUT", "Request timed out")
	default:
		health.RecordError()
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "Internal error")
		if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
			logger.Error("unhandled assess error", zap.Error(err))
		}
	}
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if result.reason == "predictor_unreachable" {
		checks["predictor"] = "unhealthy"
	} else {
		checks["predictor"] = "healthy"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "risk-service",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus determines the current health status by evaluating
// conditions in priority order. Decision order: shutting-down > predictor
// unreachable > overloaded > idle > degraded > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	if health.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if err := h.predictor.Ping(ctx); err != nil {
		return healthResult{"degraded", http.StatusServiceUnavailable, "predictor_unreachable"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	// Overload: total request volume (accepted + denied) in the window
	// exceeds the configured fraction of rate-limiter capacity.
	if h.healthConfig.RateLimitRPS > 0 && h.healthConfig.OverloadWindow > 0 {
		threshold := float64(h.healthConfig.RateLimitRPS) * h.healthConfig.OverloadWindow.Seconds() * float64(h.healthConfig.OverloadThresholdPct) / 100
		if float64(health.RequestCount(h.healthConfig.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	// Idle reporting only kicks in after the minimum lifespan.
	if h.healthConfig.IdleWindow > 0 && h.healthConfig.MinimumLifespan > 0 && time.Since(h.healthConfig.StartTime) >= h.healthConfig.MinimumLifespan {
		if health.RequestCount(h.healthConfig.IdleWindow) < h.healthConfig.IdleThresholdReqPerMin {
			return healthResult{"idle", http.StatusOK, "low_traffic"}
		}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errs, total := health.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errs) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code,
// message, and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}
