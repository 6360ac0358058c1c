package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/emberalert/risk-service/internal/circuitbreaker"
	"github.com/emberalert/risk-service/internal/models"
	"github.com/emberalert/risk-service/internal/observability"
)

// PredictorClient is the outbound interface to the model-serving endpoint.
type PredictorClient interface {
	Predict(ctx context.Context, query models.RiskQuery) (models.RiskAssessment, error)
	Ping(ctx context.Context) error
}

// ErrPredictorUnavailable is returned for timeouts, transport failures,
// non-2xx responses, and malformed response bodies. Safe for the caller to
// retry; never cached.
var ErrPredictorUnavailable = errors.New("predictor unavailable")

// ErrInvalidBaseURL is returned when the configured base URL is missing or unparseable.
var ErrInvalidBaseURL = errors.New("invalid predictor base URL")

const predictPath = "/api/v1/predict"

// HTTPPredictorClient calls the remote prediction endpoint over HTTP.
// Constructed once at startup and immutable thereafter. Performs a single
// call per Predict with a bounded timeout and no internal retries; retry
// policy belongs to the caller.
type HTTPPredictorClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	sem     *semaphore.Weighted
	breaker *circuitbreaker.CircuitBreaker
}

// NewHTTPPredictorClient creates a predictor client for the given base URL.
// maxConcurrent bounds simultaneous outbound calls so a slow predictor
// cannot absorb unbounded goroutines; 0 means a default of 32.
func NewHTTPPredictorClient(baseURL string, timeout time.Duration, maxConcurrent int64) (*HTTPPredictorClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidBaseURL)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 32
	}
	return &HTTPPredictorClient{
		baseURL: baseURL,
		timeout: timeout,
		sem:     semaphore.NewWeighted(maxConcurrent),
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker attaches a breaker around predictor calls. Call once
// during startup, before serving traffic.
func (c *HTTPPredictorClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

// predictRequest is the wire form of a risk query.
type predictRequest struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     float64 `json:"windSpeed"`
	WindDirection float64 `json:"windDirection"`
	Pressure      float64 `json:"pressure"`
}

// predictResponse is the wire form of a prediction result.
type predictResponse struct {
	RiskScore           float64            `json:"riskScore"`
	RiskLevel           string             `json:"riskLevel"`
	ModelVersion        string             `json:"modelVersion"`
	ContributingFactors map[string]float64 `json:"contributingFactors"`
}

// Predict issues a single POST to the prediction endpoint. Any transport
// error, timeout, non-2xx status, or response that cannot be decoded into a
// complete assessment results in ErrPredictorUnavailable; a partially
// populated assessment is never returned.
func (c *HTTPPredictorClient) Predict(ctx context.Context, query models.RiskQuery) (models.RiskAssessment, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return models.RiskAssessment{}, fmt.Errorf("%w: %v", ErrPredictorUnavailable, err)
	}
	defer c.sem.Release(1)

	var result models.RiskAssessment
	call := func() error {
		var err error
		result, err = c.callPredict(ctx, query)
		return err
	}
	if c.breaker != nil {
		if err := c.breaker.Call(call); err != nil {
			observability.PredictorErrorsTotal.WithLabelValues(string(CategorizeError(err))).Inc()
			if errors.Is(err, circuitbreaker.ErrOpen) {
				return models.RiskAssessment{}, fmt.Errorf("%w: %v", ErrPredictorUnavailable, err)
			}
			return models.RiskAssessment{}, err
		}
		return result, nil
	}
	if err := call(); err != nil {
		observability.PredictorErrorsTotal.WithLabelValues(string(CategorizeError(err))).Inc()
		return models.RiskAssessment{}, err
	}
	return result, nil
}

func (c *HTTPPredictorClient) callPredict(ctx context.Context, query models.RiskQuery) (models.RiskAssessment, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(predictRequest{
		Latitude:      query.Latitude,
		Longitude:     query.Longitude,
		Temperature:   query.Temperature,
		Humidity:      query.Humidity,
		WindSpeed:     query.WindSpeed,
		WindDirection: query.WindDirection,
		Pressure:      query.Pressure,
	})
	if err != nil {
		return models.RiskAssessment{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+predictPath, bytes.NewReader(body))
	if err != nil {
		observability.PredictorCallsTotal.WithLabelValues("error").Inc()
		return models.RiskAssessment{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.PredictorCallsTotal.WithLabelValues("error").Inc()
		observability.PredictorCallDuration.WithLabelValues("error").Observe(duration)
		return models.RiskAssessment{}, fmt.Errorf("%w: %v", ErrPredictorUnavailable, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.PredictorCallsTotal.WithLabelValues(status).Inc()
	observability.PredictorCallDuration.WithLabelValues(status).Observe(duration)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.RiskAssessment{}, fmt.Errorf("%w: HTTP %d", ErrPredictorUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.RiskAssessment{}, fmt.Errorf("%w: read response: %v", ErrPredictorUnavailable, err)
	}

	var pr predictResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return models.RiskAssessment{}, fmt.Errorf("%w: parse response: %v", ErrPredictorUnavailable, err)
	}
	if pr.RiskScore < 0 || pr.RiskScore > 1 {
		return models.RiskAssessment{}, fmt.Errorf("%w: risk score %v out of range", ErrPredictorUnavailable, pr.RiskScore)
	}
	if pr.ModelVersion == "" {
		return models.RiskAssessment{}, fmt.Errorf("%w: response missing model version", ErrPredictorUnavailable)
	}

	// The level is derived locally from the score so it stays a pure
	// function of the fixed thresholds even if the remote disagrees.
	return models.RiskAssessment{
		Latitude:            query.Latitude,
		Longitude:           query.Longitude,
		RiskScore:           pr.RiskScore,
		RiskLevel:           models.RiskLevelForScore(pr.RiskScore),
		Timestamp:           time.Now().UTC(),
		ModelVersion:        pr.ModelVersion,
		ContributingFactors: pr.ContributingFactors,
		FromCache:           false,
	}, nil
}

// Ping checks predictor reachability for health checks. Any response,
// including an error status, proves the endpoint is reachable.
func (c *HTTPPredictorClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPredictorUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func extractCorrelationID(ctx context.Context) string {
	if v := ctx.Value("correlation_id"); v != nil {
		if corrID, ok := v.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}
