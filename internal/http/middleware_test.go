package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/emberalert/risk-service/internal/health"
)

// TestCorrelationIDMiddleware verifies that a correlation ID is generated
// when absent, propagated when present, and stored in the request context.
func TestCorrelationIDMiddleware(t *testing.T) {
	var seenID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v := r.Context().Value("correlation_id"); v != nil {
			seenID = v.(string)
		}
		if r.Context().Value("logger") == nil {
			t.Error("logger missing from request context")
		}
	})
	handler := CorrelationIDMiddleware(zap.NewNop())(inner)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seenID == "" {
		t.Error("no correlation ID generated")
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != seenID {
		t.Errorf("response header = %q, want %q", got, seenID)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "caller-supplied")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seenID != "caller-supplied" {
		t.Errorf("correlation ID = %q, want caller-supplied to propagate", seenID)
	}
}

// TestRateLimitMiddleware verifies the 429 path once the bucket drains and
// the pass-through when no limiter is configured.
func TestRateLimitMiddleware(t *testing.T) {
	t.Cleanup(health.Reset)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	limiter := rate.NewLimiter(rate.Limit(1), 1)
	handler := RateLimitMiddleware(limiter)(inner)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.Code)
	}
	if health.DenialCount(time.Minute) != 1 {
		t.Errorf("DenialCount = %d, want 1", health.DenialCount(time.Minute))
	}

	unlimited := RateLimitMiddleware(nil)(inner)
	rec := httptest.NewRecorder()
	unlimited.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("nil limiter status = %d, want 200", rec.Code)
	}
}

// TestTimeoutMiddleware verifies that the request context carries the
// configured deadline.
func TestTimeoutMiddleware(t *testing.T) {
	var hadDeadline bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadDeadline = r.Context().Deadline()
	})
	handler := TimeoutMiddleware(50 * time.Millisecond)(inner)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !hadDeadline {
		t.Error("request context has no deadline")
	}
}

// TestGetRoute verifies bounded-cardinality route labels.
func TestGetRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/api/risk/predict", "/api/risk/predict"},
		{"/api/risk/predict/batch", "/api/risk/predict/batch"},
		{"/api/risk/location", "/api/risk/location"},
		{"/api/risk/history", "/api/risk/history"},
		{"/favicon.ico", "other"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if got := getRoute(r); got != tt.want {
			t.Errorf("getRoute(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

// TestStatusCodeString verifies class bucketing for status code labels.
func TestStatusCodeString(t *testing.T) {
	if got := statusCodeString(204); got != "2xx" {
		t.Errorf("statusCodeString(204) = %q, want 2xx", got)
	}
	if got := statusCodeString(503); got != "5xx" {
		t.Errorf("statusCodeString(503) = %q, want 5xx", got)
	}
}
