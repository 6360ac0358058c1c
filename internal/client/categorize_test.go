package client

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/emberalert/risk-service/internal/circuitbreaker"
)

// TestCategorizeError verifies that CategorizeError maps errors to the
// correct ErrorCategory for metrics labeling, including sentinel errors,
// wrapped errors, and message-based heuristics.
func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"deadline exceeded", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"canceled context", context.Canceled, ErrorCategoryTimeout},
		{"wrapped deadline", fmt.Errorf("predictor unavailable: %w", context.DeadlineExceeded), ErrorCategoryTimeout},
		{"breaker open", circuitbreaker.ErrOpen, ErrorCategoryBreakerOpen},
		{"wrapped breaker open", fmt.Errorf("call: %w", circuitbreaker.ErrOpen), ErrorCategoryBreakerOpen},
		{"timeout in message", errors.New("client timeout awaiting headers"), ErrorCategoryTimeout},
		{"connection refused", errors.New("dial tcp: connection refused"), ErrorCategoryNetwork},
		{"no such host", errors.New("dial tcp: lookup predictor: no such host"), ErrorCategoryNetwork},
		{"server error status", errors.New("predictor unavailable: HTTP 503"), ErrorCategoryServerError},
		{"client error status", errors.New("predictor unavailable: HTTP 422"), ErrorCategoryClientError},
		{"parse failure", errors.New("predictor unavailable: parse response: invalid character"), ErrorCategoryParsing},
		{"score out of range", errors.New("predictor unavailable: risk score 1.7 out of range"), ErrorCategoryBadResponse},
		{"missing model version", errors.New("predictor unavailable: response missing model version"), ErrorCategoryBadResponse},
		{"unknown", errors.New("something else"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.want {
				t.Errorf("CategorizeError() = %v, want %v", got, tt.want)
			}
		})
	}
}
