package client

import (
	"context"
	"errors"
	"strings"

	"github.com/emberalert/risk-service/internal/circuitbreaker"
)

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

// Error category constants used as the predictorErrorsTotal metric label.
const (
	ErrorCategoryTimeout     ErrorCategory = "timeout"
	ErrorCategoryNetwork     ErrorCategory = "network"
	ErrorCategoryBreakerOpen ErrorCategory = "breaker_open"
	ErrorCategoryServerError ErrorCategory = "server_error"
	ErrorCategoryClientError ErrorCategory = "client_error"
	ErrorCategoryParsing     ErrorCategory = "parsing"
	ErrorCategoryBadResponse ErrorCategory = "bad_response"
	ErrorCategoryUnknown     ErrorCategory = "unknown"
)

// CategorizeError maps a predictor call error to a stable ErrorCategory for
// metrics. Sentinel checks first, then message heuristics for errors that
// only carry context in their text.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return ErrorCategoryBreakerOpen
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return ErrorCategoryTimeout
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network") {
		return ErrorCategoryNetwork
	}
	if strings.Contains(errStr, "HTTP 5") {
		return ErrorCategoryServerError
	}
	if strings.Contains(errStr, "HTTP 4") {
		return ErrorCategoryClientError
	}
	if strings.Contains(errStr, "parse") || strings.Contains(errStr, "unmarshal") {
		return ErrorCategoryParsing
	}
	if strings.Contains(errStr, "out of range") || strings.Contains(errStr, "missing model version") {
		return ErrorCategoryBadResponse
	}
	return ErrorCategoryUnknown
}
