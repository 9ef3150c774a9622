package ailink

import (
	"context"
	"errors"
	"strings"

	"github.com/adpilot/adpilot/internal/ailink/driver"
	"github.com/adpilot/adpilot/internal/core/engine"
)

func mapProviderError(err error) *SummaryError {
	if err == nil {
		return nil
	}
	mapped := classifyProviderError(err)
	mapped.Err = err
	return mapped
}

func classifyProviderError(err error) *SummaryError {
	if engine.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return &SummaryError{Code: "AILINK_PROVIDER_TIMEOUT", Message: "provider request timed out"}
	}
	if errors.Is(err, engine.ErrCallCanceled) || errors.Is(err, context.Canceled) {
		return &SummaryError{Code: "AILINK_CANCELED", Message: "summary canceled"}
	}

	var perr *driver.ProviderError
	if errors.As(err, &perr) && perr != nil {
		status := perr.StatusCode
		details := strings.TrimSpace(perr.Message)
		switch {
		case status == 401 || status == 403:
			return &SummaryError{Code: "AILINK_PROVIDER_AUTH", Message: "provider authentication failed", Details: details}
		case status == 429:
			return &SummaryError{Code: "AILINK_PROVIDER_RATE_LIMIT", Message: "provider rate limited", Details: details}
		case status >= 500 && status <= 599:
			return &SummaryError{Code: "AILINK_PROVIDER_UNAVAILABLE", Message: "provider unavailable", Details: details}
		case status >= 400 && status <= 499:
			return &SummaryError{Code: "AILINK_PROVIDER_BAD_REQUEST", Message: "provider rejected request", Details: details}
		default:
			return &SummaryError{Code: "AILINK_PROVIDER_ERROR", Message: "provider request failed", Details: details}
		}
	}

	return &SummaryError{Code: "AILINK_PROVIDER_ERROR", Message: "provider request failed", Details: err.Error()}
}
