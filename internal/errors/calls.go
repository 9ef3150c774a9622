package errors

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/adpilot/adpilot/internal/core/engine"
	"github.com/adpilot/adpilot/internal/core/platform"
)

// FromCallError maps an executor or platform failure to an envelope. Errors
// that did not come from the executor fall through to EnsureEnvelope.
func FromCallError(ctx context.Context, err error) *errors.ErrorEnvelope {
	if err == nil {
		return EnsureEnvelope(nil)
	}

	if stderrors.Is(err, platform.ErrUnknownPlatform) {
		return WrapInvalidInput(ctx, err, err.Error())
	}

	var callErr *engine.CallError
	if !stderrors.As(err, &callErr) {
		return EnsureEnvelope(err)
	}

	var envelope *errors.ErrorEnvelope
	switch {
	case callErr.Kind == engine.KindTimeout:
		envelope = WrapTimeout(ctx, err, callErr.Platform+" call timed out")
	case callErr.Kind == engine.KindCanceled:
		envelope = Wrap(ctx, CodeUnavailable, err, callErr.Platform+" call canceled")
	default:
		envelope = fromStatus(ctx, err, callErr.Platform, statusOf(callErr.Err))
	}

	updated, updateErr := envelope.WithContext(map[string]interface{}{
		"platform": callErr.Platform,
		"attempts": callErr.Attempts,
		"kind":     string(callErr.Kind),
	})
	if updateErr != nil {
		return envelope
	}
	return updated
}

func fromStatus(ctx context.Context, err error, platformName string, status int) *errors.ErrorEnvelope {
	switch status {
	case http.StatusTooManyRequests:
		return Wrap(ctx, CodeRateLimited, err, platformName+" rate limit exceeded")
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return WrapInvalidInput(ctx, err, platformName+" rejected the request")
	default:
		return WrapExternalService(ctx, err, platformName+" call failed")
	}
}

func statusOf(err error) int {
	var coder interface{ HTTPStatus() int }
	if stderrors.As(err, &coder) {
		return coder.HTTPStatus()
	}
	return 0
}
