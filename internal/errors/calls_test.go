package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpilot/adpilot/internal/ailink/driver"
	"github.com/adpilot/adpilot/internal/core/engine"
	"github.com/adpilot/adpilot/internal/core/platform"
)

func TestFromCallError(t *testing.T) {
	ctx := context.Background()
	providerErr := func(status int) error {
		return &driver.ProviderError{Provider: "meta", StatusCode: status, Message: "boom"}
	}

	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"timeout", &engine.CallError{Platform: "meta", Attempts: 2, Kind: engine.KindTimeout, Err: providerErr(503)}, "TIMEOUT", http.StatusGatewayTimeout},
		{"canceled", &engine.CallError{Platform: "meta", Attempts: 1, Kind: engine.KindCanceled}, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable},
		{"rate limited", &engine.CallError{Platform: "meta", Attempts: 4, Kind: engine.KindExhausted, Err: providerErr(429)}, "RATE_LIMITED", http.StatusTooManyRequests},
		{"bad request", &engine.CallError{Platform: "meta", Attempts: 1, Kind: engine.KindPermanent, Err: providerErr(400)}, "INVALID_INPUT", http.StatusBadRequest},
		{"upstream auth", &engine.CallError{Platform: "meta", Attempts: 1, Kind: engine.KindPermanent, Err: providerErr(401)}, "EXTERNAL_SERVICE_ERROR", http.StatusBadGateway},
		{"wrapped", fmt.Errorf("fetch: %w", &engine.CallError{Platform: "tiktok", Attempts: 4, Kind: engine.KindExhausted, Err: providerErr(503)}), "EXTERNAL_SERVICE_ERROR", http.StatusBadGateway},
		{"unknown platform", fmt.Errorf("%w: %q", platform.ErrUnknownPlatform, "bing"), "INVALID_INPUT", http.StatusBadRequest},
		{"plain", fmt.Errorf("disk full"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envelope := FromCallError(ctx, tt.err)
			require.NotNil(t, envelope)
			assert.Equal(t, tt.code, envelope.Code)
			assert.Equal(t, tt.status, HTTPStatusFromEnvelope(envelope))
		})
	}
}

func TestFromCallErrorCarriesAttemptContext(t *testing.T) {
	err := &engine.CallError{Platform: "anthropic", Attempts: 3, Kind: engine.KindExhausted, Err: &driver.ProviderError{Provider: "anthropic", StatusCode: 529}}

	envelope := FromCallError(context.Background(), err)
	details := ResponseDetails(envelope)
	require.NotNil(t, details)
	assert.Equal(t, "anthropic", details["platform"])
	assert.Equal(t, 3, details["attempts"])
	assert.Equal(t, "exhausted", details["kind"])
}
