package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpilot/adpilot/internal/server/middleware"
)

func TestWrapStampsRequestID(t *testing.T) {
	ctx := middleware.WithRequestID(context.Background(), "req-123")

	envelope := WrapDatabaseError(ctx, stderrors.New("disk I/O error"), "save verdict failed")

	assert.Equal(t, CodeDatabase, envelope.Code)
	assert.Equal(t, "req-123", envelope.CorrelationID)
	assert.Equal(t, "disk I/O error", envelope.Context["wrapped_error"])
}

func TestWrapWithoutRequestGeneratesID(t *testing.T) {
	envelope := WrapConfigInvalid(context.Background(), nil, "bad limits")

	assert.Equal(t, CodeConfigInvalid, envelope.Code)
	assert.Len(t, envelope.CorrelationID, 36)
	_, hasWrapped := envelope.Context["wrapped_error"]
	assert.False(t, hasWrapped)
}

func TestHTTPStatusFromCode(t *testing.T) {
	cases := map[string]int{
		CodeInvalidInput:     http.StatusBadRequest,
		CodeValidationFailed: http.StatusBadRequest,
		CodeNotFound:         http.StatusNotFound,
		CodeMethodNotAllowed: http.StatusMethodNotAllowed,
		CodeRateLimited:      http.StatusTooManyRequests,
		CodeTimeout:          http.StatusGatewayTimeout,
		CodeExternalService:  http.StatusBadGateway,
		CodeUnavailable:      http.StatusServiceUnavailable,
		CodeDatabase:         http.StatusInternalServerError,
		CodeConfigInvalid:    http.StatusInternalServerError,
		"SOMETHING_NEW":      http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, HTTPStatusFromCode(code), code)
	}
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusFromEnvelope(nil))
}

func TestEnsureEnvelope(t *testing.T) {
	original := NewValidationError("variants[0].name is required")
	assert.Same(t, original, EnsureEnvelope(original))

	wrapped := EnsureEnvelope(stderrors.New("boom"))
	assert.Equal(t, CodeInternal, wrapped.Code)
	assert.Equal(t, "boom", wrapped.Context["wrapped_error"])

	assert.Equal(t, CodeInternal, EnsureEnvelope(nil).Code)
}

func TestRespondWithErrorWritesEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/abtests/evaluate", nil)
	req = req.WithContext(middleware.WithRequestID(req.Context(), "req-9"))
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, NewInvalidInputError("request body must be JSON"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeInvalidInput, body.Error.Code)
	assert.Equal(t, "request body must be JSON", body.Error.Message)
	assert.Equal(t, "req-9", body.Error.RequestID)
}

func TestResponseDetailsPrefersDetails(t *testing.T) {
	envelope, err := NewExternalServiceError("meta call failed").WithContext(map[string]interface{}{
		"platform": "meta",
	})
	require.NoError(t, err)

	details := ResponseDetails(envelope)
	assert.Equal(t, "meta", details["platform"])
	assert.Nil(t, ResponseDetails(NewNotFoundError("missing")))
}
