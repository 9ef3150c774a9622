package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/adpilot/adpilot/internal/core"
	"github.com/adpilot/adpilot/internal/core/abtest"
	apperrors "github.com/adpilot/adpilot/internal/errors"
	"github.com/adpilot/adpilot/internal/metrics"
)

const maxEvaluateBody = 1 << 20

// EvaluateRequest is the body of POST /v1/abtests/evaluate.
type EvaluateRequest struct {
	KPI      string               `json:"kpi"`
	Variants []core.MetricVariant `json:"variants"`
}

// EvaluateHandler scores the posted variants and returns the verdict. Thin
// data is not an error: the verdict carries the reason.
func EvaluateHandler(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	body := http.MaxBytesReader(w, r.Body, maxEvaluateBody)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "request body must be JSON with kpi and variants"))
		return
	}
	if _, err := decoder.Token(); err != io.EOF {
		respondWithError(w, r, apperrors.NewInvalidInputError("request body must contain a single JSON object"))
		return
	}
	for i, v := range req.Variants {
		if v.Name == "" {
			respondWithError(w, r, apperrors.NewValidationError(fmt.Sprintf("variants[%d].name is required", i)))
			return
		}
		if v.Impressions < 0 || v.Clicks < 0 || v.Conversions < 0 || v.Spend < 0 || v.ROAS < 0 || v.CPA < 0 {
			respondWithError(w, r, apperrors.NewValidationError(fmt.Sprintf("variants[%d] has negative metrics", i)))
			return
		}
	}

	verdict := abtest.Evaluate(req.Variants, req.KPI)
	metrics.RecordEvaluation(string(verdict.KPI), verdict.Significant)

	respondJSON(w, http.StatusOK, verdict)
}
