package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/adpilot/adpilot/internal/errors"
)

// respondJSON writes v with the given status. Encoding failures after the
// header is written cannot be reported to the client.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondWithError renders err as a gofulmen envelope response.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}
