package handlers

import (
	"net/http"

	"github.com/adpilot/adpilot/internal/core"
)

// LimitSource reports live limiter state.
type LimitSource interface {
	Snapshots() []core.LimiterSnapshot
}

// LimitsHandler returns the per-platform budgets with in-flight and queued
// counts.
func LimitsHandler(source LimitSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshots := []core.LimiterSnapshot{}
		if source != nil {
			snapshots = append(snapshots, source.Snapshots()...)
		}

		respondJSON(w, http.StatusOK, map[string]any{"limits": snapshots})
	}
}
