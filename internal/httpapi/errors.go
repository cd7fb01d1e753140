package httpapi

import (
	"encoding/json"
	"net/http"

	"xrayd/internal/engine"
	"xrayd/internal/loader"
	"xrayd/internal/preprocess"
	"xrayd/internal/runtime"
	"xrayd/pkg/types"
)

// mapError translates engine error kinds to HTTP status codes and the
// stable machine-readable kind callers switch on.
func mapError(err error) (int, string) {
	switch {
	case preprocess.IsInvalidImage(err):
		return http.StatusBadRequest, "invalid_image"
	case engine.IsInsufficientModels(err):
		return http.StatusServiceUnavailable, "insufficient_models"
	case loader.IsTooBusy(err):
		return http.StatusTooManyRequests, "too_busy"
	case loader.IsOutOfMemory(err):
		return http.StatusServiceUnavailable, "out_of_memory"
	case runtime.IsUnavailable(err):
		return http.StatusServiceUnavailable, "runtime_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status, Kind: kind})
}
