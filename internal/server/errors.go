package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrWong99/aibridge/pkg/bridge"
	"github.com/MrWong99/aibridge/pkg/observe"
	"github.com/MrWong99/aibridge/pkg/vectorstore"
)

// errBadRequest marks malformed request bodies and missing fields.
var errBadRequest = errors.New("bad request")

// statusFor maps an error returned by a facade to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, bridge.ErrInvalidMessage),
		errors.Is(err, bridge.ErrImageTooLarge),
		errors.Is(err, bridge.ErrUndefinedSimilarity),
		errors.Is(err, vectorstore.ErrDimensionMismatch):
		return http.StatusBadRequest
	case errors.Is(err, bridge.ErrProviderNotFound),
		errors.Is(err, vectorstore.ErrCollectionNotFound),
		errors.Is(err, vectorstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, bridge.ErrUnsupportedCapability):
		return http.StatusUnprocessableEntity
	case errors.Is(err, bridge.ErrClientUnavailable),
		errors.Is(err, bridge.ErrGeneratorUnavailable):
		return http.StatusServiceUnavailable
	default:
		// Backend failures and structured parse errors.
		return http.StatusBadGateway
	}
}

// fail writes err with the status chosen by [statusFor].
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Warn("request failed", "path", r.URL.Path, "status", status, "err", err)
	}
	writeError(w, status, err.Error())
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
