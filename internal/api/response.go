package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/zavetisce/internal/store"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// storeError maps a store-layer error to an HTTP response. Every mutating
// call returns a definite outcome; nothing here is fire and forget.
func storeError(w http.ResponseWriter, err error) {
	var insufficient *store.InsufficientStockError

	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrInvalidAmount):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrInvalidState):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.As(err, &insufficient):
		jsonResponse(w, http.StatusConflict, map[string]any{
			"error":     "insufficient stock",
			"shortfall": insufficient.Shortfall,
		})
	case errors.Is(err, store.ErrStockContention):
		// Transient: the client can safely retry the whole operation.
		jsonError(w, http.StatusServiceUnavailable, err.Error())
	default:
		slog.Error("store operation failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
