package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"kopilka/internal/auth"
	"kopilka/internal/storage"
)

const maxBodyBytes = 1 << 20 // 1MB

type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

func respondSuccess(w http.ResponseWriter) {
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

// decodeJSON reads a bounded JSON body into dst. Unknown fields are allowed
// (clients send whole forms); type mismatches and syntax errors are not.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// respondServiceError maps auth service errors onto the HTTP taxonomy.
// Unexpected faults become an opaque 500; details stay in the server log.
func respondServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Reason)
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrAlreadyConfigured):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrNotConfigured):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		logger.ErrorContext(r.Context(), "Internal error", "error", err, "path", r.URL.Path)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// respondStorageError maps repository errors: missing rows are 404, the rest
// are opaque 500s.
func respondStorageError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	logger.ErrorContext(r.Context(), "Storage error", "error", err, "path", r.URL.Path)
	respondError(w, http.StatusInternalServerError, "internal error")
}
