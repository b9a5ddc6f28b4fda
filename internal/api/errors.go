package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/pixel-backend/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Common error codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// respondServiceError maps a service error to an HTTP response.
func respondServiceError(w http.ResponseWriter, err error) {
	var serviceErr *types.ServiceError
	if errors.As(err, &serviceErr) {
		switch serviceErr.Code {
		case "INVALID_SHOP_DOMAIN", "INVALID_PULL_MODE", "INVALID_RESOURCE_TYPE", "INVALID_EVENT":
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, serviceErr.Message, serviceErr.Details)
		case "SHOP_NOT_FOUND", "EXTENSION_NOT_FOUND":
			respondError(w, http.StatusNotFound, ErrCodeNotFound, serviceErr.Message, serviceErr.Details)
		case "RATE_LIMITED":
			if secs, ok := serviceErr.Details["retry_after_seconds"].(int); ok && secs > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(secs))
			}
			respondError(w, http.StatusTooManyRequests, ErrCodeRateLimited, serviceErr.Message, serviceErr.Details)
		default:
			respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil)
		}
		return
	}

	respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil)
}
