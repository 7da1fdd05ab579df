package api

import (
	stderrors "errors"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/prime-rewards/internal/errors"
	"github.com/prime-rewards/internal/storage"
	"github.com/prime-rewards/internal/types"
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

// writeError maps a domain error onto the HTTP response
func writeError(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, storage.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found", nil)
		return
	case stderrors.Is(err, storage.ErrTaskNotFound):
		respondError(w, http.StatusNotFound, "TASK_NOT_FOUND", "Task not found", nil)
		return
	}

	catErr := errors.Categorize(err)
	if catErr.StatusCode >= 500 {
		respondError(w, catErr.StatusCode, catErr.Code, "An internal error occurred", nil)
		return
	}
	respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
