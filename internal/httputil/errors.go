package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the error body returned by every non-streaming endpoint.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func WriteError(w http.ResponseWriter, requestID string, statusCode int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Detail: detail})
}

func WriteBadRequestError(w http.ResponseWriter, requestID, detail string) {
	WriteError(w, requestID, http.StatusBadRequest, detail)
}

func WriteInternalError(w http.ResponseWriter, requestID, detail string) {
	WriteError(w, requestID, http.StatusInternalServerError, detail)
}

func WriteRateLimitError(w http.ResponseWriter, requestID, detail string) {
	WriteError(w, requestID, http.StatusTooManyRequests, detail)
}

// WriteJSON writes a success payload with status 200.
func WriteJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
