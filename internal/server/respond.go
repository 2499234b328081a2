package server

import (
	"encoding/json"
	"net/http"
)

type meetingResponse struct {
	Success bool `json:"success"`
	Meeting any  `json:"meeting"`
}

type meetingsResponse struct {
	Success  bool `json:"success"`
	Meetings any  `json:"meetings"`
}

type errorResponse struct {
	Error   ErrorCode `json:"error"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// setCommonHeaders applies the headers every API response carries,
// including the permissive CORS policy and the no-store cache policy
// for authenticated payloads.
func setCommonHeaders(h http.Header) {
	h.Set("Content-Type", "application/json")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	h.Set("Cache-Control", "no-store, must-revalidate, max-age=0")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	setCommonHeaders(w.Header())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, apiErr *APIError) {
	writeJSON(w, apiErr.Status, errorResponse{
		Error:   apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	})
}
