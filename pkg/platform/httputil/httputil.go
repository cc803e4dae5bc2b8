// Package httputil centralizes JSON response writing so every outbound error
// uses the same envelope and the same leak rules.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "veritag/pkg/domain-errors"
)

// errorResponse is the wire envelope for all error outcomes.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes a success payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError translates a domain error into an HTTP response. Expected,
// user-facing codes carry their safe message; internal, unavailable, and
// timeout outcomes return the code alone so no collaborator or stack detail
// crosses the service boundary. Uncoded errors collapse to internal_error.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := errorResponse{Error: string(code)}
	switch code {
	case dErrors.CodeInternal, dErrors.CodeUnavailable, dErrors.CodeTimeout:
		// Description deliberately omitted.
	default:
		resp.ErrorDescription = dErrors.MessageOf(err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteProcessingError writes the fixed generic failure payload used when an
// unexpected fault is caught at the response boundary.
func WriteProcessingError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   "processing error",
	})
}
