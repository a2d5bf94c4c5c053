package handler

// RESPONSE HELPERS:
// Every JSON endpoint answers with the same envelope:
//
//	{"success": true, ...payload}
//	{"success": false, "error": "snippet \"abc\" not found", "code": "not_found"}
//
// The editor and detail page scripts only ever look at "success" and "error",
// so a new endpoint gets working error display for free.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/social-playground/internal/apperror"
)

// errorResponse is the failure envelope returned by all API endpoints.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`          // human-readable, safe to show
	Code    string `json:"code,omitempty"` // machine-readable, e.g. "not_found"
	Field   string `json:"field,omitempty"`
}

// writeJSON sends data with the given status code.
//
// Headers and status must be set before the body: once Encode writes, the
// header is on the wire and later changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorStatus maps a domain error to an HTTP status and an error code.
//
// errors.Is walks the whole chain, so a service error wrapped with
// fmt.Errorf("...: %w", apperror.NotFound(...)) still maps to 404.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// publicMessage is the text shown to the client for err. Unknown errors
// never leak their text; it may contain SQL or file paths.
func publicMessage(err error, status int) string {
	var appErr *apperror.AppError
	if status != http.StatusInternalServerError && errors.As(err, &appErr) {
		return appErr.Message
	}
	return "an internal error occurred"
}

// writeError sends err in the failure envelope. 5xx errors are logged with
// their full text before being replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	resp := errorResponse{Error: publicMessage(err, status), Code: code}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		resp.Field = appErr.Field
	}
	writeJSON(w, status, resp)
}

// writeBadRequest rejects a body that could not be decoded.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message, Code: "bad_request"})
}
