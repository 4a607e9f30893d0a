package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/p-n-ai/pai-content/internal/apperr"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
	Details any         `json:"details,omitempty"`
}

// statusOf maps an error kind to its HTTP status.
func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindContextNotFound, apperr.KindItemNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindTopicValidationFailed, apperr.KindTrackTypeMismatch,
		apperr.KindPeriodOutOfRange, apperr.KindCapacityExceeded:
		return http.StatusUnprocessableEntity
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encoding response failed", "error", err)
	}
}

// respondError writes err as a structured error. Infrastructure failures are
// logged here and reported without their cause.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	body := errorBody{Error: errorDetail{Kind: kind, Message: err.Error()}}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		body.Error.Details = ae.Details
	}
	if kind == apperr.KindInfrastructure {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		body.Error.Message = "internal error"
		body.Error.Details = nil
	}
	respondJSON(w, statusOf(kind), body)
}

func badRequest(w http.ResponseWriter, r *http.Request, format string, args ...any) {
	respondError(w, r, apperr.Newf(apperr.KindInvalidInput, format, args...))
}
