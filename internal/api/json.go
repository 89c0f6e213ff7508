package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/tessera/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusFor maps an error kind to a status code.
func statusFor(err error) int {
	switch {
	case apperr.IsValidation(err), errors.Is(err, apperr.ErrSearchQuery):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrAlreadyExists), errors.Is(err, apperr.ErrExternalModification):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrSearchIndex):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error(op+" failed", slog.String("error", err.Error()))
	} else {
		slog.Debug(op+" rejected", slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorBody(apperr.Message(err)))
}

// writeMutation answers a note mutation. When the note is durable and the
// index is still being rebuilt the answer is 202 with a warning; a failed
// rebuild is a 500.
func writeMutation(w http.ResponseWriter, op string, status int, body any, err error) {
	switch {
	case err == nil:
		if body == nil {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, body)
	case apperr.IsSoft(err):
		slog.Warn(op+": note not searchable", slog.String("error", err.Error()))
		writeJSON(w, http.StatusAccepted, warningResponse{Warning: apperr.ErrNotSearchable.Error()})
	default:
		writeError(w, op, err)
	}
}
