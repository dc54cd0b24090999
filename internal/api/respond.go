package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/echotutor/tutor-service/internal/session"
)

// error details surfaced to clients
const (
	detailNotFound  = "Session not found"
	detailNoContent = "No content available"
	detailInternal  = "Internal server error"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeError maps manager errors onto status codes. Unknown errors are
// logged and reported as a generic 500.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var rejection *session.RejectionError
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeDetail(w, http.StatusNotFound, detailNotFound)
	case errors.Is(err, session.ErrNoContent):
		writeDetail(w, http.StatusBadRequest, detailNoContent)
	case errors.As(err, &rejection):
		writeDetail(w, http.StatusBadRequest, rejection.Reason)
	default:
		logger.Error().Err(err).Msg("request failed")
		writeDetail(w, http.StatusInternalServerError, detailInternal)
	}
}
