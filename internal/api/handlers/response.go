package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/soberbookings/backend/internal/infrastructure/observability"
	apperrors "github.com/soberbookings/backend/pkg/errors"
)

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		observability.GetLogger().Warn().Err(err).Msg("failed to encode response")
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps err onto a status code. Internal details are
// logged, never returned.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr) && appErr.Type != apperrors.ErrorTypeInternal:
		respondWithError(w, appErr.HTTPStatus(), appErr.Message)
	case errors.Is(err, context.DeadlineExceeded):
		respondWithError(w, http.StatusGatewayTimeout, "search timed out")
	case errors.Is(err, context.Canceled):
		respondWithError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		observability.LoggerFromContext(r.Context()).Error().Err(err).
			Str("path", r.URL.Path).
			Msg("request failed")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
