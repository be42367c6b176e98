package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	apperrors "github.com/edmiller1/woofs-welcome-sub000/pkg/errors"
	"github.com/edmiller1/woofs-welcome-sub000/pkg/logger"
)

// respondJSON writes a JSON body with the given status code
func respondJSON(w http.ResponseWriter, statusCode int, body interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("Failed to encode response")
	}
}

// respondError writes an error envelope. AppErrors keep their status code
// and type; anything else becomes an opaque internal error.
func respondError(w http.ResponseWriter, err error, logger *logger.Logger) {
	appErr := &apperrors.AppError{}
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewInternalError("Something went wrong", err)
	}

	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.WithError(err).Error("Request failed")
	} else {
		logger.WithError(err).Debug("Request rejected")
	}

	response := &apperrors.ErrorResponse{}
	response.Error.Type = appErr.Type
	response.Error.Message = appErr.Message
	response.Error.Details = appErr.Details
	response.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)

	respondJSON(w, appErr.StatusCode, response, logger)
}
