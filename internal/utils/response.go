package utils

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"plantlab/internal/models"
)

// RespondWithError sends a JSON error response using the APIError model.
// The HTTP status code comes from the APIError.
func RespondWithError(writer http.ResponseWriter, logger *zap.Logger, apiErr models.APIError) {
	RespondWithJSON(writer, logger, apiErr.StatusCode, apiErr)
}

// RespondWithJSON sends a JSON response with the given status code.
func RespondWithJSON(writer http.ResponseWriter, logger *zap.Logger, statusCode int, payload interface{}) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(statusCode)
	if err := json.NewEncoder(writer).Encode(payload); err != nil {
		logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}
