package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"plantlab/internal/models"
	"plantlab/internal/service"
	"plantlab/internal/utils"
)

const (
	defaultHistoryMinutes       = 180
	defaultSensorHistoryMinutes = 720
	maxIngestBody               = 64 << 10
)

// ReadingController handles HTTP requests for sensor readings.
type ReadingController struct {
	service *service.ReadingService
	logger  *zap.Logger
}

// NewReadingController creates a new ReadingController.
func NewReadingController(service *service.ReadingService, logger *zap.Logger) *ReadingController {
	return &ReadingController{
		service: service,
		logger:  logger,
	}
}

// HandleHealth reports liveness.
func (c *ReadingController) HandleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, c.logger, http.StatusOK, models.HealthResponse{Status: "ok"})
}

// HandleConfig returns the alarm threshold and the sensor list.
func (c *ReadingController) HandleConfig(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, c.logger, http.StatusOK, c.service.Config())
}

// HandleSensors returns the configured sensors.
func (c *ReadingController) HandleSensors(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, c.logger, http.StatusOK, c.service.Config().Sensors)
}

// HandleIngest accepts one reading pushed by a sensor node.
func (c *ReadingController) HandleIngest(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIngestBody))
	if err != nil {
		apiErr := models.NewAPIError(models.ErrorCodeBadRequest, fmt.Sprintf("error reading request body: %v", err), nil, http.StatusBadRequest)
		utils.RespondWithError(w, c.logger, apiErr)
		return
	}

	var req models.IngestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		apiErr := models.NewAPIError(models.ErrorCodeBadRequest, fmt.Sprintf("error unmarshalling JSON: %v", err), nil, http.StatusBadRequest)
		utils.RespondWithError(w, c.logger, apiErr)
		return
	}

	reading, err := c.service.Ingest(r.Context(), req)
	if err != nil {
		c.respondServiceError(w, err, http.StatusBadRequest)
		return
	}

	utils.RespondWithJSON(w, c.logger, http.StatusCreated, models.IngestResponse{
		OK:       true,
		SensorID: reading.SensorID,
		StoredTS: reading.Timestamp,
	})
}

// HandleLatest returns the latest reading per sensor.
func (c *ReadingController) HandleLatest(w http.ResponseWriter, r *http.Request) {
	latest, err := c.service.Latest(r.Context())
	if err != nil {
		c.respondServiceError(w, err, http.StatusBadRequest)
		return
	}
	utils.RespondWithJSON(w, c.logger, http.StatusOK, latest)
}

// HandleHistory returns every sensor's readings within the requested window.
func (c *ReadingController) HandleHistory(w http.ResponseWriter, r *http.Request) {
	window, err := service.ParseHistoryWindow(r.URL.Query(), defaultHistoryMinutes, c.service.Now())
	if err != nil {
		c.respondServiceError(w, err, http.StatusBadRequest)
		return
	}

	history, err := c.service.History(r.Context(), window)
	if err != nil {
		c.respondServiceError(w, err, http.StatusBadRequest)
		return
	}
	utils.RespondWithJSON(w, c.logger, http.StatusOK, history)
}

// HandleSensorHistory returns one sensor's readings within the requested window.
func (c *ReadingController) HandleSensorHistory(w http.ResponseWriter, r *http.Request) {
	sensorID := mux.Vars(r)["sensor_id"]

	window, err := service.ParseHistoryWindow(r.URL.Query(), defaultSensorHistoryMinutes, c.service.Now())
	if err != nil {
		c.respondServiceError(w, err, http.StatusNotFound)
		return
	}

	points, err := c.service.SensorHistory(r.Context(), sensorID, window)
	if err != nil {
		c.respondServiceError(w, err, http.StatusNotFound)
		return
	}
	utils.RespondWithJSON(w, c.logger, http.StatusOK, points)
}

// HandleNotFound answers requests for paths outside the API.
func (c *ReadingController) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	apiErr := models.NewAPIError(models.ErrorCodeResourceNotFound, fmt.Sprintf("no route for %s", r.URL.Path), nil, http.StatusNotFound)
	utils.RespondWithError(w, c.logger, apiErr)
}

// HandleMethodNotAllowed answers a known path called with the wrong method.
func (c *ReadingController) HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	apiErr := models.NewAPIError(models.ErrorCodeMethodNotAllowed, fmt.Sprintf("method %s not allowed on %s", r.Method, r.URL.Path), nil, http.StatusMethodNotAllowed)
	utils.RespondWithError(w, c.logger, apiErr)
}

// respondServiceError maps service errors to API errors. unknownSensorStatus
// is the status for ErrUnknownSensor, which differs between a rejected
// payload (400) and a missing path resource (404).
func (c *ReadingController) respondServiceError(w http.ResponseWriter, err error, unknownSensorStatus int) {
	var apiErr models.APIError
	var unknown *service.UnknownSensorError

	switch {
	case errors.As(err, &unknown):
		code := models.ErrorCodeUnknownSensor
		if unknownSensorStatus == http.StatusNotFound {
			code = models.ErrorCodeResourceNotFound
		}
		apiErr = models.NewAPIError(code, "unknown sensor_id", map[string]any{
			"sensor_id": unknown.SensorID,
			"known":     unknown.Known,
		}, unknownSensorStatus)
	case errors.Is(err, service.ErrInvalidReading):
		apiErr = models.NewAPIError(models.ErrorCodeValidationFailed, err.Error(), nil, http.StatusBadRequest)
	case errors.Is(err, service.ErrRangeTooLarge):
		apiErr = models.NewAPIError(models.ErrorCodeRangeTooLarge, err.Error(), nil, http.StatusBadRequest)
	case errors.Is(err, service.ErrInvalidWindow):
		apiErr = models.NewAPIError(models.ErrorCodeInvalidFormat, err.Error(), nil, http.StatusBadRequest)
	default:
		c.logger.Error("request failed", zap.Error(err))
		apiErr = models.NewAPIError(models.ErrorCodeInternalServerError, "internal error", nil, http.StatusInternalServerError)
	}
	utils.RespondWithError(w, c.logger, apiErr)
}
