package models

import "fmt"

// ErrorCode identifies an API failure in the JSON error body.
type ErrorCode string

const (
	ErrorCodeInternalServerError ErrorCode = "internal_server_error"
	ErrorCodeBadRequest          ErrorCode = "bad_request"
	ErrorCodeMethodNotAllowed    ErrorCode = "method_not_allowed"
	ErrorCodeResourceNotFound    ErrorCode = "resource_not_found"

	// Ingest payloads and history windows.
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeInvalidFormat    ErrorCode = "invalid_format"
	ErrorCodeRangeTooLarge    ErrorCode = "range_too_large"
	ErrorCodeUnknownSensor    ErrorCode = "unknown_sensor"
)

// APIError is the body of every non-2xx response. StatusCode is the HTTP
// status it is sent with; Details carries structured context such as the
// known sensor ids for unknown_sensor.
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	StatusCode int       `json:"-"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
}

// NewAPIError builds an APIError sent with statusCode.
func NewAPIError(code ErrorCode, message string, details any, statusCode int) APIError {
	return APIError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: statusCode,
	}
}
