package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"happydash/internal/engine"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details any) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined error types
var (
	ErrInvalidParameter   = New(http.StatusBadRequest, "INVALID_PARAMETER", "Invalid parameter value")
	ErrNotFound           = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrRateLimitExceeded  = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
	ErrInternalServer     = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	ErrDatasetUnavailable = New(http.StatusInternalServerError, "DATASET_UNAVAILABLE", "Dataset could not be loaded")
	ErrDatasetLoading     = New(http.StatusServiceUnavailable, "DATASET_LOADING", "Dataset is still loading")
)

// InvalidParameter reports which query parameter was rejected and why.
func InvalidParameter(name string, err error) *APIError {
	return withDetails(ErrInvalidParameter, fmt.Sprintf("invalid %s", name), err.Error())
}

// NotFound creates a not found error with details
func NotFound(resource string) *APIError {
	return withDetails(ErrNotFound, fmt.Sprintf("%s not found", resource), resource)
}

// DatasetUnavailable surfaces a fatal load failure to the client.
func DatasetUnavailable(err error) *APIError {
	return withDetails(ErrDatasetUnavailable, ErrDatasetUnavailable.Message, err.Error())
}

// withDetails copies a predefined error's status and code onto a new message.
func withDetails(base *APIError, message string, details any) *APIError {
	return NewWithDetails(base.StatusCode, base.ErrorCode, message, details)
}

// FromError maps domain errors onto API errors.
func FromError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, engine.ErrYearOutOfRange) {
		return InvalidParameter("year", err)
	}
	var le *engine.LoadError
	if errors.As(err, &le) {
		return DatasetUnavailable(le)
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		return New(he.Code, codeFor(he.Code), msg)
	}
	return ErrInternalServer
}

func codeFor(status int) string {
	switch status {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		return "RATE_LIMIT_EXCEEDED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	default:
		if status >= 500 {
			return "INTERNAL_SERVER_ERROR"
		}
		return "INVALID_REQUEST"
	}
}

// Handler returns an echo.HTTPErrorHandler that writes APIError JSON bodies.
func Handler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		apiErr := FromError(err)
		if apiErr.StatusCode >= 500 {
			logger.Error("request failed",
				zap.String("path", c.Path()),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(apiErr.StatusCode)
		} else {
			err = c.JSON(apiErr.StatusCode, apiErr)
		}
		if err != nil {
			logger.Warn("write error response", zap.Error(err))
		}
	}
}
