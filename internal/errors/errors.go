package errors

import (
	"net/http"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Authentication errors (401xx)
	ErrInvalidServiceToken ErrorCode = "40101"

	// Resource errors (404xx)
	ErrDocumentNotFound ErrorCode = "40401"

	// Request errors (400xx)
	ErrInvalidRequest   ErrorCode = "40001"
	ErrValidationFailed ErrorCode = "40002"

	// Server errors (500xx)
	ErrInternalServer   ErrorCode = "50001"
	ErrIngestionUpload  ErrorCode = "50002"
	ErrIngestionIndex   ErrorCode = "50003"
	ErrIngestionLink    ErrorCode = "50004"
	ErrUpstreamTimeout  ErrorCode = "50401"
	ErrUpstreamRejected ErrorCode = "50301"
)

// APIError represents a standardized API error
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	HTTPStatus int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// ErrorResponse represents the error response format
type ErrorResponse struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id"`
}

// Common errors
var (
	ErrInvalidServiceTokenError = &APIError{
		Code:       ErrInvalidServiceToken,
		Message:    "Invalid or missing service token",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrDocumentNotFoundError = &APIError{
		Code:       ErrDocumentNotFound,
		Message:    "Document not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrInternalServerError = &APIError{
		Code:       ErrInternalServer,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrIngestionUploadError = &APIError{
		Code:       ErrIngestionUpload,
		Message:    "Failed to upload document to the knowledge service",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrIngestionIndexError = &APIError{
		Code:       ErrIngestionIndex,
		Message:    "Document indexing did not complete",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrIngestionLinkError = &APIError{
		Code:       ErrIngestionLink,
		Message:    "Failed to link document into the agent configuration",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrUpstreamTimeoutError = &APIError{
		Code:       ErrUpstreamTimeout,
		Message:    "Knowledge service timeout",
		HTTPStatus: http.StatusGatewayTimeout,
	}

	ErrUpstreamRejectedError = &APIError{
		Code:       ErrUpstreamRejected,
		Message:    "Knowledge service unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)

// NewValidationError creates a validation error with details
func NewValidationError(details any) *APIError {
	return &APIError{
		Code:       ErrValidationFailed,
		Message:    "Validation failed",
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:       ErrInvalidRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}
