package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrUnauthenticated is returned when no session identity is present.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrInvalidCredentials is returned when username or password is incorrect.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrForbidden is returned when the caller may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for missing or malformed input fields.
	ErrValidation = errors.New("validation failed")
	// ErrSlotTaken is returned when a (date, time, table) triple is already booked.
	ErrSlotTaken = errors.New("table already reserved for that date and time")
	// ErrDuplicateUsername is returned when registering a username that exists.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrInvalidUpload is returned when an uploaded file is empty, too large or not an image.
	ErrInvalidUpload = errors.New("invalid upload")
	// ErrStorage wraps persistence and file storage I/O failures.
	ErrStorage = errors.New("storage failure")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Validation and upload
// errors keep their wrapped detail; anything unrecognised becomes a generic 500.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return NewHTTPError(http.StatusUnauthorized, ErrUnauthenticated.Error(), "UNAUTHENTICATED")
	case errors.Is(err, ErrInvalidCredentials):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error(), "INVALID_CREDENTIALS")
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, ErrForbidden.Error(), "FORBIDDEN")
	case errors.Is(err, ErrNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, ErrValidation):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.Is(err, ErrInvalidUpload):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_UPLOAD")
	case errors.Is(err, ErrSlotTaken):
		return NewHTTPError(http.StatusConflict, ErrSlotTaken.Error(), "SLOT_TAKEN")
	case errors.Is(err, ErrDuplicateUsername):
		return NewHTTPError(http.StatusConflict, ErrDuplicateUsername.Error(), "DUPLICATE_USERNAME")
	case errors.Is(err, ErrStorage):
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "STORAGE_FAILURE")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

// IsExpected reports whether err is a business outcome rather than a fault.
// Expected errors are returned to the caller without being logged as failures.
func IsExpected(err error) bool {
	return MapErrorToHTTP(err).StatusCode < http.StatusInternalServerError
}
