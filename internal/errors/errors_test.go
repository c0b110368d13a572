package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToHTTP(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unauthenticated", ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"invalid credentials", ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"forbidden", ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"wrapped not found", fmt.Errorf("reservation %s: %w", "x", ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"validation", fmt.Errorf("%w: table must be a positive integer", ErrValidation), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"upload", fmt.Errorf("%w: file is not an image", ErrInvalidUpload), http.StatusBadRequest, "INVALID_UPLOAD"},
		{"slot taken", ErrSlotTaken, http.StatusConflict, "SLOT_TAKEN"},
		{"duplicate username", ErrDuplicateUsername, http.StatusConflict, "DUPLICATE_USERNAME"},
		{"storage", fmt.Errorf("%w: %w", ErrStorage, errors.New("connection refused")), http.StatusInternalServerError, "STORAGE_FAILURE"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := MapErrorToHTTP(tt.err)
			assert.Equal(t, tt.wantStatus, httpErr.StatusCode)
			assert.Equal(t, tt.wantCode, httpErr.Code)
		})
	}
}

func TestMapErrorToHTTP_HidesStorageDetail(t *testing.T) {
	err := fmt.Errorf("%w: %w", ErrStorage, errors.New("dial tcp 10.0.0.1:3306"))

	resp := MapErrorToHTTP(err).ToErrorResponse()

	assert.Equal(t, "internal server error", resp.Error)
	assert.NotContains(t, resp.Error, "10.0.0.1")
}

func TestMapErrorToHTTP_KeepsValidationDetail(t *testing.T) {
	err := fmt.Errorf("%w: time must be one of the bookable slots", ErrValidation)

	assert.Contains(t, MapErrorToHTTP(err).Message, "bookable slots")
}

func TestIsExpected(t *testing.T) {
	assert.True(t, IsExpected(ErrSlotTaken))
	assert.True(t, IsExpected(ErrForbidden))
	assert.False(t, IsExpected(ErrStorage))
	assert.False(t, IsExpected(errors.New("boom")))
}
