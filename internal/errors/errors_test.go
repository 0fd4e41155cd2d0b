package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name           string
		err            *AppError
		expectedType   ErrorType
		expectedStatus int
		expectedMsg    string
	}{
		{"validation", NewValidationError("bad scale"), ErrorTypeValidation, http.StatusBadRequest, "bad scale"},
		{"not found", NewNotFoundError("timeline"), ErrorTypeNotFound, http.StatusNotFound, "timeline not found"},
		{"internal", NewInternalError("oops"), ErrorTypeInternal, http.StatusInternalServerError, "oops"},
		{"timeout", NewTimeoutError("slow store"), ErrorTypeTimeout, http.StatusGatewayTimeout, "slow store"},
		{"rate limit", NewRateLimitError("slow down"), ErrorTypeRateLimit, http.StatusTooManyRequests, "slow down"},
		{"service down", NewServiceDownError("redis"), ErrorTypeServiceDown, http.StatusServiceUnavailable, "redis service is currently unavailable"},
		{"payload too large", NewPayloadTooLargeError(1024), ErrorTypePayloadTooLarge, http.StatusRequestEntityTooLarge, "request body exceeds 1024 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedType, tt.err.Type)
			assert.Equal(t, tt.expectedStatus, tt.err.HTTPStatus)
			assert.Equal(t, tt.expectedMsg, tt.err.Message)
			assert.Nil(t, tt.err.Err)
		})
	}
}

func TestAppErrorError(t *testing.T) {
	assert.Equal(t, "VALIDATION_ERROR: bad input", NewValidationError("bad input").Error())

	cause := errors.New("syntax error at offset 3")
	err := WrapValidationError(cause, "cannot parse operand")
	assert.Equal(t, "VALIDATION_ERROR: cannot parse operand (caused by: syntax error at offset 3)", err.Error())
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapInternalError(cause, "store failed")

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
}

func TestWithDetailsAndCode(t *testing.T) {
	err := NewValidationError("unknown rounding mode").
		WithCode("BAD_ROUNDING").
		WithDetails(map[string]interface{}{"rounding": "banker"})

	assert.Equal(t, "BAD_ROUNDING", err.Code)
	assert.Equal(t, "banker", err.Details["rounding"])
}

func TestGetAppError(t *testing.T) {
	appErr := NewNotFoundError("timeline")

	got, ok := GetAppError(appErr)
	require.True(t, ok)
	assert.Same(t, appErr, got)

	wrapped := fmt.Errorf("handler: %w", appErr)
	got, ok = GetAppError(wrapped)
	require.True(t, ok)
	assert.Same(t, appErr, got)
	assert.True(t, IsAppError(wrapped))

	_, ok = GetAppError(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, IsAppError(errors.New("plain")))
	assert.False(t, IsAppError(nil))
}
