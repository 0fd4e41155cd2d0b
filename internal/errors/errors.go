package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType classifies an API error.
type ErrorType string

const (
	ErrorTypeValidation      ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound        ErrorType = "NOT_FOUND"
	ErrorTypeInternal        ErrorType = "INTERNAL_ERROR"
	ErrorTypeTimeout         ErrorType = "TIMEOUT"
	ErrorTypeRateLimit       ErrorType = "RATE_LIMIT"
	ErrorTypeServiceDown     ErrorType = "SERVICE_DOWN"
	ErrorTypePayloadTooLarge ErrorType = "PAYLOAD_TOO_LARGE"
	ErrorTypeMethod          ErrorType = "METHOD_NOT_ALLOWED"
)

// AppError is an error that knows how it is reported over HTTP.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails attaches details and returns e.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCode sets a machine readable code and returns e.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

func New(errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{Type: errType, Message: message, HTTPStatus: httpStatus}
}

func Wrap(err error, errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{Type: errType, Message: message, HTTPStatus: httpStatus, Err: err}
}

func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message, http.StatusBadRequest)
}

// WrapValidationError reports err as a 400 with message.
func WrapValidationError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeValidation, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewInternalError(message string) *AppError {
	return New(ErrorTypeInternal, message, http.StatusInternalServerError)
}

func WrapInternalError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeInternal, message, http.StatusInternalServerError)
}

func NewTimeoutError(message string) *AppError {
	return New(ErrorTypeTimeout, message, http.StatusGatewayTimeout)
}

func NewRateLimitError(message string) *AppError {
	return New(ErrorTypeRateLimit, message, http.StatusTooManyRequests)
}

func NewServiceDownError(service string) *AppError {
	return New(ErrorTypeServiceDown, fmt.Sprintf("%s service is currently unavailable", service), http.StatusServiceUnavailable)
}

func NewPayloadTooLargeError(limit int64) *AppError {
	return New(ErrorTypePayloadTooLarge, fmt.Sprintf("request body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
}

// GetAppError finds an AppError in err's chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsAppError reports whether err's chain holds an AppError.
func IsAppError(err error) bool {
	_, ok := GetAppError(err)
	return ok
}
