package api

import "errors"

// ErrorType is the "type" field of an error body and selects the HTTP status.
type ErrorType string

const (
	ErrorTypeServerError     ErrorType = "server_error"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeUnauthorized    ErrorType = "unauthorized"
	ErrorTypeModelError      ErrorType = "model_error"
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"
)

// APIError is an error that can be rendered to a client as-is.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

func (e *APIError) Error() string {
	s := string(e.Type) + ": " + e.Message
	if e.Param != "" {
		s += " (param: " + e.Param + ")"
	}
	return s
}

// ErrorResponse is the JSON envelope {"error": {...}}.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

func newError(t ErrorType, message string) *APIError {
	return &APIError{Type: t, Message: message}
}

// NewInvalidRequestError reports a bad request parameter.
func NewInvalidRequestError(param, message string) *APIError {
	e := newError(ErrorTypeInvalidRequest, message)
	e.Param = param
	return e
}

func NewNotFoundError(message string) *APIError { return newError(ErrorTypeNotFound, message) }

func NewServerError(message string) *APIError { return newError(ErrorTypeServerError, message) }

// NewModelError reports a failure of the model backend.
func NewModelError(message string) *APIError { return newError(ErrorTypeModelError, message) }

func NewUnauthorizedError(message string) *APIError {
	return newError(ErrorTypeUnauthorized, message)
}

// NewTooManyRequestsError reports rate limiting, either ours or a
// backend's quota.
func NewTooManyRequestsError(message string) *APIError {
	return newError(ErrorTypeTooManyRequests, message)
}

// IsType reports whether err wraps an APIError of type t.
func IsType(err error, t ErrorType) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == t
}

// IsTooManyRequests reports whether err wraps a too_many_requests APIError.
func IsTooManyRequests(err error) bool {
	return IsType(err, ErrorTypeTooManyRequests)
}
