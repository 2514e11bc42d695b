package services

import "net/http"

// Error-kind codes surfaced to API clients alongside the HTTP status.
const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeNotFound             = "NOT_FOUND"
	CodeConflict             = "CONFLICT"
	CodeGatewayNotConfigured = "GATEWAY_NOT_CONFIGURED"
	CodeGateway              = "GATEWAY_ERROR"
	CodeInternal             = "INTERNAL_ERROR"
)

// ServiceError is the explicit result-kind returned up to the controllers,
// which perform the final HTTP mapping. No exceptions-as-control-flow.
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ServiceError) Error() string {
	return e.Message
}

func newValidationError(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusBadRequest, Code: CodeValidation, Message: msg}
}

func newUnauthorizedError(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusUnauthorized, Code: CodeUnauthorized, Message: msg}
}

func newNotFoundError(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusNotFound, Code: CodeNotFound, Message: msg}
}

func newConflictError(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusConflict, Code: CodeConflict, Message: msg}
}

func newGatewayNotConfiguredError() *ServiceError {
	return &ServiceError{
		StatusCode: http.StatusServiceUnavailable,
		Code:       CodeGatewayNotConfigured,
		Message:    "payment gateway is not configured",
	}
}

func newGatewayError(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusBadGateway, Code: CodeGateway, Message: msg}
}

func newInternalError(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusInternalServerError, Code: CodeInternal, Message: msg}
}
