package api

import (
	"errors"
	"net/http"

	"checkout-service/internal/models"
)

// Error codes carried in response bodies
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeConfigError    = "CONFIG_ERROR"
	CodeGatewayError   = "RAZORPAY_ERROR"
	CodeInternal       = "INTERNAL_ERROR"
)

// classify maps a domain error to its HTTP status and body code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidRequest):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrIllegalTransition):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, models.ErrConfig):
		return http.StatusInternalServerError, CodeConfigError
	case errors.Is(err, models.ErrGateway):
		return http.StatusBadGateway, CodeGatewayError
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// ErrorResponse is the body of a failed order or payment lookup
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
