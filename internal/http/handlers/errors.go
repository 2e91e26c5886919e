// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable: clients branch on them, the
// message is for humans. Every error response carries both an HTTP status
// and one of these codes (see statusFor for the domain mapping).
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "service_unavailable",
//	  "message": "order store unavailable"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/tbourn/go-order-backend/internal/domain"
	"github.com/tbourn/go-order-backend/internal/services"
)

const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeNotFound           = "not_found"
	ErrCodeRateLimited        = "too_many_requests"
	ErrCodeInternal           = "internal_error"
	ErrCodeMethodNotAllowed   = "method_not_allowed"
	ErrCodeUnavailable        = "service_unavailable"
	ErrCodeBadIdempotencyKey  = "bad_idempotency_key"
	ErrCodeInvalidIdentifier  = "invalid_id"
	ErrCodeInvalidPagination  = "invalid_pagination"
	ErrCodeInvalidRequestBody = "invalid_body"
)

// statusFor maps a service error to (status, code, message). Messages for
// 5xx responses are generic; the cause goes to the access log instead.
func statusFor(err error) (int, string, string) {
	switch kind := domain.KindOf(err); kind {
	case domain.KindNotFound:
		return http.StatusNotFound, ErrCodeNotFound, "order not found"
	case domain.KindInvalidInput:
		switch {
		case errors.Is(err, services.ErrBadToken):
			return http.StatusBadRequest, ErrCodeBadIdempotencyKey, "invalid Idempotency-Key"
		case errors.Is(err, services.ErrBadCursor):
			return http.StatusBadRequest, ErrCodeInvalidPagination, "from_id and limit must be non-negative"
		}
		return http.StatusBadRequest, ErrCodeBadRequest, "invalid request"
	case domain.KindStoreUnavailable:
		return http.StatusServiceUnavailable, ErrCodeUnavailable, "order store unavailable"
	case domain.KindCacheUnavailable:
		return http.StatusServiceUnavailable, ErrCodeUnavailable, "idempotency cache unavailable"
	default:
		return http.StatusInternalServerError, ErrCodeInternal, "internal server error"
	}
}
