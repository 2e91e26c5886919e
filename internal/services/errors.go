// Package services holds the order-management logic. This file centralizes
// the service-level error values; translation into HTTP status codes is done
// by the handlers through domain.KindOf.
package services

import "errors"

var (
	// ErrBadToken is wrapped as InvalidInput when an idempotency token is
	// empty, longer than MaxTokenLen, or contains non-printable bytes.
	ErrBadToken = errors.New("malformed idempotency token")

	// ErrBadCursor is wrapped as InvalidInput for negative from_id or limit.
	ErrBadCursor = errors.New("from_id and limit must be non-negative")
)
