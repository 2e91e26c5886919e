package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can react without inspecting
// driver-specific error types.
type ErrorKind uint8

const (
	// KindUnknown is reported for nil errors and errors outside the taxonomy.
	KindUnknown ErrorKind = iota
	// KindNotFound: the order is absent or not visible under the given table.
	KindNotFound
	// KindInvalidInput: malformed caller input such as a bad idempotency token.
	KindInvalidInput
	// KindStoreUnavailable: the record store could not be reached.
	KindStoreUnavailable
	// KindCacheUnavailable: the idempotency cache could not be reached.
	KindCacheUnavailable
	// KindStoreQueryFailed: the record store was reached but failed the operation.
	KindStoreQueryFailed
	// KindCacheQueryFailed: the idempotency cache was reached but failed the operation.
	KindCacheQueryFailed
	// KindInternal: an invariant was violated. Never retried.
	KindInternal
)

var kindNames = [...]string{
	KindUnknown:          "unknown",
	KindNotFound:         "not_found",
	KindInvalidInput:     "invalid_input",
	KindStoreUnavailable: "store_unavailable",
	KindCacheUnavailable: "cache_unavailable",
	KindStoreQueryFailed: "store_query_failed",
	KindCacheQueryFailed: "cache_query_failed",
	KindInternal:         "internal_inconsistency",
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ErrNotFound is returned when an order does not exist, belongs to another
// table, or has been soft-deleted. The three cases are indistinguishable.
var ErrNotFound = errors.New("order not found")

// Error carries a kind and the operation that produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error. A nil err yields nil so call sites can wrap unconditionally.
func E(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Internal reports an invariant violation described by msg.
func Internal(op, format string, args ...any) error {
	return &Error{Kind: KindInternal, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain.
// ErrNotFound is recognised even when it was not wrapped in an *Error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return KindUnknown
}

// Retryable reports whether a caller may retry the failed operation.
func (k ErrorKind) Retryable() bool {
	return k == KindStoreUnavailable || k == KindCacheUnavailable
}
