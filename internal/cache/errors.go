package cache

import (
	"context"
	"errors"
	"net"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-order-backend/internal/domain"
)

// cacheErr converts a backend error into the domain taxonomy.
func cacheErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isUnavailable(err):
		return domain.E(domain.KindCacheUnavailable, op, err)
	default:
		return domain.E(domain.KindCacheQueryFailed, op, err)
	}
}

func isUnavailable(err error) bool {
	var netErr net.Error
	switch {
	case errors.Is(err, redis.ErrClosed):
		return true
	case errors.As(err, &netErr):
		return true
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, syscall.ECONNREFUSED):
		return true
	}
	return false
}

// fromStore re-labels record store failures raised by the database backend
// so callers can tell cache trouble from order persistence trouble.
func fromStore(op string, err error) error {
	switch domain.KindOf(err) {
	case domain.KindStoreUnavailable:
		return domain.E(domain.KindCacheUnavailable, op, err)
	default:
		return domain.E(domain.KindCacheQueryFailed, op, err)
	}
}
