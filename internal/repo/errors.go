package repo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist or is not
// visible (wrong table, soft-deleted, expired).
var ErrNotFound = domain.ErrNotFound

// storeErr converts a GORM/driver error into the domain taxonomy.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, domain.ErrNotFound):
		return domain.E(domain.KindNotFound, op, domain.ErrNotFound)
	case isUnavailable(err):
		return domain.E(domain.KindStoreUnavailable, op, err)
	default:
		return domain.E(domain.KindStoreQueryFailed, op, err)
	}
}

// isUnavailable reports transport-level failures: the store could not be
// reached, the connection broke, or the server is refusing work.
func isUnavailable(err error) bool {
	var (
		connErr *pgconn.ConnectError
		netErr  net.Error
		pgErr   *pgconn.PgError
	)
	switch {
	case errors.As(err, &connErr), errors.As(err, &netErr):
		return true
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return true
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, syscall.ECONNREFUSED):
		return true
	case pgconn.Timeout(err):
		return true
	case strings.Contains(err.Error(), "database is closed"):
		// database/sql does not export its closed-pool error.
		return true
	case errors.As(err, &pgErr):
		// 08xxx connection exceptions, 57P0x shutdown, 53300 too many connections.
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0") || pgErr.Code == "53300"
	}
	return false
}
