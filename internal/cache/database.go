package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-backend/internal/domain"
	"github.com/tbourn/go-order-backend/internal/repo"
)

// Database keeps entries in the idempotency_entries table. Reads ignore
// expired rows; Sweep deletes them.
type Database struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabase uses db, which must have been migrated with repo.AutoMigrate.
func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (d *Database) Get(ctx context.Context, key string) (string, bool, error) {
	const op = "cache.Database.Get"

	rec, err := repo.GetIdempotencyEntry(ctx, d.db, key, d.now())
	if domain.KindOf(err) == domain.KindNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fromStore(op, err)
	}
	return rec.Value, true, nil
}

func (d *Database) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	const op = "cache.Database.SetWithTTL"

	if err := repo.PutIdempotencyEntry(ctx, d.db, key, value, ttl, d.now()); err != nil {
		return fromStore(op, err)
	}
	return nil
}

func (d *Database) Ping(ctx context.Context) error {
	const op = "cache.Database.Ping"

	if err := repo.Ping(ctx, d.db); err != nil {
		return fromStore(op, err)
	}
	return nil
}

// Close is a no-op: the pool belongs to the record store.
func (d *Database) Close() error { return nil }

// Sweep removes expired entries and returns how many were deleted.
func (d *Database) Sweep(ctx context.Context) (int64, error) {
	const op = "cache.Database.Sweep"

	n, err := repo.DeleteExpiredIdempotency(ctx, d.db, d.now())
	if err != nil {
		return 0, fromStore(op, err)
	}
	return n, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (d *Database) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := d.Sweep(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("idempotency sweep failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("idempotency sweep")
			}
		}
	}
}
