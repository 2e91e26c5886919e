package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-order-backend/internal/domain"
)

// GetIdempotencyEntry returns the unexpired entry for key or ErrNotFound.
func GetIdempotencyEntry(ctx context.Context, db *gorm.DB, key string, now time.Time) (*domain.IdempotencyEntry, error) {
	const op = "repo.GetIdempotencyEntry"

	var rec domain.IdempotencyEntry
	err := db.WithContext(ctx).
		Where("key = ? AND expires_at > ?", key, now).
		Take(&rec).Error
	if err != nil {
		return nil, storeErr(op, err)
	}
	return &rec, nil
}

// PutIdempotencyEntry stores value under key until now+ttl, overwriting any
// previous entry for the same key.
func PutIdempotencyEntry(ctx context.Context, db *gorm.DB, key, value string, ttl time.Duration, now time.Time) error {
	const op = "repo.PutIdempotencyEntry"

	rec := &domain.IdempotencyEntry{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "created_at", "expires_at"}),
		}).
		Create(rec).Error
	return storeErr(op, err)
}

// DeleteExpiredIdempotency removes entries whose expiry is at or before now
// and returns how many rows were removed.
func DeleteExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	const op = "repo.DeleteExpiredIdempotency"

	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.IdempotencyEntry{})
	if res.Error != nil {
		return 0, storeErr(op, res.Error)
	}
	return res.RowsAffected, nil
}
