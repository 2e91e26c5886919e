package domain

import "time"

// IdempotencyEntry is a cached create-order response stored by the
// database-backed idempotency cache. Key is the derived cache key; Value is
// the serialized Order. Rows past ExpiresAt are treated as absent and are
// removed by the sweeper.
type IdempotencyEntry struct {
	Key       string    `gorm:"type:varchar(512);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (IdempotencyEntry) TableName() string { return "idempotency_entries" }
