// Package repo implements the record store for orders.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They are
// thin: query composition and error classification only. Every read filters
// on table_id and deleted = false, so an order is only ever visible under the
// table it was created for and never after soft deletion.
//
// Errors are returned as *domain.Error with one of NotFound, StoreUnavailable
// or StoreQueryFailed.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-order-backend/internal/domain"
)

// InsertOrder persists a new live order and returns the store-assigned id.
func InsertOrder(ctx context.Context, db *gorm.DB, tableID, dishID int64, readyTime time.Time) (int64, error) {
	const op = "repo.InsertOrder"

	o := &domain.Order{
		TableID:   tableID,
		DishID:    dishID,
		ReadyTime: readyTime,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(o).Error; err != nil {
		return 0, storeErr(op, err)
	}
	return o.ID, nil
}

// GetOrder returns the live order (tableID, id) or ErrNotFound.
func GetOrder(ctx context.Context, db *gorm.DB, tableID, id int64) (*domain.Order, error) {
	const op = "repo.GetOrder"

	var o domain.Order
	err := db.WithContext(ctx).
		Where("id = ? AND table_id = ? AND deleted = ?", id, tableID, false).
		Take(&o).Error
	if err != nil {
		return nil, storeErr(op, err)
	}
	return &o, nil
}

// ListOrders returns live orders of tableID with id >= fromID in ascending id
// order, at most limit rows. A nil fromID or limit means unbounded. The result
// is never nil.
func ListOrders(ctx context.Context, db *gorm.DB, tableID int64, fromID, limit *int64) ([]domain.Order, error) {
	const op = "repo.ListOrders"

	q := db.WithContext(ctx).
		Where("table_id = ? AND deleted = ?", tableID, false)
	if fromID != nil {
		q = q.Where("id >= ?", *fromID)
	}
	q = q.Order("id ASC")
	if limit != nil {
		q = q.Limit(int(*limit))
	}

	out := make([]domain.Order, 0)
	if err := q.Find(&out).Error; err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}

// MarkOrderDeleted flips deleted on the live order (tableID, id) and returns
// the number of rows affected: 0 when absent or already deleted, 1 on success.
func MarkOrderDeleted(ctx context.Context, db *gorm.DB, tableID, id int64) (int64, error) {
	const op = "repo.MarkOrderDeleted"

	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND table_id = ? AND deleted = ?", id, tableID, false).
		Update("deleted", true)
	if res.Error != nil {
		return 0, storeErr(op, res.Error)
	}
	return res.RowsAffected, nil
}

// OrderDeleted reports whether (tableID, id) exists as a soft-deleted row.
func OrderDeleted(ctx context.Context, db *gorm.DB, tableID, id int64) (bool, error) {
	const op = "repo.OrderDeleted"

	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND table_id = ? AND deleted = ?", id, tableID, true).
		Count(&n).Error
	if err != nil {
		return false, storeErr(op, err)
	}
	return n > 0, nil
}
