package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-order-backend/internal/domain"
)

// Orders adapts the order free functions to a method set so services can
// depend on an interface instead of this package.
type Orders struct{}

// InsertOrder proxies InsertOrder.
func (Orders) InsertOrder(ctx context.Context, db *gorm.DB, tableID, dishID int64, readyTime time.Time) (int64, error) {
	return InsertOrder(ctx, db, tableID, dishID, readyTime)
}

// GetOrder proxies GetOrder.
func (Orders) GetOrder(ctx context.Context, db *gorm.DB, tableID, id int64) (*domain.Order, error) {
	return GetOrder(ctx, db, tableID, id)
}

// ListOrders proxies ListOrders.
func (Orders) ListOrders(ctx context.Context, db *gorm.DB, tableID int64, fromID, limit *int64) ([]domain.Order, error) {
	return ListOrders(ctx, db, tableID, fromID, limit)
}

// MarkOrderDeleted proxies MarkOrderDeleted.
func (Orders) MarkOrderDeleted(ctx context.Context, db *gorm.DB, tableID, id int64) (int64, error) {
	return MarkOrderDeleted(ctx, db, tableID, id)
}

// OrderDeleted proxies OrderDeleted.
func (Orders) OrderDeleted(ctx context.Context, db *gorm.DB, tableID, id int64) (bool, error) {
	return OrderDeleted(ctx, db, tableID, id)
}

// OrdersStats proxies OrdersStats.
func (Orders) OrdersStats(ctx context.Context, db *gorm.DB, tableID int64) (int64, int64, error) {
	return OrdersStats(ctx, db, tableID)
}
