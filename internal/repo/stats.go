package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-order-backend/internal/domain"
)

// OrdersStats returns the number of live orders for tableID and the highest
// id ever assigned under it (deleted rows included). Creates always raise
// maxID and deletes always lower count, so the pair changes whenever the
// table's visible list changes. The HTTP layer derives list ETags from it.
func OrdersStats(ctx context.Context, db *gorm.DB, tableID int64) (count, maxID int64, err error) {
	const op = "repo.OrdersStats"

	err = db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("table_id = ? AND deleted = ?", tableID, false).
		Count(&count).Error
	if err != nil {
		return 0, 0, storeErr(op, err)
	}

	var row struct{ MaxID int64 }
	err = db.WithContext(ctx).
		Model(&domain.Order{}).
		Select("COALESCE(MAX(id), 0) AS max_id").
		Where("table_id = ?", tableID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, storeErr(op, err)
	}
	return count, row.MaxID, nil
}
