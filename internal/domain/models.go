// Package domain defines the persistence model for restaurant orders and the
// error taxonomy shared by the repository, cache, service and HTTP layers.
package domain

import (
	"encoding/json"
	"time"
)

// Order is a single dish requested for a table.
//
// Fields:
//   - ID: assigned by the database sequence on insert; never reused.
//   - TableID: caller-supplied grouping key; every read is scoped by it.
//   - DishID: opaque menu reference, not validated.
//   - ReadyTime: creation time plus the configured ready delay; immutable.
//   - Deleted: soft-delete flag; once true it never reverts.
//
// The composite index (table_id, id) serves the keyset list query.
type Order struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;index:idx_orders_table_id,priority:2"`
	TableID   int64     `gorm:"not null;index:idx_orders_table_id,priority:1"`
	DishID    int64     `gorm:"not null"`
	ReadyTime time.Time `gorm:"not null"`
	Deleted   bool      `gorm:"not null;default:false"`
	CreatedAt time.Time
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// orderJSON is the wire shape of an Order. ready_time travels as Unix seconds.
type orderJSON struct {
	ID        int64 `json:"id"`
	DishID    int64 `json:"dish_id"`
	ReadyTime int64 `json:"ready_time"`
}

// MarshalJSON encodes the public view of the order. TableID and Deleted are
// never exposed: the table is already part of the request path and deleted
// orders are never returned.
func (o Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(orderJSON{
		ID:        o.ID,
		DishID:    o.DishID,
		ReadyTime: o.ReadyTime.Unix(),
	})
}

// UnmarshalJSON decodes the wire shape produced by MarshalJSON.
func (o *Order) UnmarshalJSON(b []byte) error {
	var w orderJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	o.ID = w.ID
	o.DishID = w.DishID
	o.ReadyTime = time.Unix(w.ReadyTime, 0).UTC()
	return nil
}
