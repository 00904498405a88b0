package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryLog is the per-product inventory status marker: one row per
// product, pointing at the most recent supply. It is not a quantity source
// of truth; stock lives on the variant combinations.
type InventoryLog struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID    uuid.UUID  `gorm:"column:product_id;type:uuid;not null;uniqueIndex"`
	LastSupplyID *uuid.UUID `gorm:"column:last_supply_id;type:uuid"`
	RestockedAt  *time.Time `gorm:"column:restocked_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
