package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/marketpulse/marketpulse-backend/pkg/enums"
)

// InventoryHistoryEntry is one immutable row per stock change. Replaying all
// entries for a combination in creation order from its initial stock must
// reproduce the current stock exactly.
type InventoryHistoryEntry struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InventoryID   uuid.UUID             `gorm:"column:inventory_id;type:uuid;not null;index"`
	CombinationID uuid.UUID             `gorm:"column:combination_id;type:uuid;not null;index"`
	ChangeAmount  int                   `gorm:"column:change_amount;not null"`
	ChangeType    enums.StockChangeType `gorm:"column:change_type;type:stock_change_type_enum;not null"`
	PreviousStock int                   `gorm:"column:previous_stock;not null"`
	NewStock      int                   `gorm:"column:new_stock;not null"`
	Note          *string               `gorm:"column:note"`
	AdjustedBy    uuid.UUID             `gorm:"column:adjusted_by;type:uuid;not null"`
	SupplyID      *uuid.UUID            `gorm:"column:supply_id;type:uuid"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
}
