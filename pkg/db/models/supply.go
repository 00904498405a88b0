package models

import (
	"time"

	"github.com/google/uuid"
)

// Supply records an immutable stock-in event with its provenance. Created
// only by the adjustment coordinator for positive adjustments; never updated.
type Supply struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID         uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;index"`
	ProductID        uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	CombinationID    uuid.UUID `gorm:"column:combination_id;type:uuid;not null;index"`
	QuantitySupplied int       `gorm:"column:quantity_supplied;not null"`
	SupplyDate       time.Time `gorm:"column:supply_date;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}
