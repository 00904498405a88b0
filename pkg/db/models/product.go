package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/marketpulse/marketpulse-backend/pkg/enums"
)

// Product represents the canonical vendor listing. Catalog CRUD lives in the
// product-management collaborator; inventory reads vendor_id and status for
// scoping and never writes this row.
type Product struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID     uuid.UUID            `gorm:"column:vendor_id;type:uuid;not null;index"`
	SKU          string               `gorm:"column:sku;not null"`
	Title        string               `gorm:"column:title;not null"`
	Status       enums.ProductStatus  `gorm:"column:status;type:product_status_enum;not null;default:'active'"`
	Combinations []VariantCombination `gorm:"foreignKey:ProductID"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
