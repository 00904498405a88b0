package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VariantCombination is a purchasable SKU variant with its own stock count.
// Name, suffix, price modifier and is_active are owned by the variant
// management collaborator; stock is mutated exclusively by the adjustment
// coordinator. product_id is immutable once created.
type VariantCombination struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID       uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	CombinationName string          `gorm:"column:combination_name;not null"`
	SKUSuffix       string          `gorm:"column:sku_suffix;not null;default:''"`
	Stock           int             `gorm:"column:stock;not null;default:0"`
	PriceModifier   decimal.Decimal `gorm:"column:price_modifier;type:numeric(12,2);not null;default:0"`
	IsActive        bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
