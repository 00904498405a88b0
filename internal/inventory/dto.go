package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/marketpulse/marketpulse-backend/internal/catalog"
	"github.com/marketpulse/marketpulse-backend/pkg/db/models"
)

// AdjustInput is one signed stock adjustment request.
type AdjustInput struct {
	ProductID     uuid.UUID
	CombinationID uuid.UUID
	Adjustment    int
	Note          *string
	Actor         catalog.Actor
}

// AdjustResult reports the committed outcome of an adjustment.
type AdjustResult struct {
	CombinationID uuid.UUID  `json:"combination_id"`
	PreviousStock int        `json:"previous_stock"`
	NewStock      int        `json:"new_stock"`
	SupplyID      *uuid.UUID `json:"supply_id,omitempty"`
	HistoryID     uuid.UUID  `json:"history_id"`
}

// CombinationStock is the per-combination slice of a product breakdown.
type CombinationStock struct {
	ID              uuid.UUID `json:"id"`
	CombinationName string    `json:"combination_name"`
	SKUSuffix       string    `json:"sku_suffix"`
	Stock           int       `json:"stock"`
	IsActive        bool      `json:"is_active"`
}

// ProductInventory is the vendor-facing inventory view for one product.
type ProductInventory struct {
	ProductID    uuid.UUID          `json:"product_id"`
	Title        string             `json:"title"`
	SKU          string             `json:"sku"`
	TotalStock   int                `json:"total_stock"`
	Combinations []CombinationStock `json:"combinations"`
	RestockedAt  *time.Time         `json:"restocked_at,omitempty"`
}

// ProductSummary is one row of the admin inventory overview.
type ProductSummary struct {
	ProductID        uuid.UUID  `json:"product_id"`
	VendorID         uuid.UUID  `json:"vendor_id"`
	Title            string     `json:"title"`
	SKU              string     `json:"sku"`
	TotalStock       int        `json:"total_stock"`
	CombinationCount int        `json:"combination_count"`
	RestockedAt      *time.Time `json:"restocked_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// SummaryPage is one page of the admin overview with its cursor.
type SummaryPage struct {
	Items      []ProductSummary `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// LowStockItem is one combination at or below the requested threshold,
// joined with its product and vendor context.
type LowStockItem struct {
	CombinationID   uuid.UUID `json:"combination_id"`
	CombinationName string    `json:"combination_name"`
	Stock           int       `json:"stock"`
	ProductID       uuid.UUID `json:"product_id"`
	ProductTitle    string    `json:"product_title"`
	ProductSKU      string    `json:"product_sku"`
	VendorID        uuid.UUID `json:"vendor_id"`
	VendorName      string    `json:"vendor_name"`
}

func combinationStocks(combinations []models.VariantCombination) ([]CombinationStock, int) {
	out := make([]CombinationStock, 0, len(combinations))
	total := 0
	for _, c := range combinations {
		out = append(out, CombinationStock{
			ID:              c.ID,
			CombinationName: c.CombinationName,
			SKUSuffix:       c.SKUSuffix,
			Stock:           c.Stock,
			IsActive:        c.IsActive,
		})
		total += c.Stock
	}
	return out, total
}
