package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketpulse/marketpulse-backend/pkg/db/models"
	pkgerrors "github.com/marketpulse/marketpulse-backend/pkg/errors"
	"github.com/marketpulse/marketpulse-backend/pkg/pagination"
)

// QueryFilters narrows a history query. All fields are optional and combine
// with AND.
type QueryFilters struct {
	ProductID     *uuid.UUID
	VendorID      *uuid.UUID
	CombinationID *uuid.UUID
	From          *time.Time
	To            *time.Time
}

// Repository manages persistence for the append-only history log. Entries
// are never updated or deleted outside the product purge routine.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, entry *models.InventoryHistoryEntry) error
	Query(ctx context.Context, filters QueryFilters, page pagination.Params) ([]models.InventoryHistoryEntry, string, error)
	ListByCombinationAsc(ctx context.Context, combinationID uuid.UUID) ([]models.InventoryHistoryEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a history repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, entry *models.InventoryHistoryEntry) error {
	if entry == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "history entry required")
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "appending history entry")
	}
	return nil
}

// Query returns entries newest first with cursor pagination. The second
// return value is the next cursor, empty when no further page exists.
func (r *repository) Query(ctx context.Context, filters QueryFilters, page pagination.Params) ([]models.InventoryHistoryEntry, string, error) {
	limit := pagination.NormalizeLimit(page.Limit)

	query := r.db.WithContext(ctx).Model(&models.InventoryHistoryEntry{})
	query = applyFilters(query, filters)

	cursor, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid history cursor")
	}
	if cursor != nil {
		query = query.Where(
			"(inventory_history_entries.created_at < ?) OR (inventory_history_entries.created_at = ? AND inventory_history_entries.id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var entries []models.InventoryHistoryEntry
	if err := query.
		Order("inventory_history_entries.created_at DESC, inventory_history_entries.id DESC").
		Limit(limit + 1).
		Find(&entries).Error; err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "querying history")
	}

	next := ""
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[len(entries)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return entries, next, nil
}

// ListByCombinationAsc returns every entry for a combination in creation
// order, the order required to replay stock from its initial value.
func (r *repository) ListByCombinationAsc(ctx context.Context, combinationID uuid.UUID) ([]models.InventoryHistoryEntry, error) {
	var entries []models.InventoryHistoryEntry
	if err := r.db.WithContext(ctx).
		Where("combination_id = ?", combinationID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing combination history")
	}
	return entries, nil
}

func applyFilters(query *gorm.DB, filters QueryFilters) *gorm.DB {
	if filters.ProductID != nil {
		query = query.
			Joins("JOIN inventory_logs ON inventory_logs.id = inventory_history_entries.inventory_id").
			Where("inventory_logs.product_id = ?", *filters.ProductID)
	} else if filters.VendorID != nil {
		query = query.
			Joins("JOIN inventory_logs ON inventory_logs.id = inventory_history_entries.inventory_id").
			Joins("JOIN products ON products.id = inventory_logs.product_id").
			Where("products.vendor_id = ?", *filters.VendorID)
	}
	if filters.CombinationID != nil {
		query = query.Where("inventory_history_entries.combination_id = ?", *filters.CombinationID)
	}
	if filters.From != nil {
		query = query.Where("inventory_history_entries.created_at >= ?", *filters.From)
	}
	if filters.To != nil {
		query = query.Where("inventory_history_entries.created_at <= ?", *filters.To)
	}
	return query
}
