package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marketpulse/marketpulse-backend/pkg/db/models"
	pkgerrors "github.com/marketpulse/marketpulse-backend/pkg/errors"
	"github.com/marketpulse/marketpulse-backend/pkg/pagination"
)

// Repository manages combination stock and the per-product inventory log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindCombinationForUpdate(ctx context.Context, id uuid.UUID) (*models.VariantCombination, error)
	ListCombinationsByProduct(ctx context.Context, productID uuid.UUID) ([]models.VariantCombination, error)
	UpdateStock(ctx context.Context, id uuid.UUID, previousStock, newStock int) error
	FindLogByProduct(ctx context.Context, productID uuid.UUID) (*models.InventoryLog, error)
	CreateLog(ctx context.Context, log *models.InventoryLog) error
	SaveLog(ctx context.Context, log *models.InventoryLog) error
	ListProductSummaries(ctx context.Context, vendorID *uuid.UUID, page pagination.Params) ([]ProductSummary, string, error)
	ListLowStock(ctx context.Context, vendorID *uuid.UUID, threshold int) ([]LowStockItem, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindCombinationForUpdate loads the combination under a row lock. Must run
// inside a transaction; the lock holds until commit or rollback.
func (r *repository) FindCombinationForUpdate(ctx context.Context, id uuid.UUID) (*models.VariantCombination, error) {
	query := r.db.WithContext(ctx)
	// sqlite has no row locks; its writers serialize on the database lock,
	// and the guarded stock update catches anything that slips through.
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var combination models.VariantCombination
	if err := query.Where("id = ?", id).First(&combination).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "combination not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading combination")
	}
	return &combination, nil
}

// applyLockTimeout bounds how long row lock acquisition may wait inside the
// transaction, so a held lock surfaces as lock_not_available instead of
// blocking the caller indefinitely. SET LOCAL expires with the transaction.
// sqlite has no lock timeout; its writers serialize on the database lock.
func applyLockTimeout(ctx context.Context, tx *gorm.DB, timeout time.Duration) error {
	if tx == nil || timeout <= 0 || tx.Dialector.Name() != "postgres" {
		return nil
	}
	if err := tx.WithContext(ctx).Exec(lockTimeoutStatement(timeout)).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "bounding lock wait")
	}
	return nil
}

func lockTimeoutStatement(timeout time.Duration) string {
	return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())
}

func (r *repository) ListCombinationsByProduct(ctx context.Context, productID uuid.UUID) ([]models.VariantCombination, error) {
	var combinations []models.VariantCombination
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC, id ASC").
		Find(&combinations).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing combinations")
	}
	return combinations, nil
}

// UpdateStock persists the new stock, guarded on the previous value so a
// write that lost its read wins nothing. Negative values are rejected before
// touching the row.
func (r *repository) UpdateStock(ctx context.Context, id uuid.UUID, previousStock, newStock int) error {
	if newStock < 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "stock cannot go negative").
			WithDetails(map[string]int{"requested_stock": newStock})
	}
	result := r.db.WithContext(ctx).
		Model(&models.VariantCombination{}).
		Where("id = ? AND stock = ?", id, previousStock).
		Update("stock", newStock)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "updating stock")
	}
	if result.RowsAffected != 1 {
		return pkgerrors.New(pkgerrors.CodeContention,
			fmt.Sprintf("stock moved away from %d before write", previousStock))
	}
	return nil
}

func (r *repository) FindLogByProduct(ctx context.Context, productID uuid.UUID) (*models.InventoryLog, error) {
	var log models.InventoryLog
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		First(&log).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory log not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading inventory log")
	}
	return &log, nil
}

func (r *repository) CreateLog(ctx context.Context, log *models.InventoryLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating inventory log")
	}
	return nil
}

func (r *repository) SaveLog(ctx context.Context, log *models.InventoryLog) error {
	if log == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "inventory log required")
	}
	if err := r.db.WithContext(ctx).Save(log).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving inventory log")
	}
	return nil
}

// ListProductSummaries pages the per-product inventory overview, optionally
// narrowed to one vendor. Cursor order follows product creation time.
func (r *repository) ListProductSummaries(ctx context.Context, vendorID *uuid.UUID, page pagination.Params) ([]ProductSummary, string, error) {
	limit := pagination.NormalizeLimit(page.Limit)

	query := r.db.WithContext(ctx).
		Table("products").
		Select(`products.id AS product_id,
			products.vendor_id AS vendor_id,
			products.title AS title,
			products.sku AS sku,
			COALESCE(SUM(variant_combinations.stock), 0) AS total_stock,
			COUNT(variant_combinations.id) AS combination_count,
			MAX(inventory_logs.restocked_at) AS restocked_at,
			products.created_at AS created_at`).
		Joins("LEFT JOIN variant_combinations ON variant_combinations.product_id = products.id").
		Joins("LEFT JOIN inventory_logs ON inventory_logs.product_id = products.id").
		Group("products.id, products.vendor_id, products.title, products.sku, products.created_at")
	if vendorID != nil {
		query = query.Where("products.vendor_id = ?", *vendorID)
	}

	cursor, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid inventory cursor")
	}
	if cursor != nil {
		query = query.Where(
			"(products.created_at < ?) OR (products.created_at = ? AND products.id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var summaries []ProductSummary
	if err := query.
		Order("products.created_at DESC, products.id DESC").
		Limit(limit + 1).
		Scan(&summaries).Error; err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing inventory summaries")
	}

	next := ""
	if len(summaries) > limit {
		summaries = summaries[:limit]
		last := summaries[len(summaries)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ProductID})
	}
	return summaries, next, nil
}

// ListLowStock returns combinations at or below the threshold for active
// products, ascending by stock. The active-product filter applies to vendor
// and global scope alike.
func (r *repository) ListLowStock(ctx context.Context, vendorID *uuid.UUID, threshold int) ([]LowStockItem, error) {
	query := r.db.WithContext(ctx).
		Table("variant_combinations").
		Select(`variant_combinations.id AS combination_id,
			variant_combinations.combination_name AS combination_name,
			variant_combinations.stock AS stock,
			products.id AS product_id,
			products.title AS product_title,
			products.sku AS product_sku,
			vendors.id AS vendor_id,
			vendors.company_name AS vendor_name`).
		Joins("JOIN products ON products.id = variant_combinations.product_id").
		Joins("JOIN vendors ON vendors.id = products.vendor_id").
		Where("products.status = ?", "active").
		Where("variant_combinations.stock <= ?", threshold)
	if vendorID != nil {
		query = query.Where("products.vendor_id = ?", *vendorID)
	}

	var items []LowStockItem
	if err := query.
		Order("variant_combinations.stock ASC, variant_combinations.id ASC").
		Scan(&items).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "scanning low stock")
	}
	return items, nil
}
