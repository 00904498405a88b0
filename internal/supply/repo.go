package supply

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketpulse/marketpulse-backend/pkg/db/models"
	pkgerrors "github.com/marketpulse/marketpulse-backend/pkg/errors"
)

// Repository manages persistence for supply records. Supplies are append
// only: no update path exists, and rows disappear only through the product
// purge routine.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.Supply) error
	CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.Supply, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a supply repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.Supply) error {
	if record == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "supply record required")
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating supply record")
	}
	return nil
}

func (r *repository) CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Supply{}).
		Where("product_id = ?", productID).
		Count(&count).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting supplies")
	}
	return count, nil
}

func (r *repository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.Supply, error) {
	var records []models.Supply
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("supply_date DESC, created_at DESC").
		Find(&records).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing supplies")
	}
	return records, nil
}
