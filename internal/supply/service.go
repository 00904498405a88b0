package supply

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketpulse/marketpulse-backend/internal/catalog"
	"github.com/marketpulse/marketpulse-backend/pkg/db/models"
	pkgerrors "github.com/marketpulse/marketpulse-backend/pkg/errors"
)

// RecordInput captures one stock-in event. QuantitySupplied must be positive;
// negative adjustments never produce a supply row.
type RecordInput struct {
	VendorID         uuid.UUID
	ProductID        uuid.UUID
	CombinationID    uuid.UUID
	QuantitySupplied int
	SupplyDate       time.Time
}

// Service exposes the supply provenance ledger.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.Supply, error)
	CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
	ListByProduct(ctx context.Context, actor catalog.Actor, productID uuid.UUID) ([]models.Supply, error)
}

type service struct {
	repo    Repository
	catalog catalog.Service
}

// NewService builds the supply service.
func NewService(repo Repository, catalogSvc catalog.Service) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("supply repository required")
	}
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	return &service{repo: repo, catalog: catalogSvc}, nil
}

// Record appends one supply row inside the caller's transaction. The
// adjustment coordinator is the only caller; it passes its open tx so the
// supply commits or rolls back with the stock update.
func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.Supply, error) {
	if input.QuantitySupplied <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity supplied must be positive")
	}
	if input.VendorID == uuid.Nil || input.ProductID == uuid.Nil || input.CombinationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor, product and combination ids required")
	}

	supplyDate := input.SupplyDate
	if supplyDate.IsZero() {
		supplyDate = time.Now().UTC()
	}

	record := &models.Supply{
		VendorID:         input.VendorID,
		ProductID:        input.ProductID,
		CombinationID:    input.CombinationID,
		QuantitySupplied: input.QuantitySupplied,
		SupplyDate:       supplyDate,
	}
	if err := s.repo.WithTx(tx).Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *service) CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	if productID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	return s.repo.CountByProduct(ctx, productID)
}

// ListByProduct returns the product's supply history, newest first. The
// ownership scope applies before any rows load.
func (s *service) ListByProduct(ctx context.Context, actor catalog.Actor, productID uuid.UUID) ([]models.Supply, error) {
	if _, err := s.catalog.FindProductOwned(ctx, actor, productID); err != nil {
		return nil, err
	}
	return s.repo.ListByProduct(ctx, productID)
}
