package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketpulse/marketpulse-backend/internal/catalog"
	"github.com/marketpulse/marketpulse-backend/internal/history"
	"github.com/marketpulse/marketpulse-backend/internal/supply"
	"github.com/marketpulse/marketpulse-backend/pkg/config"
	"github.com/marketpulse/marketpulse-backend/pkg/db"
	"github.com/marketpulse/marketpulse-backend/pkg/db/models"
	"github.com/marketpulse/marketpulse-backend/pkg/enums"
	pkgerrors "github.com/marketpulse/marketpulse-backend/pkg/errors"
	"github.com/marketpulse/marketpulse-backend/pkg/logger"
	"github.com/marketpulse/marketpulse-backend/pkg/metrics"
	"github.com/marketpulse/marketpulse-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the stock adjustment coordinator plus the inventory read paths.
// Vendor and admin callers go through the same methods; scoping decides what
// each one may touch, never which code path runs.
type Service interface {
	Adjust(ctx context.Context, input AdjustInput) (*AdjustResult, error)
	GetProductInventory(ctx context.Context, actor catalog.Actor, productID uuid.UUID) (*ProductInventory, error)
	ListAll(ctx context.Context, actor catalog.Actor, page pagination.Params) (*SummaryPage, error)
	ListByVendor(ctx context.Context, actor catalog.Actor, vendorID uuid.UUID, page pagination.Params) (*SummaryPage, error)
	LowStock(ctx context.Context, actor catalog.Actor, threshold *int) ([]LowStockItem, error)
}

type service struct {
	tx      txRunner
	repo    Repository
	catalog catalog.Service
	supply  supply.Service
	history history.Service
	cfg     config.InventoryConfig
	logg    *logger.Logger
	metrics *metrics.InventoryMetrics
}

// NewService builds the inventory service.
func NewService(
	tx txRunner,
	repo Repository,
	catalogSvc catalog.Service,
	supplySvc supply.Service,
	historySvc history.Service,
	cfg config.InventoryConfig,
	logg *logger.Logger,
	m *metrics.InventoryMetrics,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if supplySvc == nil {
		return nil, fmt.Errorf("supply service required")
	}
	if historySvc == nil {
		return nil, fmt.Errorf("history service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.AdjustRetries < 0 {
		return nil, fmt.Errorf("adjust retries must not be negative")
	}
	if cfg.LockWaitTimeout < 0 {
		return nil, fmt.Errorf("lock wait timeout must not be negative")
	}
	return &service{
		tx:      tx,
		repo:    repo,
		catalog: catalogSvc,
		supply:  supplySvc,
		history: historySvc,
		cfg:     cfg,
		logg:    logg,
		metrics: m,
	}, nil
}

// Adjust applies one signed stock change atomically. The combination row is
// locked for the full read-compute-write span, and the stock update, supply
// record, inventory log and history entry commit as one unit or not at all.
// Serialization and lock-wait failures are retried up to the configured
// budget before surfacing as a retryable contention error.
func (s *service) Adjust(ctx context.Context, input AdjustInput) (*AdjustResult, error) {
	start := time.Now()

	if input.CombinationID == uuid.Nil {
		s.metrics.IncOutcome("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "combination id required")
	}
	if input.ProductID == uuid.Nil {
		s.metrics.IncOutcome("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Adjustment == 0 {
		s.metrics.IncOutcome("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment must be non-zero")
	}

	// Ownership resolves before any write path opens.
	product, err := s.catalog.FindProductOwned(ctx, input.Actor, input.ProductID)
	if err != nil {
		s.metrics.IncOutcome("rejected")
		return nil, err
	}

	changeType := enums.StockChangeTypeManualAdjustment
	if input.Adjustment > 0 {
		changeType = enums.StockChangeTypeSupply
	}

	var result *AdjustResult
	for attempt := 0; ; attempt++ {
		result, err = s.adjustOnce(ctx, product, input, changeType)
		if err == nil {
			break
		}
		if isContention(err) {
			if attempt < s.cfg.AdjustRetries {
				s.metrics.IncRetry()
				continue
			}
			s.metrics.IncOutcome("contention")
			return nil, pkgerrors.Wrap(pkgerrors.CodeContention, err, "adjustment lost the row lock race")
		}
		if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() != pkgerrors.CodeInternal {
			s.metrics.IncOutcome("rejected")
			return nil, err
		}
		s.metrics.IncOutcome("error")
		return nil, err
	}

	s.metrics.IncOutcome("applied")
	s.metrics.ObserveDuration(changeType.String(), time.Since(start))

	ctx = s.logg.WithFields(ctx, map[string]any{
		"product_id":     input.ProductID.String(),
		"combination_id": input.CombinationID.String(),
		"change_amount":  input.Adjustment,
		"new_stock":      result.NewStock,
	})
	s.logg.Info(ctx, "stock adjustment applied")
	return result, nil
}

func isContention(err error) bool {
	if db.IsContention(err) {
		return true
	}
	appErr := pkgerrors.As(err)
	return appErr != nil && appErr.Code() == pkgerrors.CodeContention
}

func (s *service) adjustOnce(ctx context.Context, product *models.Product, input AdjustInput, changeType enums.StockChangeType) (*AdjustResult, error) {
	var result *AdjustResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := applyLockTimeout(ctx, tx, s.cfg.LockWaitTimeout); err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)

		combination, err := repo.FindCombinationForUpdate(ctx, input.CombinationID)
		if err != nil {
			return err
		}
		if combination.ProductID != product.ID {
			return pkgerrors.New(pkgerrors.CodeValidation, "combination does not belong to product")
		}

		previousStock := combination.Stock
		newStock := previousStock + input.Adjustment
		if newStock < 0 {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for adjustment").
				WithDetails(map[string]int{
					"current_stock": previousStock,
					"adjustment":    input.Adjustment,
				})
		}

		if err := repo.UpdateStock(ctx, combination.ID, previousStock, newStock); err != nil {
			return err
		}

		var supplyID *uuid.UUID
		if input.Adjustment > 0 {
			record, err := s.supply.Record(ctx, tx, supply.RecordInput{
				VendorID:         product.VendorID,
				ProductID:        product.ID,
				CombinationID:    combination.ID,
				QuantitySupplied: input.Adjustment,
			})
			if err != nil {
				return err
			}
			supplyID = &record.ID
		}

		log, err := s.upsertLog(ctx, repo, product.ID, supplyID)
		if err != nil {
			return err
		}

		entry, err := s.history.Append(ctx, tx, history.AppendInput{
			InventoryID:   log.ID,
			CombinationID: combination.ID,
			ChangeAmount:  input.Adjustment,
			ChangeType:    changeType,
			PreviousStock: previousStock,
			NewStock:      newStock,
			Note:          input.Note,
			AdjustedBy:    input.Actor.UserID,
			SupplyID:      supplyID,
		})
		if err != nil {
			return err
		}

		result = &AdjustResult{
			CombinationID: combination.ID,
			PreviousStock: previousStock,
			NewStock:      newStock,
			SupplyID:      supplyID,
			HistoryID:     entry.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// upsertLog keeps the per-product marker row current: a positive adjustment
// stamps restocked_at and the supply link, anything else only touches
// updated_at.
func (s *service) upsertLog(ctx context.Context, repo Repository, productID uuid.UUID, supplyID *uuid.UUID) (*models.InventoryLog, error) {
	log, err := repo.FindLogByProduct(ctx, productID)
	if err != nil {
		if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
			return nil, err
		}
		log = &models.InventoryLog{ProductID: productID}
		if err := repo.CreateLog(ctx, log); err != nil {
			return nil, err
		}
	}

	if supplyID != nil {
		now := time.Now().UTC()
		log.LastSupplyID = supplyID
		log.RestockedAt = &now
	}
	if err := repo.SaveLog(ctx, log); err != nil {
		return nil, err
	}
	return log, nil
}

// GetProductInventory returns the per-combination breakdown with totals and
// the last restock time.
func (s *service) GetProductInventory(ctx context.Context, actor catalog.Actor, productID uuid.UUID) (*ProductInventory, error) {
	product, err := s.catalog.FindProductOwned(ctx, actor, productID)
	if err != nil {
		return nil, err
	}

	combinations, err := s.repo.ListCombinationsByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	breakdown, total := combinationStocks(combinations)

	view := &ProductInventory{
		ProductID:    product.ID,
		Title:        product.Title,
		SKU:          product.SKU,
		TotalStock:   total,
		Combinations: breakdown,
	}
	if log, err := s.repo.FindLogByProduct(ctx, productID); err == nil {
		view.RestockedAt = log.RestockedAt
	} else if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		return nil, err
	}
	return view, nil
}

// ListAll pages the platform-wide inventory overview. Admin only.
func (s *service) ListAll(ctx context.Context, actor catalog.Actor, page pagination.Params) (*SummaryPage, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	items, next, err := s.repo.ListProductSummaries(ctx, nil, page)
	if err != nil {
		return nil, err
	}
	return &SummaryPage{Items: items, NextCursor: next}, nil
}

// ListByVendor pages one vendor's inventory overview. Admin only; the vendor
// must exist.
func (s *service) ListByVendor(ctx context.Context, actor catalog.Actor, vendorID uuid.UUID, page pagination.Params) (*SummaryPage, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if _, err := s.catalog.FindVendor(ctx, vendorID); err != nil {
		return nil, err
	}
	items, next, err := s.repo.ListProductSummaries(ctx, &vendorID, page)
	if err != nil {
		return nil, err
	}
	return &SummaryPage{Items: items, NextCursor: next}, nil
}

// LowStock scans for combinations at or below the threshold. Vendor actors
// see their own products, admins see the whole platform; both views filter
// to active products. Threshold zero lists only depleted combinations.
func (s *service) LowStock(ctx context.Context, actor catalog.Actor, threshold *int) ([]LowStockItem, error) {
	limit := s.cfg.LowStockThreshold
	if threshold != nil {
		if *threshold < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "threshold must not be negative")
		}
		limit = *threshold
	}

	var vendorScope *uuid.UUID
	if !actor.IsAdmin() {
		if actor.VendorID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor scope required")
		}
		vendorScope = actor.VendorID
	}
	return s.repo.ListLowStock(ctx, vendorScope, limit)
}
