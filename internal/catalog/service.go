package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketpulse/marketpulse-backend/pkg/db/models"
	"github.com/marketpulse/marketpulse-backend/pkg/enums"
	pkgerrors "github.com/marketpulse/marketpulse-backend/pkg/errors"
	"github.com/marketpulse/marketpulse-backend/pkg/logger"
)

// Actor is the authenticated caller as seen by the domain layer. VendorID is
// nil for admins.
type Actor struct {
	UserID   uuid.UUID
	VendorID *uuid.UUID
	Role     enums.ActorRole
}

// IsAdmin reports whether the actor bypasses vendor ownership checks.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.ActorRoleAdmin
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes catalog reads for inventory scoping plus the admin purge.
type Service interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindProductOwned(ctx context.Context, actor Actor, id uuid.UUID) (*models.Product, error)
	FindVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	PurgeProduct(ctx context.Context, actor Actor, id uuid.UUID) error
}

type service struct {
	tx   txRunner
	repo Repository
	logg *logger.Logger
}

// NewService builds the catalog service.
func NewService(tx txRunner, repo Repository, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{tx: tx, repo: repo, logg: logg}, nil
}

func (s *service) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	return s.repo.FindProductByID(ctx, id)
}

// FindProductOwned resolves the product and enforces the ownership scope:
// vendor actors may only touch products whose vendor_id matches their own.
func (s *service) FindProductOwned(ctx context.Context, actor Actor, id uuid.UUID) (*models.Product, error) {
	product, err := s.FindProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return product, nil
	}
	if actor.VendorID == nil || product.VendorID != *actor.VendorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another vendor")
	}
	return product, nil
}

func (s *service) FindVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	return s.repo.FindVendorByID(ctx, id)
}

// PurgeProduct removes a product together with its inventory records inside
// one transaction. Child rows go first so foreign keys never block the
// delete: history entries, the inventory log, supplies, combinations, then
// the product row itself.
func (s *service) PurgeProduct(ctx context.Context, actor Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "purge requires admin role")
	}
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindProductByID(ctx, id); err != nil {
			return err
		}

		logIDs := tx.Model(&models.InventoryLog{}).Select("id").Where("product_id = ?", id)
		if err := tx.Where("inventory_id IN (?)", logIDs).
			Delete(&models.InventoryHistoryEntry{}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "purging history entries")
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.InventoryLog{}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "purging inventory log")
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.Supply{}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "purging supplies")
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.VariantCombination{}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "purging combinations")
		}
		return repo.DeleteProduct(ctx, id)
	})
	if err != nil {
		return err
	}

	ctx = s.logg.WithField(ctx, "product_id", id.String())
	s.logg.Info(ctx, "product purged with inventory records")
	return nil
}
