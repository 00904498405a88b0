package catalog

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketpulse/marketpulse-backend/pkg/db/models"
	"github.com/marketpulse/marketpulse-backend/pkg/enums"
	pkgerrors "github.com/marketpulse/marketpulse-backend/pkg/errors"
	"github.com/marketpulse/marketpulse-backend/pkg/logger"
)

type fakeRepository struct {
	findProductFn func(ctx context.Context, id uuid.UUID) (*models.Product, error)
	findVendorFn  func(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if f.findProductFn != nil {
		return f.findProductFn(ctx, id)
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (f *fakeRepository) FindVendorByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	if f.findVendorFn != nil {
		return f.findVendorFn(ctx, id)
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
}

func (f *fakeRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error { return nil }

type fakeTxRunner struct {
	called bool
	err    error
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	f.called = true
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(&fakeTxRunner{}, repo, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func vendorActor(vendorID uuid.UUID) Actor {
	return Actor{UserID: uuid.New(), VendorID: &vendorID, Role: enums.ActorRoleVendor}
}

func adminActor() Actor {
	return Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin}
}

func TestFindProductOwned_VendorMatch(t *testing.T) {
	vendorID := uuid.New()
	product := &models.Product{ID: uuid.New(), VendorID: vendorID}
	repo := &fakeRepository{
		findProductFn: func(ctx context.Context, id uuid.UUID) (*models.Product, error) {
			return product, nil
		},
	}
	svc := newTestService(t, repo)

	got, err := svc.FindProductOwned(context.Background(), vendorActor(vendorID), product.ID)
	if err != nil {
		t.Fatalf("FindProductOwned error: %v", err)
	}
	if got != product {
		t.Fatal("expected the loaded product back")
	}
}

func TestFindProductOwned_VendorMismatchForbidden(t *testing.T) {
	product := &models.Product{ID: uuid.New(), VendorID: uuid.New()}
	repo := &fakeRepository{
		findProductFn: func(ctx context.Context, id uuid.UUID) (*models.Product, error) {
			return product, nil
		},
	}
	svc := newTestService(t, repo)

	_, err := svc.FindProductOwned(context.Background(), vendorActor(uuid.New()), product.ID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestFindProductOwned_AdminBypassesOwnership(t *testing.T) {
	product := &models.Product{ID: uuid.New(), VendorID: uuid.New()}
	repo := &fakeRepository{
		findProductFn: func(ctx context.Context, id uuid.UUID) (*models.Product, error) {
			return product, nil
		},
	}
	svc := newTestService(t, repo)

	got, err := svc.FindProductOwned(context.Background(), adminActor(), product.ID)
	if err != nil {
		t.Fatalf("FindProductOwned admin error: %v", err)
	}
	if got != product {
		t.Fatal("expected the loaded product back")
	}
}

func TestFindProductOwned_NotFoundShortCircuits(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(t, repo)

	_, err := svc.FindProductOwned(context.Background(), adminActor(), uuid.New())
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPurgeProduct_RequiresAdmin(t *testing.T) {
	tx := &fakeTxRunner{}
	svc, err := NewService(tx, &fakeRepository{}, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	vendorID := uuid.New()
	err = svc.PurgeProduct(context.Background(), vendorActor(vendorID), uuid.New())
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if tx.called {
		t.Fatal("purge must not open a transaction for non-admin actors")
	}
}

func TestPurgeProduct_RequiresProductID(t *testing.T) {
	svc := newTestService(t, &fakeRepository{})

	err := svc.PurgeProduct(context.Background(), adminActor(), uuid.Nil)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
