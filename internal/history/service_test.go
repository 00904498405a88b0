package history

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketpulse/marketpulse-backend/internal/catalog"
	"github.com/marketpulse/marketpulse-backend/pkg/db/models"
	"github.com/marketpulse/marketpulse-backend/pkg/enums"
	pkgerrors "github.com/marketpulse/marketpulse-backend/pkg/errors"
	"github.com/marketpulse/marketpulse-backend/pkg/pagination"
)

type fakeRepository struct {
	appendFn func(ctx context.Context, entry *models.InventoryHistoryEntry) error
	queryFn  func(ctx context.Context, filters QueryFilters, page pagination.Params) ([]models.InventoryHistoryEntry, string, error)
	listFn   func(ctx context.Context, combinationID uuid.UUID) ([]models.InventoryHistoryEntry, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Append(ctx context.Context, entry *models.InventoryHistoryEntry) error {
	if f.appendFn != nil {
		return f.appendFn(ctx, entry)
	}
	return nil
}

func (f *fakeRepository) Query(ctx context.Context, filters QueryFilters, page pagination.Params) ([]models.InventoryHistoryEntry, string, error) {
	if f.queryFn != nil {
		return f.queryFn(ctx, filters, page)
	}
	return nil, "", nil
}

func (f *fakeRepository) ListByCombinationAsc(ctx context.Context, combinationID uuid.UUID) ([]models.InventoryHistoryEntry, error) {
	if f.listFn != nil {
		return f.listFn(ctx, combinationID)
	}
	return nil, nil
}

type fakeCatalog struct {
	findOwnedFn func(ctx context.Context, actor catalog.Actor, id uuid.UUID) (*models.Product, error)
}

func (f *fakeCatalog) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return nil, nil
}

func (f *fakeCatalog) FindProductOwned(ctx context.Context, actor catalog.Actor, id uuid.UUID) (*models.Product, error) {
	if f.findOwnedFn != nil {
		return f.findOwnedFn(ctx, actor, id)
	}
	return &models.Product{ID: id}, nil
}

func (f *fakeCatalog) FindVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	return nil, nil
}

func (f *fakeCatalog) PurgeProduct(ctx context.Context, actor catalog.Actor, id uuid.UUID) error {
	return nil
}

func vendorActor(vendorID uuid.UUID) catalog.Actor {
	return catalog.Actor{UserID: uuid.New(), VendorID: &vendorID, Role: enums.ActorRoleVendor}
}

func adminActor() catalog.Actor {
	return catalog.Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin}
}

func TestAppend_RejectsBadArithmetic(t *testing.T) {
	svc, err := NewService(&fakeRepository{}, &fakeCatalog{}, 50)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	_, err = svc.Append(context.Background(), nil, AppendInput{
		InventoryID:   uuid.New(),
		CombinationID: uuid.New(),
		ChangeAmount:  -5,
		ChangeType:    enums.StockChangeTypeManualAdjustment,
		PreviousStock: 10,
		NewStock:      6, // should be 5
		AdjustedBy:    uuid.New(),
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAppend_WritesEntry(t *testing.T) {
	var written *models.InventoryHistoryEntry
	repo := &fakeRepository{
		appendFn: func(ctx context.Context, entry *models.InventoryHistoryEntry) error {
			written = entry
			return nil
		},
	}
	svc, _ := NewService(repo, &fakeCatalog{}, 50)

	supplyID := uuid.New()
	got, err := svc.Append(context.Background(), nil, AppendInput{
		InventoryID:   uuid.New(),
		CombinationID: uuid.New(),
		ChangeAmount:  25,
		ChangeType:    enums.StockChangeTypeSupply,
		PreviousStock: 5,
		NewStock:      30,
		AdjustedBy:    uuid.New(),
		SupplyID:      &supplyID,
	})
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if written == nil || got != written {
		t.Fatal("expected entry to be appended and returned")
	}
	if written.SupplyID == nil || *written.SupplyID != supplyID {
		t.Fatal("expected supply reference on positive change")
	}
}

func TestQuery_PinsVendorScope(t *testing.T) {
	var seen QueryFilters
	repo := &fakeRepository{
		queryFn: func(ctx context.Context, filters QueryFilters, page pagination.Params) ([]models.InventoryHistoryEntry, string, error) {
			seen = filters
			return nil, "", nil
		},
	}
	svc, _ := NewService(repo, &fakeCatalog{}, 50)

	ownVendor := uuid.New()
	otherVendor := uuid.New()
	_, err := svc.Query(context.Background(), vendorActor(ownVendor), QueryFilters{VendorID: &otherVendor}, pagination.Params{})
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if seen.VendorID == nil || *seen.VendorID != ownVendor {
		t.Fatal("vendor actor filters must be pinned to their own vendor")
	}
}

func TestQuery_AdminKeepsRequestedFilters(t *testing.T) {
	var seen QueryFilters
	repo := &fakeRepository{
		queryFn: func(ctx context.Context, filters QueryFilters, page pagination.Params) ([]models.InventoryHistoryEntry, string, error) {
			seen = filters
			return nil, "", nil
		},
	}
	svc, _ := NewService(repo, &fakeCatalog{}, 50)

	vendorID := uuid.New()
	_, err := svc.Query(context.Background(), adminActor(), QueryFilters{VendorID: &vendorID}, pagination.Params{})
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if seen.VendorID == nil || *seen.VendorID != vendorID {
		t.Fatal("admin filters must pass through unchanged")
	}
}

func TestQuery_ProductViewCapsPageSize(t *testing.T) {
	var seenLimit int
	repo := &fakeRepository{
		queryFn: func(ctx context.Context, filters QueryFilters, page pagination.Params) ([]models.InventoryHistoryEntry, string, error) {
			seenLimit = page.Limit
			return nil, "", nil
		},
	}
	svc, _ := NewService(repo, &fakeCatalog{}, 50)

	productID := uuid.New()
	_, err := svc.Query(context.Background(), adminActor(), QueryFilters{ProductID: &productID}, pagination.Params{Limit: 200})
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if seenLimit != 50 {
		t.Fatalf("expected product view capped at 50, got %d", seenLimit)
	}
}

func TestQuery_ProductViewEnforcesOwnership(t *testing.T) {
	cat := &fakeCatalog{
		findOwnedFn: func(ctx context.Context, actor catalog.Actor, id uuid.UUID) (*models.Product, error) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another vendor")
		},
	}
	svc, _ := NewService(&fakeRepository{}, cat, 50)

	productID := uuid.New()
	_, err := svc.Query(context.Background(), vendorActor(uuid.New()), QueryFilters{ProductID: &productID}, pagination.Params{})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestVerifyCombination_MismatchSurfaces(t *testing.T) {
	repo := &fakeRepository{
		listFn: func(ctx context.Context, combinationID uuid.UUID) ([]models.InventoryHistoryEntry, error) {
			return []models.InventoryHistoryEntry{entry(0, 10, enums.StockChangeTypeSupply)}, nil
		},
	}
	svc, _ := NewService(repo, &fakeCatalog{}, 50)

	if err := svc.VerifyCombination(context.Background(), uuid.New(), 10); err != nil {
		t.Fatalf("expected clean verification, got %v", err)
	}
	if err := svc.VerifyCombination(context.Background(), uuid.New(), 12); err == nil {
		t.Fatal("expected mismatch error")
	}
}
