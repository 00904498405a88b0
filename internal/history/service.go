package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketpulse/marketpulse-backend/internal/catalog"
	"github.com/marketpulse/marketpulse-backend/pkg/db/models"
	"github.com/marketpulse/marketpulse-backend/pkg/enums"
	pkgerrors "github.com/marketpulse/marketpulse-backend/pkg/errors"
	"github.com/marketpulse/marketpulse-backend/pkg/pagination"
)

// AppendInput captures one immutable audit row. The coordinator computes
// PreviousStock and NewStock under the row lock; Append trusts them.
type AppendInput struct {
	InventoryID   uuid.UUID
	CombinationID uuid.UUID
	ChangeAmount  int
	ChangeType    enums.StockChangeType
	PreviousStock int
	NewStock      int
	Note          *string
	AdjustedBy    uuid.UUID
	SupplyID      *uuid.UUID
}

// Page is one page of history entries with its continuation cursor.
type Page struct {
	Entries    []models.InventoryHistoryEntry
	NextCursor string
}

// Service exposes the inventory history audit log.
type Service interface {
	Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.InventoryHistoryEntry, error)
	Query(ctx context.Context, actor catalog.Actor, filters QueryFilters, page pagination.Params) (*Page, error)
	VerifyCombination(ctx context.Context, combinationID uuid.UUID, currentStock int) error
}

type service struct {
	repo           Repository
	catalog        catalog.Service
	productPageCap int
}

// NewService builds the history service. productPageCap bounds the page size
// of single-product history views; zero falls back to the pagination default.
func NewService(repo Repository, catalogSvc catalog.Service, productPageCap int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("history repository required")
	}
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if productPageCap < 0 {
		return nil, fmt.Errorf("product page cap must not be negative")
	}
	return &service{repo: repo, catalog: catalogSvc, productPageCap: productPageCap}, nil
}

// Append writes one audit row inside the caller's transaction.
func (s *service) Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.InventoryHistoryEntry, error) {
	if input.InventoryID == uuid.Nil || input.CombinationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory and combination ids required")
	}
	if input.AdjustedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjusting actor required")
	}
	if !input.ChangeType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid change type")
	}
	if input.NewStock != input.PreviousStock+input.ChangeAmount {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "new stock must equal previous stock plus change")
	}

	entry := &models.InventoryHistoryEntry{
		InventoryID:   input.InventoryID,
		CombinationID: input.CombinationID,
		ChangeAmount:  input.ChangeAmount,
		ChangeType:    input.ChangeType,
		PreviousStock: input.PreviousStock,
		NewStock:      input.NewStock,
		Note:          input.Note,
		AdjustedBy:    input.AdjustedBy,
		SupplyID:      input.SupplyID,
	}
	if err := s.repo.WithTx(tx).Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Query lists history newest first. Vendor actors are pinned to their own
// vendor scope regardless of the requested filters; a product filter also
// passes the ownership check and gets the tighter page cap.
func (s *service) Query(ctx context.Context, actor catalog.Actor, filters QueryFilters, page pagination.Params) (*Page, error) {
	if !actor.IsAdmin() {
		if actor.VendorID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor scope required")
		}
		filters.VendorID = actor.VendorID
	}

	if filters.ProductID != nil {
		if _, err := s.catalog.FindProductOwned(ctx, actor, *filters.ProductID); err != nil {
			return nil, err
		}
		if s.productPageCap > 0 && (page.Limit <= 0 || page.Limit > s.productPageCap) {
			page.Limit = s.productPageCap
		}
	}

	entries, next, err := s.repo.Query(ctx, filters, page)
	if err != nil {
		return nil, err
	}
	return &Page{Entries: entries, NextCursor: next}, nil
}

// VerifyCombination replays the combination's full history from zero and
// compares the result against the stored stock.
func (s *service) VerifyCombination(ctx context.Context, combinationID uuid.UUID, currentStock int) error {
	entries, err := s.repo.ListByCombinationAsc(ctx, combinationID)
	if err != nil {
		return err
	}
	final, err := Replay(0, entries)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "history replay failed")
	}
	if final != currentStock {
		return pkgerrors.New(pkgerrors.CodeInternal,
			fmt.Sprintf("replayed stock %d does not match stored stock %d", final, currentStock))
	}
	return nil
}
