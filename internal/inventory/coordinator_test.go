package inventory_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/marketpulse/marketpulse-backend/internal/catalog"
	"github.com/marketpulse/marketpulse-backend/internal/history"
	"github.com/marketpulse/marketpulse-backend/internal/inventory"
	"github.com/marketpulse/marketpulse-backend/internal/supply"
	"github.com/marketpulse/marketpulse-backend/pkg/config"
	pkgdb "github.com/marketpulse/marketpulse-backend/pkg/db"
	"github.com/marketpulse/marketpulse-backend/pkg/db/models"
	"github.com/marketpulse/marketpulse-backend/pkg/enums"
	pkgerrors "github.com/marketpulse/marketpulse-backend/pkg/errors"
	"github.com/marketpulse/marketpulse-backend/pkg/logger"
)

// sqlite needs an expression default to stand in for gen_random_uuid().
const sqliteUUID = `(lower(hex(randomblob(4)) || '-' || hex(randomblob(2)) || '-4' || substr(hex(randomblob(2)),2) || '-a' || substr(hex(randomblob(2)),2) || '-' || hex(randomblob(6))))`

func setupInventoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schemas := []string{
		`CREATE TABLE IF NOT EXISTS vendors (
  id TEXT PRIMARY KEY DEFAULT ` + sqliteUUID + `,
  company_name TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY DEFAULT ` + sqliteUUID + `,
  vendor_id TEXT NOT NULL,
  sku TEXT NOT NULL,
  title TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS variant_combinations (
  id TEXT PRIMARY KEY DEFAULT ` + sqliteUUID + `,
  product_id TEXT NOT NULL,
  combination_name TEXT NOT NULL,
  sku_suffix TEXT NOT NULL DEFAULT '',
  stock INTEGER NOT NULL DEFAULT 0,
  price_modifier NUMERIC NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS supplies (
  id TEXT PRIMARY KEY DEFAULT ` + sqliteUUID + `,
  vendor_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  combination_id TEXT NOT NULL,
  quantity_supplied INTEGER NOT NULL,
  supply_date DATETIME NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS inventory_logs (
  id TEXT PRIMARY KEY DEFAULT ` + sqliteUUID + `,
  product_id TEXT NOT NULL UNIQUE,
  last_supply_id TEXT,
  restocked_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS inventory_history_entries (
  id TEXT PRIMARY KEY DEFAULT ` + sqliteUUID + `,
  inventory_id TEXT NOT NULL,
  combination_id TEXT NOT NULL,
  change_amount INTEGER NOT NULL,
  change_type TEXT NOT NULL,
  previous_stock INTEGER NOT NULL,
  new_stock INTEGER NOT NULL,
  note TEXT,
  adjusted_by TEXT NOT NULL,
  supply_id TEXT,
  created_at DATETIME
);`,
	}
	for _, schema := range schemas {
		require.NoError(t, db.Exec(schema).Error)
	}
	return db
}

type coordinatorFixture struct {
	svc        inventory.Service
	catalogSvc catalog.Service
	historySvc history.Service
	supplySvc  supply.Service
	db         *gorm.DB
	vendor     models.Vendor
	product    models.Product
	combo      models.VariantCombination
	actor      catalog.Actor
	admin      catalog.Actor
}

func setupCoordinator(t *testing.T) *coordinatorFixture {
	t.Helper()

	conn := setupInventoryTestDB(t)
	client := pkgdb.FromGorm(conn)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	catalogSvc, err := catalog.NewService(client, catalog.NewRepository(conn), logg)
	if err != nil {
		t.Fatalf("catalog service: %v", err)
	}
	supplySvc, err := supply.NewService(supply.NewRepository(conn), catalogSvc)
	if err != nil {
		t.Fatalf("supply service: %v", err)
	}
	historySvc, err := history.NewService(history.NewRepository(conn), catalogSvc, 50)
	if err != nil {
		t.Fatalf("history service: %v", err)
	}
	svc, err := inventory.NewService(
		client,
		inventory.NewRepository(conn),
		catalogSvc,
		supplySvc,
		historySvc,
		config.InventoryConfig{AdjustRetries: 3, LockWaitTimeout: time.Second, LowStockThreshold: 10, HistoryPageLimit: 50},
		logg,
		nil,
	)
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}

	vendor := models.Vendor{ID: uuid.New(), CompanyName: "Ridge Outfitters", IsActive: true}
	require.NoError(t, conn.Create(&vendor).Error)
	product := models.Product{
		ID:       uuid.New(),
		VendorID: vendor.ID,
		SKU:      "RO-PACK",
		Title:    "Expedition Pack",
		Status:   enums.ProductStatusActive,
	}
	require.NoError(t, conn.Create(&product).Error)
	combo := models.VariantCombination{
		ID:              uuid.New(),
		ProductID:       product.ID,
		CombinationName: "Green / 65L",
		Stock:           10,
		IsActive:        true,
	}
	require.NoError(t, conn.Create(&combo).Error)

	vendorID := vendor.ID
	return &coordinatorFixture{
		svc:        svc,
		catalogSvc: catalogSvc,
		historySvc: historySvc,
		supplySvc:  supplySvc,
		db:         conn,
		vendor:     vendor,
		product:    product,
		combo:      combo,
		actor:      catalog.Actor{UserID: uuid.New(), VendorID: &vendorID, Role: enums.ActorRoleVendor},
		admin:      catalog.Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin},
	}
}

func (f *coordinatorFixture) reloadCombo(t *testing.T) models.VariantCombination {
	t.Helper()
	var combo models.VariantCombination
	if err := f.db.First(&combo, "id = ?", f.combo.ID).Error; err != nil {
		t.Fatalf("reload combination: %v", err)
	}
	return combo
}

func TestCoordinator_PositiveAdjustment(t *testing.T) {
	f := setupCoordinator(t)
	ctx := context.Background()

	result, err := f.svc.Adjust(ctx, inventory.AdjustInput{
		ProductID:     f.product.ID,
		CombinationID: f.combo.ID,
		Adjustment:    25,
		Actor:         f.actor,
	})
	if err != nil {
		t.Fatalf("Adjust error: %v", err)
	}
	if result.PreviousStock != 10 || result.NewStock != 35 {
		t.Fatalf("unexpected transition: %+v", result)
	}

	if got := f.reloadCombo(t); got.Stock != 35 {
		t.Fatalf("stored stock %d, want 35", got.Stock)
	}

	var supplies []models.Supply
	if err := f.db.Find(&supplies, "combination_id = ?", f.combo.ID).Error; err != nil {
		t.Fatalf("load supplies: %v", err)
	}
	if len(supplies) != 1 || supplies[0].QuantitySupplied != 25 {
		t.Fatalf("unexpected supplies: %+v", supplies)
	}

	var log models.InventoryLog
	if err := f.db.First(&log, "product_id = ?", f.product.ID).Error; err != nil {
		t.Fatalf("load inventory log: %v", err)
	}
	if log.RestockedAt == nil || log.LastSupplyID == nil || *log.LastSupplyID != supplies[0].ID {
		t.Fatalf("inventory log not stamped: %+v", log)
	}

	var entries []models.InventoryHistoryEntry
	if err := f.db.Find(&entries, "combination_id = ?", f.combo.ID).Error; err != nil {
		t.Fatalf("load history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one history entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.PreviousStock != 10 || entry.NewStock != 35 || entry.ChangeAmount != 25 {
		t.Fatalf("unexpected history row: %+v", entry)
	}
	if entry.ChangeType != enums.StockChangeTypeSupply {
		t.Fatalf("change type %v", entry.ChangeType)
	}
	if entry.SupplyID == nil || *entry.SupplyID != supplies[0].ID {
		t.Fatal("history entry must link the supply record")
	}
}

func TestCoordinator_NegativeAdjustment(t *testing.T) {
	f := setupCoordinator(t)
	ctx := context.Background()

	note := "damaged in storage"
	result, err := f.svc.Adjust(ctx, inventory.AdjustInput{
		ProductID:     f.product.ID,
		CombinationID: f.combo.ID,
		Adjustment:    -4,
		Note:          &note,
		Actor:         f.actor,
	})
	if err != nil {
		t.Fatalf("Adjust error: %v", err)
	}
	if result.NewStock != 6 || result.SupplyID != nil {
		t.Fatalf("unexpected result: %+v", result)
	}

	var supplyCount int64
	if err := f.db.Model(&models.Supply{}).Count(&supplyCount).Error; err != nil {
		t.Fatalf("count supplies: %v", err)
	}
	if supplyCount != 0 {
		t.Fatal("negative adjustment must not create a supply record")
	}

	var entry models.InventoryHistoryEntry
	if err := f.db.First(&entry, "combination_id = ?", f.combo.ID).Error; err != nil {
		t.Fatalf("load history: %v", err)
	}
	if entry.ChangeType != enums.StockChangeTypeManualAdjustment || entry.SupplyID != nil {
		t.Fatalf("unexpected history row: %+v", entry)
	}
	if entry.Note == nil || *entry.Note != note {
		t.Fatal("note must persist on the history entry")
	}
}

func TestCoordinator_InsufficientStockLeavesNoTrace(t *testing.T) {
	f := setupCoordinator(t)
	ctx := context.Background()

	_, err := f.svc.Adjust(ctx, inventory.AdjustInput{
		ProductID:     f.product.ID,
		CombinationID: f.combo.ID,
		Adjustment:    -11, // stock is 10
		Actor:         f.actor,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	if got := f.reloadCombo(t); got.Stock != 10 {
		t.Fatalf("stock mutated to %d", got.Stock)
	}
	var supplyCount, historyCount, logCount int64
	f.db.Model(&models.Supply{}).Count(&supplyCount)
	f.db.Model(&models.InventoryHistoryEntry{}).Count(&historyCount)
	f.db.Model(&models.InventoryLog{}).Count(&logCount)
	if supplyCount != 0 || historyCount != 0 || logCount != 0 {
		t.Fatalf("rejected adjustment left rows: supplies=%d history=%d logs=%d",
			supplyCount, historyCount, logCount)
	}
}

func TestCoordinator_WithdrawToZeroThenReject(t *testing.T) {
	f := setupCoordinator(t)
	ctx := context.Background()

	result, err := f.svc.Adjust(ctx, inventory.AdjustInput{
		ProductID:     f.product.ID,
		CombinationID: f.combo.ID,
		Adjustment:    -10,
		Actor:         f.actor,
	})
	if err != nil {
		t.Fatalf("withdraw to zero: %v", err)
	}
	if result.NewStock != 0 {
		t.Fatalf("expected zero stock, got %d", result.NewStock)
	}

	_, err = f.svc.Adjust(ctx, inventory.AdjustInput{
		ProductID:     f.product.ID,
		CombinationID: f.combo.ID,
		Adjustment:    -1,
		Actor:         f.actor,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock at zero, got %v", err)
	}
}

func TestCoordinator_SequentialAdjustmentsReconcile(t *testing.T) {
	f := setupCoordinator(t)
	ctx := context.Background()

	adjustments := []int{15, -7, 30, -20, -8, 2}
	expected := 10
	for _, change := range adjustments {
		if _, err := f.svc.Adjust(ctx, inventory.AdjustInput{
			ProductID:     f.product.ID,
			CombinationID: f.combo.ID,
			Adjustment:    change,
			Actor:         f.actor,
		}); err != nil {
			t.Fatalf("adjust by %d: %v", change, err)
		}
		expected += change
	}

	combo := f.reloadCombo(t)
	if combo.Stock != expected {
		t.Fatalf("stored stock %d, want %d", combo.Stock, expected)
	}

	// the initial seed stock of 10 predates the history log
	entries, err := history.NewRepository(f.db).ListByCombinationAsc(ctx, f.combo.ID)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	final, err := history.Replay(10, entries)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if final != combo.Stock {
		t.Fatalf("replayed %d, stored %d", final, combo.Stock)
	}

	count, err := f.supplySvc.CountByProduct(ctx, f.product.ID)
	if err != nil {
		t.Fatalf("count supplies: %v", err)
	}
	if count != 3 { // one per positive adjustment
		t.Fatalf("expected 3 supply rows, got %d", count)
	}
}

func TestCoordinator_ConcurrentWithdrawalsNeverOversell(t *testing.T) {
	f := setupCoordinator(t)
	ctx := context.Background()

	// stock 5: two -3 withdrawals cannot both land
	require.NoError(t, f.db.Model(&models.VariantCombination{}).
		Where("id = ?", f.combo.ID).
		Update("stock", 5).Error)

	start := make(chan struct{})
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			<-start
			_, errs[slot] = f.svc.Adjust(ctx, inventory.AdjustInput{
				ProductID:     f.product.ID,
				CombinationID: f.combo.ID,
				Adjustment:    -3,
				Actor:         f.actor,
			})
		}(i)
	}
	close(start)
	wg.Wait()

	var applied, rejected int
	for _, err := range errs {
		if err == nil {
			applied++
			continue
		}
		appErr := pkgerrors.As(err)
		if appErr != nil && appErr.Code() == pkgerrors.CodeInsufficientStock {
			rejected++
			continue
		}
		t.Fatalf("unexpected adjust error: %v", err)
	}
	if applied != 1 || rejected != 1 {
		t.Fatalf("want one applied and one insufficient-stock rejection, got applied=%d rejected=%d", applied, rejected)
	}

	if got := f.reloadCombo(t); got.Stock != 2 {
		t.Fatalf("final stock %d, want 2", got.Stock)
	}
	// only the winner leaves an audit trail
	var historyRows int64
	require.NoError(t, f.db.Model(&models.InventoryHistoryEntry{}).Count(&historyRows).Error)
	if historyRows != 1 {
		t.Fatalf("expected one history entry, got %d", historyRows)
	}
}

func TestCoordinator_AdminUsesSamePath(t *testing.T) {
	f := setupCoordinator(t)
	ctx := context.Background()

	result, err := f.svc.Adjust(ctx, inventory.AdjustInput{
		ProductID:     f.product.ID,
		CombinationID: f.combo.ID,
		Adjustment:    5,
		Actor:         f.admin,
	})
	if err != nil {
		t.Fatalf("admin adjust: %v", err)
	}
	if result.NewStock != 15 {
		t.Fatalf("unexpected stock %d", result.NewStock)
	}

	// the admin's write is audited like any other
	var entry models.InventoryHistoryEntry
	if err := f.db.First(&entry, "combination_id = ?", f.combo.ID).Error; err != nil {
		t.Fatalf("load history: %v", err)
	}
	if entry.AdjustedBy != f.admin.UserID {
		t.Fatal("history must record the admin actor")
	}
}

func TestCoordinator_VendorCannotTouchForeignProduct(t *testing.T) {
	f := setupCoordinator(t)
	ctx := context.Background()

	otherVendor := uuid.New()
	intruder := catalog.Actor{UserID: uuid.New(), VendorID: &otherVendor, Role: enums.ActorRoleVendor}

	_, err := f.svc.Adjust(ctx, inventory.AdjustInput{
		ProductID:     f.product.ID,
		CombinationID: f.combo.ID,
		Adjustment:    5,
		Actor:         intruder,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if got := f.reloadCombo(t); got.Stock != 10 {
		t.Fatalf("stock mutated to %d", got.Stock)
	}
}

func TestCoordinator_LowStockScan(t *testing.T) {
	f := setupCoordinator(t)
	ctx := context.Background()

	// a second combination well above the threshold
	rich := models.VariantCombination{
		ID:              uuid.New(),
		ProductID:       f.product.ID,
		CombinationName: "Blue / 45L",
		Stock:           500,
		IsActive:        true,
	}
	if err := f.db.Create(&rich).Error; err != nil {
		t.Fatalf("seed combination: %v", err)
	}

	// an archived product's combination must never appear
	archived := models.Product{
		ID:       uuid.New(),
		VendorID: f.vendor.ID,
		SKU:      "RO-OLD",
		Title:    "Retired Pack",
		Status:   enums.ProductStatusArchived,
	}
	if err := f.db.Create(&archived).Error; err != nil {
		t.Fatalf("seed archived product: %v", err)
	}
	drained := models.VariantCombination{
		ID:              uuid.New(),
		ProductID:       archived.ID,
		CombinationName: "Gray / 30L",
		Stock:           0,
		IsActive:        true,
	}
	if err := f.db.Create(&drained).Error; err != nil {
		t.Fatalf("seed drained combination: %v", err)
	}

	items, err := f.svc.LowStock(ctx, f.actor, nil)
	if err != nil {
		t.Fatalf("LowStock error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 low-stock item, got %d: %+v", len(items), items)
	}
	if items[0].CombinationID != f.combo.ID || items[0].Stock != 10 {
		t.Fatalf("unexpected item: %+v", items[0])
	}
	if items[0].VendorName != f.vendor.CompanyName || items[0].ProductTitle != f.product.Title {
		t.Fatalf("missing joined context: %+v", items[0])
	}

	// threshold zero narrows to depleted combinations only
	zero := 0
	items, err = f.svc.LowStock(ctx, f.admin, &zero)
	if err != nil {
		t.Fatalf("LowStock admin error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no depleted active combinations, got %+v", items)
	}
}

func TestCoordinator_PurgeRemovesEverything(t *testing.T) {
	f := setupCoordinator(t)
	ctx := context.Background()

	for _, change := range []int{20, -5} {
		if _, err := f.svc.Adjust(ctx, inventory.AdjustInput{
			ProductID:     f.product.ID,
			CombinationID: f.combo.ID,
			Adjustment:    change,
			Actor:         f.actor,
		}); err != nil {
			t.Fatalf("adjust by %d: %v", change, err)
		}
	}

	if err := f.catalogSvc.PurgeProduct(ctx, f.admin, f.product.ID); err != nil {
		t.Fatalf("PurgeProduct error: %v", err)
	}

	var products, combinations, supplies, logs, historyRows int64
	f.db.Model(&models.Product{}).Where("id = ?", f.product.ID).Count(&products)
	f.db.Model(&models.VariantCombination{}).Where("product_id = ?", f.product.ID).Count(&combinations)
	f.db.Model(&models.Supply{}).Where("product_id = ?", f.product.ID).Count(&supplies)
	f.db.Model(&models.InventoryLog{}).Where("product_id = ?", f.product.ID).Count(&logs)
	f.db.Model(&models.InventoryHistoryEntry{}).Count(&historyRows)

	if products != 0 || combinations != 0 || supplies != 0 || logs != 0 || historyRows != 0 {
		t.Errorf("rows remain after purge: products=%d combinations=%d supplies=%d logs=%d history=%d",
			products, combinations, supplies, logs, historyRows)
	}
}
