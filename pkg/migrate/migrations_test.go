package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marketpulse/marketpulse-backend/pkg/migrate"
)

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestVariantCombinationsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_variant_combinations.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS variant_combinations",
		"FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE",
		"CHECK (stock >= 0)",
		"DROP TABLE IF EXISTS variant_combinations",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestHistoryMigrationEnforcesReplayArithmetic(t *testing.T) {
	content := readMigration(t, "*_create_inventory_history_entries.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS inventory_history_entries",
		"CHECK (new_stock >= 0)",
		"CHECK (new_stock = previous_stock + change_amount)",
		"change_type stock_change_type_enum NOT NULL",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestSuppliesMigrationRejectsNonPositiveQuantities(t *testing.T) {
	content := readMigration(t, "*_create_supplies.sql")
	if !strings.Contains(content, "CHECK (quantity_supplied > 0)") {
		t.Error("missing quantity_supplied check")
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q found", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
