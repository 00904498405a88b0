package history

import (
	"fmt"

	"github.com/marketpulse/marketpulse-backend/pkg/db/models"
)

// Replay walks entries in creation order starting from initialStock and
// verifies every step: each entry's previous_stock must equal the running
// value and its new_stock must equal previous_stock + change_amount. It
// returns the final stock, which callers compare against the combination's
// current stored stock.
func Replay(initialStock int, entries []models.InventoryHistoryEntry) (int, error) {
	running := initialStock
	for i, entry := range entries {
		if entry.PreviousStock != running {
			return 0, fmt.Errorf(
				"entry %d (%s): previous_stock %d does not match running stock %d",
				i, entry.ID, entry.PreviousStock, running,
			)
		}
		if entry.NewStock != entry.PreviousStock+entry.ChangeAmount {
			return 0, fmt.Errorf(
				"entry %d (%s): new_stock %d is not previous_stock %d + change %d",
				i, entry.ID, entry.NewStock, entry.PreviousStock, entry.ChangeAmount,
			)
		}
		if entry.NewStock < 0 {
			return 0, fmt.Errorf("entry %d (%s): negative stock %d", i, entry.ID, entry.NewStock)
		}
		running = entry.NewStock
	}
	return running, nil
}
