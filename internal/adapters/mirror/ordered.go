package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shopify-preorder-sync/internal/domain/model"
)

type OrderedSkip struct {
	SKU   string `json:"sku"`
	Error string `json:"error"`
}

// UpsertOrdered stores ordered quantities, linking each SKU to its mirrored
// variant when one exists. A failing SKU is reported and the rest continue.
func (s *Store) UpsertOrdered(ctx context.Context, items []model.OrderedQuantity) (int, []OrderedSkip, error) {
	var (
		updated int
		skipped []OrderedSkip
	)
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return updated, skipped, err
		}
		var variantID, itemID string
		v, err := s.FindVariantBySKU(ctx, item.SKU)
		switch {
		case err == nil:
			variantID, itemID = v.VariantID, v.InventoryItemID
		case !errors.Is(err, ErrNotFound):
			skipped = append(skipped, OrderedSkip{SKU: item.SKU, Error: err.Error()})
			continue
		}

		_, err = s.db.ExecContext(ctx, `
INSERT INTO ordered (sku, variant_id, inventory_item_id, ordered, updated_at)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
	variant_id = VALUES(variant_id),
	inventory_item_id = VALUES(inventory_item_id),
	ordered = VALUES(ordered),
	updated_at = VALUES(updated_at)`,
			item.SKU, nullString(variantID), nullString(itemID), item.Ordered, s.now(),
		)
		if err != nil {
			skipped = append(skipped, OrderedSkip{SKU: item.SKU, Error: err.Error()})
			continue
		}
		updated++
	}
	return updated, skipped, nil
}

// clearableTables are emptied by ClearPreorderData. webhook_deliveries stays so
// replayed deliveries are still recognised.
var clearableTables = []string{
	"uploads",
	"upload_rows",
	"variants",
	"inventory_levels",
	"inventory_restock_events",
	"webhook_debug",
	"ordered",
}

// ClearPreorderData empties the preorder tables and returns rows removed per table.
// A failing table is reported with -1 and does not stop the others.
func (s *Store) ClearPreorderData(ctx context.Context) (map[string]int64, error) {
	cleared := make(map[string]int64, len(clearableTables))
	var failed []string
	for _, table := range clearableTables {
		res, err := s.db.ExecContext(ctx, "DELETE FROM "+table)
		if err != nil {
			cleared[table] = -1
			failed = append(failed, fmt.Sprintf("%s: %v", table, err))
			continue
		}
		n, _ := res.RowsAffected()
		cleared[table] = n
	}
	if len(failed) > 0 {
		return cleared, fmt.Errorf("mirror: clear tables: %s", strings.Join(failed, "; "))
	}
	return cleared, nil
}
