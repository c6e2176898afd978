package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shopify-preorder-sync/internal/domain/model"
	"shopify-preorder-sync/internal/infra/mysql"
)

const restockSourceWebhook = "inventory_levels/update"

// ErrDuplicateDelivery means the delivery id was already applied.
var ErrDuplicateDelivery = errors.New("mirror: webhook delivery already processed")

// ApplyInventorySnapshot claims the delivery id, reads the previous level under
// a row lock, overwrites it and records a restock event for a positive delta,
// all in one transaction. An item seen for the first time starts from zero.
// Deliveries without an id are applied without the replay check.
func (s *Store) ApplyInventorySnapshot(ctx context.Context, d model.InventoryDelivery) (model.SnapshotTransition, error) {
	if d.ReceivedAt.IsZero() {
		d.ReceivedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.SnapshotTransition{}, fmt.Errorf("mirror: begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if d.DeliveryID != "" {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO webhook_deliveries (delivery_id, topic, shop_domain, received_at) VALUES (?, ?, ?, ?)`,
			d.DeliveryID, nullString(d.Topic), nullString(d.ShopDomain), d.ReceivedAt,
		)
		if mysql.IsDuplicateEntry(err) {
			return model.SnapshotTransition{}, ErrDuplicateDelivery
		}
		if err != nil {
			return model.SnapshotTransition{}, fmt.Errorf("mirror: record delivery %s: %w", d.DeliveryID, err)
		}
	}

	transition := model.SnapshotTransition{New: d.Available}
	err = tx.QueryRowContext(ctx,
		`SELECT available FROM inventory_levels WHERE inventory_item_id = ? FOR UPDATE`, d.InventoryItemID,
	).Scan(&transition.Old)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		transition.FirstSight = true
	case err != nil:
		return model.SnapshotTransition{}, fmt.Errorf("mirror: read snapshot %s: %w", d.InventoryItemID, err)
	}
	transition.Delta = transition.New - transition.Old

	if _, err := tx.ExecContext(ctx, `
INSERT INTO inventory_levels (inventory_item_id, available, updated_at)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE available = VALUES(available), updated_at = VALUES(updated_at)`,
		d.InventoryItemID, d.Available, d.ReceivedAt,
	); err != nil {
		return model.SnapshotTransition{}, fmt.Errorf("mirror: write snapshot %s: %w", d.InventoryItemID, err)
	}

	if transition.Restocked() {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO inventory_restock_events (inventory_item_id, location_id, old_stock, new_stock, delta, received_at, source)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			d.InventoryItemID, nullString(d.LocationID), transition.Old, transition.New, transition.Delta,
			d.ReceivedAt, restockSourceWebhook,
		); err != nil {
			return model.SnapshotTransition{}, fmt.Errorf("mirror: record restock %s: %w", d.InventoryItemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.SnapshotTransition{}, fmt.Errorf("mirror: commit snapshot %s: %w", d.InventoryItemID, err)
	}
	return transition, nil
}
