package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"shopify-preorder-sync/internal/domain/model"
)

func (s *Store) AppendWebhookDebug(ctx context.Context, e model.WebhookDebugEntry) error {
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = s.now()
	}
	var headers any
	if len(e.Headers) > 0 {
		b, err := json.Marshal(e.Headers)
		if err != nil {
			return fmt.Errorf("mirror: encode webhook headers: %w", err)
		}
		headers = b
	}
	var payload any
	if json.Valid(e.Payload) {
		payload = e.Payload
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO webhook_debug (inventory_item_id, available, location_id, received_at, headers, payload)
VALUES (?, ?, ?, ?, ?, ?)`,
		nullString(e.InventoryItemID), nullIntPtr(e.Available), nullString(e.LocationID), e.ReceivedAt, headers, payload,
	)
	if err != nil {
		return fmt.Errorf("mirror: webhook debug: %w", err)
	}
	return nil
}
