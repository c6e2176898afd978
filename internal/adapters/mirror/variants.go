package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"shopify-preorder-sync/internal/domain/model"
)

// UpsertVariant writes the given fields and keeps stored values for the rest.
func (s *Store) UpsertVariant(ctx context.Context, u model.VariantUpdate) error {
	if strings.TrimSpace(u.VariantID) == "" {
		return errors.New("mirror: variant id is required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO variants (variant_id, product_id, handle, sku, is_preorder, preorder_limit, preorder_message, inventory_item_id, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
	product_id = COALESCE(VALUES(product_id), product_id),
	handle = COALESCE(VALUES(handle), handle),
	sku = COALESCE(VALUES(sku), sku),
	is_preorder = COALESCE(VALUES(is_preorder), is_preorder),
	preorder_limit = COALESCE(VALUES(preorder_limit), preorder_limit),
	preorder_message = COALESCE(VALUES(preorder_message), preorder_message),
	inventory_item_id = COALESCE(VALUES(inventory_item_id), inventory_item_id),
	updated_at = VALUES(updated_at)`,
		u.VariantID,
		nullString(u.ProductID),
		nullString(u.Handle),
		nullString(u.SKU),
		nullBoolPtr(u.IsPreorder),
		nullStringPtr(u.PreorderLimit),
		nullStringPtr(u.PreorderMessage),
		nullString(u.InventoryItemID),
		s.now(),
	)
	if err != nil {
		return fmt.Errorf("mirror: upsert variant %s: %w", u.VariantID, err)
	}
	return nil
}

const variantColumns = `variant_id, product_id, handle, sku, is_preorder, preorder_limit, preorder_message, inventory_item_id, updated_at`

func (s *Store) FindVariant(ctx context.Context, variantID string) (*model.VariantRecord, error) {
	return s.findVariant(ctx, `SELECT `+variantColumns+` FROM variants WHERE variant_id = ?`, variantID)
}

func (s *Store) FindVariantBySKU(ctx context.Context, sku string) (*model.VariantRecord, error) {
	return s.findVariant(ctx, `SELECT `+variantColumns+` FROM variants WHERE sku = ? ORDER BY updated_at DESC LIMIT 1`, sku)
}

func (s *Store) findVariant(ctx context.Context, query string, arg string) (*model.VariantRecord, error) {
	var (
		v          model.VariantRecord
		productID  sql.NullString
		handle     sql.NullString
		sku        sql.NullString
		isPreorder sql.NullBool
		limit      sql.NullString
		message    sql.NullString
		itemID     sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&v.VariantID, &productID, &handle, &sku, &isPreorder, &limit, &message, &itemID, &v.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mirror: find variant %s: %w", arg, err)
	}
	v.ProductID = productID.String
	v.Handle = handle.String
	v.SKU = sku.String
	if isPreorder.Valid {
		b := isPreorder.Bool
		v.IsPreorder = &b
	}
	v.PreorderLimit = stringPtr(limit)
	v.PreorderMessage = stringPtr(message)
	v.InventoryItemID = itemID.String
	return &v, nil
}

// DeleteVariant drops the variant's mirror row. Outcome history is kept.
func (s *Store) DeleteVariant(ctx context.Context, variantID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM variants WHERE variant_id = ?`, variantID); err != nil {
		return fmt.Errorf("mirror: delete variant %s: %w", variantID, err)
	}
	return nil
}
