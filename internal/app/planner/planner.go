// Package planner packs per-row metafield writes into metafieldsSet batches.
package planner

import (
	"fmt"

	"shopify-preorder-sync/internal/adapters/shopify"
	"shopify-preorder-sync/internal/domain/model"
)

const (
	KeyIsPreorder      = "is_preorder"
	KeyPreorderLimit   = "preorder_limit"
	KeyPreorderMessage = "preorder_message"
)

// FieldWrite is one metafield change. A nil Value deletes the field.
type FieldWrite struct {
	Key   string
	Type  string
	Value *string
}

// RowChange is everything one row wants written to one variant.
type RowChange struct {
	RowIndex  int
	SKU       string
	VariantID string
	Fields    []FieldWrite
	// SetPolicy overrides the selling policy derived from is_preorder.
	SetPolicy string
}

// SetCount is the number of fields that go through metafieldsSet.
func (r RowChange) SetCount() int {
	n := 0
	for _, f := range r.Fields {
		if f.Value != nil {
			n++
		}
	}
	return n
}

// Policy is the selling policy to apply once the row's metafields are written, or "".
func (r RowChange) Policy() string {
	if r.SetPolicy != "" {
		return r.SetPolicy
	}
	for _, f := range r.Fields {
		if f.Key != KeyIsPreorder || f.Value == nil {
			continue
		}
		if *f.Value == "true" {
			return model.PolicyContinue
		}
		return model.PolicyDeny
	}
	return ""
}

type Batch struct {
	Number     int
	Rows       []RowChange
	FieldCount int
}

// Deletion is one field to remove, outside the batch path.
type Deletion struct {
	RowIndex  int
	SKU       string
	VariantID string
	Key       string
	Policy    string
}

type Plan struct {
	Batches   []Batch
	Deletions []Deletion
}

// Build packs rows greedily in input order. A row's set-fields always land in
// one batch; a batch closes when the next row would push it past maxFields.
func Build(changes []RowChange, maxFields int) (Plan, error) {
	if maxFields <= 0 {
		maxFields = shopify.MetafieldsSetBatchSize
	}

	var (
		plan    Plan
		current Batch
	)
	flush := func() {
		if len(current.Rows) == 0 {
			return
		}
		current.Number = len(plan.Batches) + 1
		plan.Batches = append(plan.Batches, current)
		current = Batch{}
	}

	for _, change := range changes {
		sets := make([]FieldWrite, 0, len(change.Fields))
		for _, f := range change.Fields {
			if f.Value == nil {
				plan.Deletions = append(plan.Deletions, Deletion{
					RowIndex:  change.RowIndex,
					SKU:       change.SKU,
					VariantID: change.VariantID,
					Key:       f.Key,
					Policy:    change.Policy(),
				})
				continue
			}
			sets = append(sets, f)
		}
		if len(sets) == 0 {
			continue
		}
		if len(sets) > maxFields {
			return Plan{}, fmt.Errorf("planner: row %d needs %d fields, batch cap is %d", change.RowIndex, len(sets), maxFields)
		}

		if current.FieldCount+len(sets) > maxFields {
			flush()
		}
		row := change
		row.Fields = sets
		current.Rows = append(current.Rows, row)
		current.FieldCount += len(sets)
	}
	flush()

	return plan, nil
}

// FromRow turns a parsed row into field writes. is_preorder defaults to true
// when the sheet did not say otherwise.
func FromRow(row model.PreorderRow, variantID string) RowChange {
	isPreorder := true
	if row.IsPreorder != nil {
		isPreorder = *row.IsPreorder
	}

	change := RowChange{
		RowIndex:  row.Index,
		SKU:       row.SKU,
		VariantID: variantID,
		Fields: []FieldWrite{
			{Key: KeyIsPreorder, Type: shopify.MetafieldTypeBoolean, Value: strPtr(fmt.Sprintf("%t", isPreorder))},
		},
	}
	if row.PreorderLimit != nil {
		change.Fields = append(change.Fields, FieldWrite{
			Key:   KeyPreorderLimit,
			Type:  shopify.MetafieldTypeInteger,
			Value: strPtr(fmt.Sprintf("%d", *row.PreorderLimit)),
		})
	}
	if row.PreorderMessage != nil {
		change.Fields = append(change.Fields, FieldWrite{
			Key:   KeyPreorderMessage,
			Type:  shopify.MetafieldTypeText,
			Value: strPtr(*row.PreorderMessage),
		})
	}
	return change
}

// ClearAll removes every preorder metafield from a variant and stops overselling.
func ClearAll(rowIndex int, variantID string) RowChange {
	return RowChange{
		RowIndex:  rowIndex,
		VariantID: variantID,
		SetPolicy: model.PolicyDeny,
		Fields: []FieldWrite{
			{Key: KeyIsPreorder, Type: shopify.MetafieldTypeBoolean},
			{Key: KeyPreorderLimit, Type: shopify.MetafieldTypeInteger},
			{Key: KeyPreorderMessage, Type: shopify.MetafieldTypeText},
		},
	}
}

func strPtr(s string) *string {
	return &s
}
