package rows

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"shopify-preorder-sync/internal/domain/model"
)

var orderedQtyHeaders = []string{"ordered", "ordered_qty", "qty", "quantity"}

// ParseOrdered reads a sku + ordered quantity CSV. Rows without a SKU or a
// usable quantity are counted in skipped.
func ParseOrdered(r io.Reader) ([]model.OrderedQuantity, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, ErrNoHeader
	}
	if err != nil {
		return nil, 0, fmt.Errorf("rows: read header: %w", err)
	}

	skuIdx, qtyIdx := -1, -1
	for i, h := range header {
		name := CanonicalHeader(h)
		if name == ColSKU && skuIdx < 0 {
			skuIdx = i
		}
		if qtyIdx < 0 {
			for _, q := range orderedQtyHeaders {
				if name == q {
					qtyIdx = i
				}
			}
		}
	}
	if skuIdx < 0 || qtyIdx < 0 {
		return nil, 0, fmt.Errorf("rows: ordered csv needs sku and quantity columns, got %v", header)
	}

	var (
		out     []model.OrderedQuantity
		skipped int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			skipped++
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("rows: read ordered csv: %w", err)
		}

		if skuIdx >= len(record) || qtyIdx >= len(record) {
			skipped++
			continue
		}
		sku := strings.TrimSpace(record[skuIdx])
		qty, ok := parseQuantity(record[qtyIdx])
		if sku == "" || !ok {
			skipped++
			continue
		}
		out = append(out, model.OrderedQuantity{SKU: sku, Ordered: qty})
	}
	return out, skipped, nil
}

// parseQuantity tolerates "1,200" or "12 pcs"; negatives clamp to zero and
// fractions are floored.
func parseQuantity(s string) (int, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f < 0 {
		return 0, true
	}
	return int(math.Floor(f)), true
}
