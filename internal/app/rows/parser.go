// Package rows turns uploaded spreadsheets into normalized preorder rows.
//
// Parsing is best effort: a bad cell drops that field, a row without a SKU is
// skipped and counted, and only an unreadable file is an error.
package rows

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"shopify-preorder-sync/internal/domain/model"
)

const (
	ColSKU             = "sku"
	ColHandle          = "handle"
	ColIsPreorder      = "is_preorder"
	ColPreorderLimit   = "preorder_limit"
	ColPreorderMessage = "preorder_message"
)

var ErrNoHeader = errors.New("rows: file has no header row")

// errBadRecord marks a record the tokenizer could not read; it is skipped.
var errBadRecord = errors.New("rows: malformed record")

var headerAliases = map[string]string{
	"sku":               ColSKU,
	"variant_sku":       ColSKU,
	"variantid":         ColSKU,
	"variant_id_sku":    ColSKU,
	"handle":            ColHandle,
	"product_handle":    ColHandle,
	"handle_url":        ColHandle,
	"is_preorder":       ColIsPreorder,
	"ispreorder":        ColIsPreorder,
	"preorder":          ColIsPreorder,
	"is_pre_order":      ColIsPreorder,
	"preorder_limit":    ColPreorderLimit,
	"pre_order_limit":   ColPreorderLimit,
	"limit":             ColPreorderLimit,
	"preorder_message":  ColPreorderMessage,
	"pre_order_message": ColPreorderMessage,
	"message":           ColPreorderMessage,
}

type Options struct {
	// RequireHandle skips rows without a product handle.
	RequireHandle bool
}

// Result holds the emitted rows. TotalRows counts emitted rows only;
// records read = TotalRows + SkippedRows.
type Result struct {
	Rows        []model.PreorderRow
	Headers     []string
	TotalRows   int
	SkippedRows int
}

// Parse picks the reader by file extension. Anything that is not .xlsx is read as CSV.
func Parse(filename string, r io.Reader, opts Options) (Result, error) {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return ParseXLSX(r, opts)
	}
	return ParseCSV(r, opts)
}

func ParseCSV(r io.Reader, opts Options) (Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	return parseRecords(func() ([]string, int, error) {
		record, err := reader.Read()
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, parseErr.StartLine, fmt.Errorf("%w: %v", errBadRecord, err)
		}
		if err != nil {
			return nil, 0, err
		}
		line, _ := reader.FieldPos(0)
		return record, line, nil
	}, opts)
}

func ParseXLSX(r io.Reader, opts Options) (Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("rows: open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Result{}, ErrNoHeader
	}
	xlsxRows, err := f.Rows(sheets[0])
	if err != nil {
		return Result{}, fmt.Errorf("rows: read sheet %s: %w", sheets[0], err)
	}
	defer xlsxRows.Close()

	line := 0
	return parseRecords(func() ([]string, int, error) {
		for xlsxRows.Next() {
			line++
			cols, err := xlsxRows.Columns()
			if err != nil {
				return nil, 0, err
			}
			if isBlank(cols) {
				continue
			}
			return cols, line, nil
		}
		if err := xlsxRows.Error(); err != nil {
			return nil, 0, err
		}
		return nil, 0, io.EOF
	}, opts)
}

func parseRecords(next func() ([]string, int, error), opts Options) (Result, error) {
	header, _, err := next()
	if errors.Is(err, io.EOF) {
		return Result{}, ErrNoHeader
	}
	if err != nil {
		return Result{}, fmt.Errorf("rows: read header: %w", err)
	}

	res := Result{Headers: make([]string, len(header))}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		name := CanonicalHeader(h)
		res.Headers[i] = name
		if _, seen := columns[name]; !seen && name != "" {
			columns[name] = i
		}
	}
	if _, ok := columns[ColSKU]; !ok {
		return Result{}, fmt.Errorf("rows: no sku column in header %v", res.Headers)
	}

	for {
		record, line, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, errBadRecord) {
			res.SkippedRows++
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("rows: read line %d: %w", line, err)
		}

		row, ok := buildRow(record, columns, opts)
		if !ok {
			res.SkippedRows++
			continue
		}
		row.Index = len(res.Rows)
		row.Line = line
		res.Rows = append(res.Rows, row)
	}

	res.TotalRows = len(res.Rows)
	return res, nil
}

func buildRow(record []string, columns map[string]int, opts Options) (model.PreorderRow, bool) {
	cell := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	row := model.PreorderRow{
		SKU:    cell(ColSKU),
		Handle: cell(ColHandle),
	}
	if row.SKU == "" {
		return model.PreorderRow{}, false
	}
	if opts.RequireHandle && row.Handle == "" {
		return model.PreorderRow{}, false
	}

	if v, ok := ParseBool(cell(ColIsPreorder)); ok {
		row.IsPreorder = &v
	}
	if v, ok := ParseNonNegativeInt(cell(ColPreorderLimit)); ok {
		row.PreorderLimit = &v
	}
	if msg := cell(ColPreorderMessage); msg != "" {
		row.PreorderMessage = &msg
	}
	return row, true
}

// NormalizeHeader lowercases, strips a BOM and collapses punctuation runs into "_".
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))

	var b strings.Builder
	b.Grow(len(h))
	pendingSep := false
	for _, r := range h {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// CanonicalHeader maps a raw header onto the canonical column set; unknown
// headers come back in their normalized form.
func CanonicalHeader(h string) string {
	normalized := NormalizeHeader(h)
	if canonical, ok := headerAliases[normalized]; ok {
		return canonical
	}
	return normalized
}

func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y":
		return true, true
	case "false", "0", "no", "n":
		return false, true
	}
	return false, false
}

func ParseNonNegativeInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
