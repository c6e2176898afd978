package model

// PreorderRow is one normalized spreadsheet row. Nil fields were absent or unparsable.
type PreorderRow struct {
	Index           int
	Line            int
	SKU             string
	Handle          string
	IsPreorder      *bool
	PreorderLimit   *int
	PreorderMessage *string
}
