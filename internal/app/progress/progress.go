// Package progress turns row outcomes into job counters and the upload summary.
package progress

import (
	"sort"
	"sync"

	"shopify-preorder-sync/internal/domain/model"
)

// PollErrorLimit bounds the failing outcomes shown by the progress endpoint.
const PollErrorLimit = 10

type RowRef struct {
	Row    int    `json:"row"`
	SKU    string `json:"sku"`
	Handle string `json:"handle,omitempty"`
}

type RowFailure struct {
	Row     int             `json:"row"`
	SKU     string          `json:"sku"`
	Handle  string          `json:"handle,omitempty"`
	Status  model.RowStatus `json:"status"`
	Message string          `json:"message"`
	Fields  []string        `json:"fields,omitempty"`
}

type PolicyFailure struct {
	Row       int    `json:"row"`
	SKU       string `json:"sku"`
	VariantID string `json:"variantId"`
	Policy    string `json:"policy"`
	Message   string `json:"message"`
}

// Summary is the upload response body. Every emitted row lands in exactly one
// of SuccessCount, NotFoundProduct, NotFoundVariant and Errors.
type Summary struct {
	UploadID        string          `json:"uploadId"`
	TotalRows       int             `json:"totalRows"`
	SkippedRows     int             `json:"skippedRows"`
	SuccessCount    int             `json:"successCount"`
	NotFoundProduct []RowRef        `json:"notFoundProduct"`
	NotFoundVariant []RowRef        `json:"notFoundVariant"`
	Errors          []RowFailure    `json:"errors"`
	Exceptions      int             `json:"exceptions"`
	PolicyUpdated   int             `json:"policyUpdated"`
	PolicyFailures  []PolicyFailure `json:"policyFailures,omitempty"`
}

// Tracker accumulates outcomes for one job. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	summary Summary
}

func NewTracker(uploadID string, totalRows, skippedRows int) *Tracker {
	return &Tracker{summary: Summary{
		UploadID:        uploadID,
		TotalRows:       totalRows,
		SkippedRows:     skippedRows,
		NotFoundProduct: []RowRef{},
		NotFoundVariant: []RowRef{},
		Errors:          []RowFailure{},
	}}
}

func (t *Tracker) Record(o model.UploadRowOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ref := RowRef{Row: o.RowIndex, SKU: o.SKU, Handle: o.Handle}
	switch o.Status {
	case model.RowUpdated:
		t.summary.SuccessCount++
	case model.RowNoProduct:
		t.summary.NotFoundProduct = append(t.summary.NotFoundProduct, ref)
	case model.RowNoVariant:
		t.summary.NotFoundVariant = append(t.summary.NotFoundVariant, ref)
	default:
		if o.Status == model.RowException {
			t.summary.Exceptions++
		}
		failure := RowFailure{Row: o.RowIndex, SKU: o.SKU, Handle: o.Handle, Status: o.Status}
		if o.Error != nil {
			failure.Message = o.Error.Message
			failure.Fields = o.Error.Fields
		}
		t.summary.Errors = append(t.summary.Errors, failure)
	}
}

func (t *Tracker) RecordPolicy(updated int, failures []PolicyFailure) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.PolicyUpdated += updated
	t.summary.PolicyFailures = append(t.summary.PolicyFailures, failures...)
}

// Summary returns a copy with every list sorted by row.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.summary
	s.NotFoundProduct = sortedRefs(s.NotFoundProduct)
	s.NotFoundVariant = sortedRefs(s.NotFoundVariant)
	s.Errors = append([]RowFailure{}, s.Errors...)
	sort.SliceStable(s.Errors, func(i, j int) bool { return s.Errors[i].Row < s.Errors[j].Row })
	s.PolicyFailures = append([]PolicyFailure(nil), s.PolicyFailures...)
	return s
}

func (t *Tracker) Progress() model.JobProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	failed := len(t.summary.NotFoundProduct) + len(t.summary.NotFoundVariant) + len(t.summary.Errors)
	return model.JobProgress{
		Processed:  t.summary.SuccessCount + failed,
		Successful: t.summary.SuccessCount,
		Failed:     failed,
	}
}

func sortedRefs(in []RowRef) []RowRef {
	out := append([]RowRef{}, in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Row < out[j].Row })
	return out
}

// FromCounts derives job counters from a per-status tally.
func FromCounts(counts model.OutcomeCounts) model.JobProgress {
	var p model.JobProgress
	for status, n := range counts {
		p.Processed += n
		switch {
		case status == model.RowUpdated:
			p.Successful += n
		case status.Failed():
			p.Failed += n
		}
	}
	return p
}

// PollView is what the progress endpoint returns for one job.
type PollView struct {
	model.UploadJob
	RecentErrors []model.UploadRowOutcome `json:"recentErrors"`
}

func NewPollView(job model.UploadJob, failures []model.UploadRowOutcome) PollView {
	if len(failures) > PollErrorLimit {
		failures = failures[:PollErrorLimit]
	}
	if failures == nil {
		failures = []model.UploadRowOutcome{}
	}
	return PollView{UploadJob: job, RecentErrors: failures}
}
