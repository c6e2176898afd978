package model

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobPreparing  JobStatus = "preparing"
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobError      JobStatus = "error"
)

type RowStatus string

const (
	RowUpdated   RowStatus = "updated"
	RowNoProduct RowStatus = "no_product"
	RowNoVariant RowStatus = "no_variant"
	RowError     RowStatus = "error"
	RowException RowStatus = "exception"
)

// Failed reports whether the status counts against the job.
func (s RowStatus) Failed() bool {
	switch s {
	case RowError, RowException, RowNoVariant, RowNoProduct:
		return true
	}
	return false
}

type Strategy string

const (
	StrategyHandle Strategy = "handle"
	StrategySKU    Strategy = "sku"
)

type Mode string

const (
	ModeSync   Mode = "sync"
	ModeQueued Mode = "queued"
)

type JobProgress struct {
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// UploadJob is one bulk upload attempt.
type UploadJob struct {
	ID          string          `json:"uploadId"`
	Filename    string          `json:"filename"`
	Strategy    Strategy        `json:"strategy"`
	Mode        Mode            `json:"mode"`
	Status      JobStatus       `json:"status"`
	TotalRows   int             `json:"totalRows"`
	SkippedRows int             `json:"skippedRows"`
	Progress    JobProgress     `json:"progress"`
	Results     json.RawMessage `json:"results,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	FinishedAt  *time.Time      `json:"finishedAt,omitempty"`
}

// RowErrorDetail is the structured error payload stored with a failed outcome.
type RowErrorDetail struct {
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
	Kind    string   `json:"kind,omitempty"`
}

// UploadRowOutcome is append-only. A retry writes a new record with a higher Attempt.
type UploadRowOutcome struct {
	ID         int64             `json:"id,omitempty"`
	UploadID   string            `json:"uploadId"`
	RowIndex   int               `json:"rowIndex"`
	Attempt    int               `json:"attempt"`
	Handle     string            `json:"handle,omitempty"`
	SKU        string            `json:"sku"`
	Status     RowStatus         `json:"status"`
	Error      *RowErrorDetail   `json:"error,omitempty"`
	Metafields map[string]string `json:"metafields,omitempty"`
	ProductID  string            `json:"productId,omitempty"`
	VariantID  string            `json:"variantId,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// OutcomeCounts is the per-status tally of one job's outcome rows.
type OutcomeCounts map[RowStatus]int
