package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"shopify-preorder-sync/internal/domain/model"
)

const jobColumns = `id, filename, strategy, mode, status, total_rows, skipped_rows,
	processed, successful, failed, results, error, created_at, started_at, finished_at`

func (s *Store) CreateJob(ctx context.Context, job model.UploadJob) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO uploads (id, filename, strategy, mode, status, total_rows, skipped_rows, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Filename, string(job.Strategy), string(job.Mode), string(job.Status),
		job.TotalRows, job.SkippedRows, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("mirror: create job %s: %w", job.ID, err)
	}
	return nil
}

func (s *Store) MarkJobStarted(ctx context.Context, id string, at time.Time) error {
	return s.execJob(ctx, id, `UPDATE uploads SET status = ?, started_at = ? WHERE id = ?`,
		string(model.JobProcessing), at, id)
}

func (s *Store) UpdateJobProgress(ctx context.Context, id string, p model.JobProgress) error {
	return s.execJob(ctx, id, `UPDATE uploads SET processed = ?, successful = ?, failed = ? WHERE id = ?`,
		p.Processed, p.Successful, p.Failed, id)
}

// FinishJob stores the terminal status. results may be nil.
func (s *Store) FinishJob(ctx context.Context, id string, status model.JobStatus, results json.RawMessage, errMsg string, at time.Time) error {
	var res any
	if len(results) > 0 {
		res = []byte(results)
	}
	return s.execJob(ctx, id, `UPDATE uploads SET status = ?, results = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), res, nullString(errMsg), at, id)
}

func (s *Store) execJob(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mirror: update job %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("mirror: update job %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*model.UploadJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM uploads WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mirror: get job %s: %w", id, err)
	}
	return job, nil
}

// ListJobs returns the newest jobs first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]model.UploadJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM uploads ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("mirror: list jobs: %w", err)
	}
	defer rows.Close()

	var out []model.UploadJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("mirror: list jobs: %w", err)
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*model.UploadJob, error) {
	var (
		job        model.UploadJob
		strategy   string
		mode       string
		status     string
		results    []byte
		errMsg     sql.NullString
		startedAt  sql.NullTime
		finishedAt sql.NullTime
	)
	if err := row.Scan(
		&job.ID, &job.Filename, &strategy, &mode, &status, &job.TotalRows, &job.SkippedRows,
		&job.Progress.Processed, &job.Progress.Successful, &job.Progress.Failed,
		&results, &errMsg, &job.CreatedAt, &startedAt, &finishedAt,
	); err != nil {
		return nil, err
	}
	job.Strategy = model.Strategy(strategy)
	job.Mode = model.Mode(mode)
	job.Status = model.JobStatus(status)
	if len(results) > 0 {
		job.Results = json.RawMessage(results)
	}
	job.Error = errMsg.String
	job.StartedAt = timePtr(startedAt)
	job.FinishedAt = timePtr(finishedAt)
	return &job, nil
}

// LatestAttempt is the highest attempt number recorded for the job, 0 if none.
func (s *Store) LatestAttempt(ctx context.Context, uploadID string) (int, error) {
	var attempt int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(attempt), 0) FROM upload_rows WHERE upload_id = ?`, uploadID,
	).Scan(&attempt)
	if err != nil {
		return 0, fmt.Errorf("mirror: latest attempt %s: %w", uploadID, err)
	}
	return attempt, nil
}

// AppendRowOutcome inserts one immutable outcome record.
func (s *Store) AppendRowOutcome(ctx context.Context, o model.UploadRowOutcome) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	if o.Attempt <= 0 {
		o.Attempt = 1
	}

	var errJSON, mfJSON any
	if o.Error != nil {
		b, err := json.Marshal(o.Error)
		if err != nil {
			return fmt.Errorf("mirror: encode row error: %w", err)
		}
		errJSON = b
	}
	if len(o.Metafields) > 0 {
		b, err := json.Marshal(o.Metafields)
		if err != nil {
			return fmt.Errorf("mirror: encode row metafields: %w", err)
		}
		mfJSON = b
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO upload_rows (upload_id, row_index, attempt, handle, sku, status, error, metafields, product_id, variant_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.UploadID, o.RowIndex, o.Attempt, nullString(o.Handle), o.SKU, string(o.Status),
		errJSON, mfJSON, nullString(o.ProductID), nullString(o.VariantID), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("mirror: append outcome upload=%s row=%d: %w", o.UploadID, o.RowIndex, err)
	}
	return nil
}

// CountRowOutcomes tallies one attempt's outcomes by status.
func (s *Store) CountRowOutcomes(ctx context.Context, uploadID string, attempt int) (model.OutcomeCounts, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT status, COUNT(*) FROM upload_rows
WHERE upload_id = ? AND attempt = ?
GROUP BY status`, uploadID, attempt)
	if err != nil {
		return nil, fmt.Errorf("mirror: count outcomes %s: %w", uploadID, err)
	}
	defer rows.Close()

	counts := make(model.OutcomeCounts)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("mirror: count outcomes %s: %w", uploadID, err)
		}
		counts[model.RowStatus(status)] = n
	}
	return counts, rows.Err()
}

var failedStatuses = []model.RowStatus{model.RowError, model.RowException, model.RowNoVariant, model.RowNoProduct}

// RecentFailedOutcomes returns the newest failing outcomes of a job.
func (s *Store) RecentFailedOutcomes(ctx context.Context, uploadID string, limit int) ([]model.UploadRowOutcome, error) {
	args := []any{uploadID}
	marks := make([]string, 0, len(failedStatuses))
	for _, st := range failedStatuses {
		marks = append(marks, "?")
		args = append(args, string(st))
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
SELECT id, upload_id, row_index, attempt, handle, sku, status, error, metafields, product_id, variant_id, created_at
FROM upload_rows
WHERE upload_id = ? AND status IN (`+strings.Join(marks, ", ")+`)
ORDER BY created_at DESC, id DESC
LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("mirror: failed outcomes %s: %w", uploadID, err)
	}
	defer rows.Close()

	var out []model.UploadRowOutcome
	for rows.Next() {
		var (
			o         model.UploadRowOutcome
			handle    sql.NullString
			status    string
			errJSON   []byte
			mfJSON    []byte
			productID sql.NullString
			variantID sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.UploadID, &o.RowIndex, &o.Attempt, &handle, &o.SKU, &status,
			&errJSON, &mfJSON, &productID, &variantID, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("mirror: failed outcomes %s: %w", uploadID, err)
		}
		o.Handle = handle.String
		o.Status = model.RowStatus(status)
		o.ProductID = productID.String
		o.VariantID = variantID.String
		if len(errJSON) > 0 {
			var detail model.RowErrorDetail
			if err := json.Unmarshal(errJSON, &detail); err == nil {
				o.Error = &detail
			}
		}
		if len(mfJSON) > 0 {
			_ = json.Unmarshal(mfJSON, &o.Metafields)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
