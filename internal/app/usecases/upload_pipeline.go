package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shopify-preorder-sync/internal/adapters/queue"
	"shopify-preorder-sync/internal/adapters/shopify"
	"shopify-preorder-sync/internal/app/executor"
	"shopify-preorder-sync/internal/app/planner"
	"shopify-preorder-sync/internal/app/progress"
	"shopify-preorder-sync/internal/app/resolver"
	"shopify-preorder-sync/internal/app/rows"
	"shopify-preorder-sync/internal/domain/model"
	"shopify-preorder-sync/internal/logging"
	"shopify-preorder-sync/internal/metrics"
)

// ErrInvalidUpload marks a file that could not be read as a table at all.
var ErrInvalidUpload = errors.New("invalid upload")

// ErrQueueUnavailable is returned for queued uploads when no queue is wired.
var ErrQueueUnavailable = errors.New("upload queue is not configured")

type JobStore interface {
	CreateJob(ctx context.Context, job model.UploadJob) error
	MarkJobStarted(ctx context.Context, id string, at time.Time) error
	FinishJob(ctx context.Context, id string, status model.JobStatus, results json.RawMessage, errMsg string, at time.Time) error
	LatestAttempt(ctx context.Context, uploadID string) (int, error)
}

type VariantResolver interface {
	Resolve(ctx context.Context, strategy model.Strategy, rows []model.PreorderRow) ([]resolver.Resolution, error)
}

type MutationExecutor interface {
	Execute(ctx context.Context, plan planner.Plan, onRow func(executor.RowResult)) executor.Report
}

type OutcomeWriter interface {
	RecordRow(ctx context.Context, o model.UploadRowOutcome, variant *model.VariantUpdate) error
	RefreshProgress(ctx context.Context, uploadID string, attempt int) (model.JobProgress, error)
}

type UploadQueue interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

type UploadRequest struct {
	Filename string
	Body     io.Reader
	Strategy model.Strategy
	Mode     model.Mode
}

// UploadResult carries the summary for sync uploads; queued uploads only have Job.
type UploadResult struct {
	Job     model.UploadJob
	Summary *progress.Summary
}

type UploadPipeline struct {
	jobs            JobStore
	resolver        VariantResolver
	executor        MutationExecutor
	writer          OutcomeWriter
	queue           UploadQueue
	notifier        logging.Notifier
	logger          *zap.Logger
	metrics         *metrics.Metrics
	defaultStrategy model.Strategy
	now             func() time.Time
	newID           func() string
}

type UploadPipelineDeps struct {
	Jobs            JobStore
	Resolver        VariantResolver
	Executor        MutationExecutor
	Writer          OutcomeWriter
	Queue           UploadQueue
	Notifier        logging.Notifier
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
	DefaultStrategy model.Strategy
}

func NewUploadPipeline(deps UploadPipelineDeps) *UploadPipeline {
	p := &UploadPipeline{
		jobs:            deps.Jobs,
		resolver:        deps.Resolver,
		executor:        deps.Executor,
		writer:          deps.Writer,
		queue:           deps.Queue,
		notifier:        deps.Notifier,
		logger:          deps.Logger,
		metrics:         deps.Metrics,
		defaultStrategy: deps.DefaultStrategy,
		now:             func() time.Time { return time.Now().UTC() },
		newID:           uuid.NewString,
	}
	if p.notifier == nil {
		p.notifier = logging.Nop{}
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.metrics == nil {
		p.metrics = metrics.Nop()
	}
	if p.defaultStrategy == "" {
		p.defaultStrategy = model.StrategySKU
	}
	return p
}

// Submit parses the file, creates the job and either runs it to completion or
// hands it to the queue.
func (p *UploadPipeline) Submit(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	strategy := req.Strategy
	if strategy == "" {
		strategy = p.defaultStrategy
	}
	if strategy != model.StrategyHandle && strategy != model.StrategySKU {
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidUpload, strategy)
	}
	mode := req.Mode
	if mode == "" {
		mode = model.ModeSync
	}
	if mode != model.ModeSync && mode != model.ModeQueued {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidUpload, mode)
	}
	if mode == model.ModeQueued && p.queue == nil {
		return nil, ErrQueueUnavailable
	}

	parsed, err := rows.Parse(req.Filename, req.Body, rows.Options{RequireHandle: strategy == model.StrategyHandle})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}

	job := model.UploadJob{
		ID:          p.newID(),
		Filename:    req.Filename,
		Strategy:    strategy,
		Mode:        mode,
		Status:      model.JobPreparing,
		TotalRows:   parsed.TotalRows,
		SkippedRows: parsed.SkippedRows,
		CreatedAt:   p.now(),
	}
	if mode == model.ModeQueued {
		job.Status = model.JobQueued
	}
	if err := p.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create upload job: %w", err)
	}
	p.logger.Info("upload accepted",
		zap.String("upload_id", job.ID),
		zap.String("filename", job.Filename),
		zap.String("strategy", string(strategy)),
		zap.String("mode", string(mode)),
		zap.Int("rows", parsed.TotalRows),
		zap.Int("skipped", parsed.SkippedRows),
	)

	if mode == model.ModeQueued {
		if err := p.queue.Enqueue(ctx, queue.Job{UploadID: job.ID, Strategy: strategy, Rows: parsed.Rows}); err != nil {
			p.fail(context.WithoutCancel(ctx), job, err)
			return nil, fmt.Errorf("enqueue upload: %w", err)
		}
		return &UploadResult{Job: job}, nil
	}

	// A sync job outlives the request that submitted it.
	summary, err := p.Run(context.WithoutCancel(ctx), job, parsed.Rows)
	if err != nil {
		return nil, err
	}
	job.Status = model.JobDone
	return &UploadResult{Job: job, Summary: &summary}, nil
}

// Run processes an accepted job. Row failures never abort it; only a job that
// cannot be started or planned ends in the error status. Outcome rows and the
// terminal status are written even after ctx is cancelled.
func (p *UploadPipeline) Run(ctx context.Context, job model.UploadJob, input []model.PreorderRow) (progress.Summary, error) {
	started := p.now()
	log := p.logger.With(zap.String("upload_id", job.ID), zap.String("strategy", string(job.Strategy)))
	storeCtx := context.WithoutCancel(ctx)

	attempt, err := p.jobs.LatestAttempt(storeCtx, job.ID)
	if err != nil {
		return p.abort(storeCtx, job, started, err)
	}
	attempt++
	if err := p.jobs.MarkJobStarted(storeCtx, job.ID, started); err != nil {
		return p.abort(storeCtx, job, started, err)
	}
	p.notifier.Log(fmt.Sprintf("Preorder upload %s started: %d rows (%s)", job.ID, len(input), job.Strategy))

	tracker := progress.NewTracker(job.ID, len(input), job.SkippedRows)
	record := func(o model.UploadRowOutcome, variant *model.VariantUpdate) {
		o.UploadID = job.ID
		o.Attempt = attempt
		tracker.Record(o)
		p.metrics.RowOutcomes.WithLabelValues(string(o.Status)).Inc()
		if err := p.writer.RecordRow(storeCtx, o, variant); err != nil {
			log.Warn("row mirror write failed", zap.Int("row", o.RowIndex), zap.Error(err))
		}
	}

	resolutions, err := p.resolver.Resolve(ctx, job.Strategy, input)
	if err != nil {
		return p.abort(storeCtx, job, started, err)
	}

	type pending struct {
		res    resolver.Resolution
		change planner.RowChange
	}
	byRow := make(map[int]pending, len(resolutions))
	changes := make([]planner.RowChange, 0, len(resolutions))
	for _, res := range resolutions {
		if !res.Resolved() {
			o := model.UploadRowOutcome{
				RowIndex:  res.Row.Index,
				Handle:    res.Row.Handle,
				SKU:       res.Row.SKU,
				Status:    res.Status,
				ProductID: res.ProductID,
			}
			if res.Err != nil {
				o.Error = errorDetail(res.Err)
			}
			record(o, nil)
			continue
		}
		change := planner.FromRow(res.Row, res.Variant.VariantID)
		byRow[res.Row.Index] = pending{res: res, change: change}
		changes = append(changes, change)
	}

	plan, err := planner.Build(changes, shopify.MetafieldsSetBatchSize)
	if err != nil {
		return p.abort(storeCtx, job, started, err)
	}
	log.Info("upload planned",
		zap.Int("resolved", len(changes)),
		zap.Int("batches", len(plan.Batches)),
		zap.Int("deletions", len(plan.Deletions)),
	)

	lastBatch := 0
	report := p.executor.Execute(ctx, plan, func(r executor.RowResult) {
		item := byRow[r.RowIndex]
		values := fieldValues(item.change)
		o := model.UploadRowOutcome{
			RowIndex:   r.RowIndex,
			Handle:     item.res.Row.Handle,
			SKU:        item.res.Row.SKU,
			Status:     statusFor(r.Err),
			Metafields: values,
			ProductID:  item.res.Variant.ProductID,
			VariantID:  item.res.Variant.VariantID,
		}
		var variant *model.VariantUpdate
		if r.Err != nil {
			o.Error = errorDetail(r.Err)
		} else {
			u := variantUpdate(*item.res.Variant, values)
			variant = &u
		}
		record(o, variant)

		if r.Batch != lastBatch {
			if lastBatch != 0 {
				if _, err := p.writer.RefreshProgress(storeCtx, job.ID, attempt); err != nil {
					log.Warn("progress refresh failed", zap.Error(err))
				}
			}
			lastBatch = r.Batch
		}
	})

	policyFailures := make([]progress.PolicyFailure, 0, len(report.PolicyFailures))
	for _, f := range report.PolicyFailures {
		policyFailures = append(policyFailures, progress.PolicyFailure{
			Row:       f.RowIndex,
			SKU:       f.SKU,
			VariantID: f.VariantID,
			Policy:    f.Policy,
			Message:   f.Err.Error(),
		})
	}
	tracker.RecordPolicy(report.PolicyUpdated, policyFailures)

	if _, err := p.writer.RefreshProgress(storeCtx, job.ID, attempt); err != nil {
		log.Warn("progress refresh failed", zap.Error(err))
	}

	summary := tracker.Summary()
	results, err := json.Marshal(summary)
	if err != nil {
		return p.abort(storeCtx, job, started, err)
	}
	finished := p.now()
	if err := p.jobs.FinishJob(storeCtx, job.ID, model.JobDone, results, "", finished); err != nil {
		log.Error("finish upload failed", zap.Error(err))
	}
	p.metrics.UploadDuration.WithLabelValues(string(job.Strategy), string(model.JobDone)).Observe(finished.Sub(started).Seconds())

	log.Info("upload finished",
		zap.Int("success", summary.SuccessCount),
		zap.Int("not_found_product", len(summary.NotFoundProduct)),
		zap.Int("not_found_variant", len(summary.NotFoundVariant)),
		zap.Int("errors", len(summary.Errors)),
		zap.Int("policy_updated", summary.PolicyUpdated),
		zap.Int("policy_failed", len(summary.PolicyFailures)),
		zap.Duration("took", finished.Sub(started)),
	)
	message := fmt.Sprintf(
		"Preorder upload %s done rows=%d success=%d no_product=%d no_variant=%d errors=%d policy_failed=%d",
		job.ID, summary.TotalRows, summary.SuccessCount, len(summary.NotFoundProduct),
		len(summary.NotFoundVariant), len(summary.Errors), len(summary.PolicyFailures),
	)
	if len(summary.Errors) > 0 || len(summary.PolicyFailures) > 0 {
		p.notifier.LogWarning(message)
	} else {
		p.notifier.LogSuccess(message)
	}
	return summary, nil
}

func (p *UploadPipeline) abort(ctx context.Context, job model.UploadJob, started time.Time, cause error) (progress.Summary, error) {
	p.fail(ctx, job, cause)
	p.metrics.UploadDuration.WithLabelValues(string(job.Strategy), string(model.JobError)).Observe(p.now().Sub(started).Seconds())
	return progress.Summary{}, fmt.Errorf("upload %s: %w", job.ID, cause)
}

func (p *UploadPipeline) fail(ctx context.Context, job model.UploadJob, cause error) {
	p.logger.Error("upload failed", zap.String("upload_id", job.ID), zap.Error(cause))
	if err := p.jobs.FinishJob(ctx, job.ID, model.JobError, nil, cause.Error(), p.now()); err != nil {
		p.logger.Error("mark upload failed", zap.String("upload_id", job.ID), zap.Error(err))
	}
	p.notifier.LogError(fmt.Sprintf("Preorder upload %s failed: %v", job.ID, cause))
}

// statusFor maps a settled row error onto the row taxonomy.
func statusFor(err error) model.RowStatus {
	switch {
	case err == nil:
		return model.RowUpdated
	case shopify.IsRemoteError(err):
		return model.RowError
	default:
		return model.RowException
	}
}

func errorDetail(err error) *model.RowErrorDetail {
	kind := "transport"
	if shopify.IsRemoteError(err) {
		kind = "remote"
	}
	return &model.RowErrorDetail{
		Message: err.Error(),
		Fields:  shopify.UserErrorFields(err),
		Kind:    kind,
	}
}

func fieldValues(change planner.RowChange) map[string]string {
	values := make(map[string]string, len(change.Fields))
	for _, f := range change.Fields {
		if f.Value != nil {
			values[f.Key] = *f.Value
		}
	}
	return values
}

func variantUpdate(v model.ResolvedVariant, values map[string]string) model.VariantUpdate {
	u := model.VariantUpdate{
		VariantID:       v.VariantID,
		ProductID:       v.ProductID,
		Handle:          v.Handle,
		SKU:             v.SKU,
		InventoryItemID: v.InventoryItemID,
	}
	if raw, ok := values[planner.KeyIsPreorder]; ok {
		if b, err := strconv.ParseBool(raw); err == nil {
			u.IsPreorder = &b
		}
	}
	if raw, ok := values[planner.KeyPreorderLimit]; ok {
		u.PreorderLimit = &raw
	}
	if raw, ok := values[planner.KeyPreorderMessage]; ok {
		u.PreorderMessage = &raw
	}
	return u
}
