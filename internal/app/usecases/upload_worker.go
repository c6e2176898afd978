package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shopify-preorder-sync/internal/adapters/queue"
	"shopify-preorder-sync/internal/app/progress"
	"shopify-preorder-sync/internal/domain/model"
)

type UploadDequeuer interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Complete(ctx context.Context, uploadID string) error
}

type JobReader interface {
	GetJob(ctx context.Context, id string) (*model.UploadJob, error)
}

type UploadRunner interface {
	Run(ctx context.Context, job model.UploadJob, input []model.PreorderRow) (progress.Summary, error)
}

const (
	defaultPollTimeout = 5 * time.Second
	errorBackoff       = 500 * time.Millisecond
)

// UploadWorker drains the upload queue one job at a time.
type UploadWorker struct {
	queue       UploadDequeuer
	jobs        JobReader
	runner      UploadRunner
	logger      *zap.Logger
	pollTimeout time.Duration
}

func NewUploadWorker(q UploadDequeuer, jobs JobReader, runner UploadRunner, logger *zap.Logger) *UploadWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadWorker{
		queue:       q,
		jobs:        jobs,
		runner:      runner,
		logger:      logger,
		pollTimeout: defaultPollTimeout,
	}
}

// Run blocks until ctx is cancelled.
func (w *UploadWorker) Run(ctx context.Context) error {
	w.logger.Info("upload worker started", zap.Duration("poll_timeout", w.pollTimeout))
	for {
		if ctx.Err() != nil {
			w.logger.Info("upload worker stopping")
			return nil
		}
		if _, err := w.ProcessNext(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			w.logger.Error("upload worker iteration failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(errorBackoff):
			}
		}
	}
}

// ProcessNext handles at most one queued upload. It reports whether a job was
// taken off the queue.
func (w *UploadWorker) ProcessNext(ctx context.Context) (bool, error) {
	item, err := w.queue.Dequeue(ctx, w.pollTimeout)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}
	log := w.logger.With(zap.String("upload_id", item.UploadID))

	job, err := w.jobs.GetJob(ctx, item.UploadID)
	if err != nil {
		return true, fmt.Errorf("load upload %s: %w", item.UploadID, err)
	}
	if job.Status != model.JobQueued {
		log.Warn("skipping upload that is no longer queued", zap.String("status", string(job.Status)))
		w.complete(ctx, log, item.UploadID)
		return true, nil
	}
	if item.Strategy != "" {
		job.Strategy = item.Strategy
	}

	log.Info("queued upload picked up", zap.Int("rows", len(item.Rows)))
	if _, err := w.runner.Run(ctx, *job, item.Rows); err != nil {
		w.complete(ctx, log, item.UploadID)
		return true, err
	}
	w.complete(ctx, log, item.UploadID)
	return true, nil
}

func (w *UploadWorker) complete(ctx context.Context, log *zap.Logger, uploadID string) {
	if err := w.queue.Complete(ctx, uploadID); err != nil {
		log.Warn("queued upload payload cleanup failed", zap.Error(err))
	}
}
