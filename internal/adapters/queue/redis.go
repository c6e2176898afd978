// Package queue hands queued uploads from the HTTP server to the worker via Redis.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shopify-preorder-sync/internal/domain/model"
)

const (
	queueKey     = "preorder_upload:queue"
	jobKeyPrefix = "preorder_upload:job:"
	payloadTTL   = 24 * time.Hour
)

// Job is everything the worker needs to run an upload that was already parsed.
type Job struct {
	UploadID string              `json:"uploadId"`
	Strategy model.Strategy      `json:"strategy"`
	Rows     []model.PreorderRow `json:"rows"`
}

type Redis struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

func NewRedis(rdb *goredis.Client, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{rdb: rdb, logger: logger}
}

func jobKey(uploadID string) string {
	return jobKeyPrefix + uploadID
}

func encodeJob(job Job) ([]byte, error) {
	if job.UploadID == "" {
		return nil, errors.New("queue: upload id is required")
	}
	return json.Marshal(job)
}

func decodeJob(raw []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("queue: decode job: %w", err)
	}
	if job.UploadID == "" {
		return nil, errors.New("queue: job without upload id")
	}
	return &job, nil
}

// Enqueue stores the job payload and pushes its id in one transaction.
func (q *Redis) Enqueue(ctx context.Context, job Job) error {
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}
	_, err = q.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, jobKey(job.UploadID), payload, payloadTTL)
		pipe.RPush(ctx, queueKey, job.UploadID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", job.UploadID, err)
	}
	return nil
}

// Dequeue blocks up to timeout. It returns nil, nil when nothing arrived.
func (q *Redis) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.rdb.BLPop(ctx, timeout, queueKey).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: blpop: %w", err)
	}
	if len(res) < 2 {
		return nil, nil
	}
	uploadID := res[1]

	raw, err := q.rdb.Get(ctx, jobKey(uploadID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		q.logger.Warn("queued upload payload expired", zap.String("upload_id", uploadID))
		return nil, fmt.Errorf("queue: payload for %s is gone", uploadID)
	}
	if err != nil {
		return nil, fmt.Errorf("queue: read payload %s: %w", uploadID, err)
	}
	return decodeJob(raw)
}

// Complete drops the stored payload once the worker is done with it.
func (q *Redis) Complete(ctx context.Context, uploadID string) error {
	if err := q.rdb.Del(ctx, jobKey(uploadID)).Err(); err != nil {
		return fmt.Errorf("queue: complete %s: %w", uploadID, err)
	}
	return nil
}
