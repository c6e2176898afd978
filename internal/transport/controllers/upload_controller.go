package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopify-preorder-sync/internal/adapters/mirror"
	"shopify-preorder-sync/internal/app/progress"
	"shopify-preorder-sync/internal/app/usecases"
	"shopify-preorder-sync/internal/domain/model"
)

const (
	defaultMaxUploadBytes = 10 << 20
	recentUploadsLimit    = 20
)

type UploadSubmitter interface {
	Submit(ctx context.Context, req usecases.UploadRequest) (*usecases.UploadResult, error)
}

type UploadJobs interface {
	GetJob(ctx context.Context, id string) (*model.UploadJob, error)
	ListJobs(ctx context.Context, limit int) ([]model.UploadJob, error)
	RecentFailedOutcomes(ctx context.Context, uploadID string, limit int) ([]model.UploadRowOutcome, error)
}

// UploadController serves the bulk upload and its progress views.
type UploadController struct {
	uploads  UploadSubmitter
	jobs     UploadJobs
	maxBytes int64
	logger   *zap.Logger
}

func NewUploadController(uploads UploadSubmitter, jobs UploadJobs, maxBytes int64, logger *zap.Logger) *UploadController {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadController{uploads: uploads, jobs: jobs, maxBytes: maxBytes, logger: logger}
}

// Upload handles POST /api/upload
func (uc *UploadController) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, uc.maxBytes)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "A file field named \"file\" is required", err)
		return
	}
	defer file.Close()

	res, err := uc.uploads.Submit(c.Request.Context(), usecases.UploadRequest{
		Filename: header.Filename,
		Body:     file,
		Strategy: model.Strategy(c.Query("strategy")),
		Mode:     model.Mode(c.Query("mode")),
	})
	switch {
	case errors.Is(err, usecases.ErrInvalidUpload):
		respondError(c, http.StatusBadRequest, "Invalid upload", err)
		return
	case errors.Is(err, usecases.ErrQueueUnavailable):
		respondError(c, http.StatusServiceUnavailable, "Queued uploads are not available", err)
		return
	case err != nil:
		uc.logger.Error("upload failed", zap.String("filename", header.Filename), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Upload failed", err)
		return
	}

	if res.Summary == nil {
		c.JSON(http.StatusAccepted, gin.H{
			"uploadId": res.Job.ID,
			"status":   res.Job.Status,
			"progress": res.Job.Progress,
		})
		return
	}
	c.JSON(http.StatusOK, res.Summary)
}

// Get handles GET /api/uploads/:uploadId
func (uc *UploadController) Get(c *gin.Context) {
	id := c.Param("uploadId")
	job, err := uc.jobs.GetJob(c.Request.Context(), id)
	if errors.Is(err, mirror.ErrNotFound) {
		respondError(c, http.StatusNotFound, "Upload not found", nil)
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load upload", err)
		return
	}

	failures, err := uc.jobs.RecentFailedOutcomes(c.Request.Context(), id, progress.PollErrorLimit)
	if err != nil {
		uc.logger.Warn("recent failures lookup failed", zap.String("upload_id", id), zap.Error(err))
	}
	c.JSON(http.StatusOK, progress.NewPollView(*job, failures))
}

// List handles GET /api/uploads
func (uc *UploadController) List(c *gin.Context) {
	jobs, err := uc.jobs.ListJobs(c.Request.Context(), recentUploadsLimit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to list uploads", err)
		return
	}
	if jobs == nil {
		jobs = []model.UploadJob{}
	}
	c.JSON(http.StatusOK, gin.H{"uploads": jobs})
}
