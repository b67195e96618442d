package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/common"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/logger"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/observability"
)

const (
	maxIdempotencyKeyLen = 128
	statusWriteTimeout   = 10 * time.Second
)

// Publisher hands a job id to the queue the worker consumes.
type Publisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

// JobService runs ingestion out of band: Enqueue on the API side, Run on the
// worker side.
type JobService struct {
	repo      *Repo
	ingester  *Ingester
	publisher Publisher
	metrics   *observability.Metrics
	log       *logger.Logger
}

// NewJobService accepts a nil publisher; Enqueue then answers 503.
func NewJobService(repo *Repo, ingester *Ingester, publisher Publisher, metrics *observability.Metrics, log *logger.Logger) *JobService {
	if log == nil {
		log = logger.Nop()
	}
	return &JobService{repo: repo, ingester: ingester, publisher: publisher, metrics: metrics, log: log}
}

// Enqueue records a queued job and publishes its id. With an idempotency key
// a repeated call returns the first job and publishes nothing.
func (s *JobService) Enqueue(ctx context.Context, req IngestRequest, idempotencyKey string) (*IngestJob, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.publisher == nil {
		return nil, common.Unavailable("Async ingestion is not configured")
	}

	key := strings.TrimSpace(idempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return nil, common.Invalid("Idempotency-Key is too long")
	}
	var keyPtr *string
	if key != "" {
		keyPtr = &key
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode job payload: %w", err)
	}
	jobID, err := common.NewULID()
	if err != nil {
		return nil, err
	}

	j := &IngestJob{
		ID:             jobID,
		TenantID:       req.TenantID,
		Title:          req.Title,
		Payload:        payload,
		IdempotencyKey: keyPtr,
		Status:         JobQueued,
	}
	job, created, err := s.repo.CreateJobOrGetExisting(ctx, j)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if !created {
		return job, nil
	}

	if err := s.publisher.PublishJob(ctx, job.ID); err != nil {
		s.log.Error("publish job failed", "job_id", job.ID, "tenant_id", job.TenantID, "error", err)
		_ = s.repo.MarkJobFailed(ctx, job.ID, "enqueue failed: "+err.Error())
		return nil, common.Unavailable("Failed to enqueue ingestion job")
	}
	return job, nil
}

func (s *JobService) Get(ctx context.Context, jobID string) (*IngestJob, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, common.Invalid("job_id required")
	}
	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("job not found")
		}
		return nil, err
	}
	return j, nil
}

// Run executes one queued job. A failed ingestion is recorded on the job and
// returned, so the worker dead-letters the delivery. A run cut short by ctx
// leaves the job queued and returns the context error, so the delivery can be
// requeued.
func (s *JobService) Run(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("job %s not started: %w", jobID, err)
	}
	start := time.Now()

	_ = s.repo.UpdateJobStatusRunning(ctx, jobID)

	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		if ctx.Err() != nil {
			return s.interrupted(ctx, jobID)
		}
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if j.Status == JobSucceeded || j.Status == JobFailed {
		s.log.Info("job already finished", "job_id", jobID, "status", j.Status)
		return nil
	}

	var req IngestRequest
	if err := json.Unmarshal(j.Payload, &req); err != nil {
		return s.fail(ctx, jobID, fmt.Errorf("decode payload: %w", err))
	}

	res, err := s.ingester.Ingest(ctx, req)
	// per-chunk failures do not surface as err, so check ctx as well
	if ctx.Err() != nil {
		return s.interrupted(ctx, jobID)
	}
	if err != nil {
		return s.fail(ctx, jobID, err)
	}

	wctx, cancel := statusContext(ctx)
	defer cancel()
	if err := s.repo.MarkJobSucceeded(wctx, jobID, res.DocumentID, res.InsertedChunks); err != nil {
		return fmt.Errorf("mark job %s succeeded: %w", jobID, err)
	}
	s.metrics.ObserveJob(string(JobSucceeded))
	s.log.Info("job succeeded",
		"job_id", jobID,
		"document_id", res.DocumentID,
		"inserted", res.InsertedChunks,
		"cost", time.Since(start).String(),
	)
	return nil
}

// statusContext outlives ctx's cancellation so the job row is always updated.
func statusContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
}

func (s *JobService) interrupted(ctx context.Context, jobID string) error {
	wctx, cancel := statusContext(ctx)
	defer cancel()
	if err := s.repo.RequeueJob(wctx, jobID); err != nil {
		s.log.Error("requeue job failed", "job_id", jobID, "error", err)
	}
	s.log.Warn("job interrupted", "job_id", jobID, "error", ctx.Err())
	return fmt.Errorf("job %s interrupted: %w", jobID, ctx.Err())
}

func (s *JobService) fail(ctx context.Context, jobID string, cause error) error {
	s.metrics.ObserveJob(string(JobFailed))
	s.log.Warn("job failed", "job_id", jobID, "error", cause)
	wctx, cancel := statusContext(ctx)
	defer cancel()
	if err := s.repo.MarkJobFailed(wctx, jobID, cause.Error()); err != nil {
		return fmt.Errorf("mark job %s failed: %w", jobID, err)
	}
	return fmt.Errorf("job %s: %w", jobID, cause)
}
