package rag

import (
	"context"
	"errors"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RetrievedChunk is a DocChunk as returned to callers of the answer path.
type RetrievedChunk struct {
	ID         uint64         `json:"id"`
	DocumentID string         `json:"document_id"`
	ChunkIndex int            `json:"chunk_index"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Similarity float64        `json:"similarity"`
}

func newRetrieved(c DocChunk, similarity float64) RetrievedChunk {
	return RetrievedChunk{
		ID:         c.ID,
		DocumentID: c.DocumentID,
		ChunkIndex: c.ChunkIndex,
		Content:    c.Content,
		Metadata:   c.Metadata,
		Similarity: similarity,
	}
}

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateDocument(ctx context.Context, d *Document) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *Repo) InsertChunk(ctx context.Context, c *DocChunk) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// ListChunks returns a document's chunks in chunk_index order.
func (r *Repo) ListChunks(ctx context.Context, documentID string) ([]DocChunk, error) {
	var out []DocChunk
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("chunk_index ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SearchChunks returns the k chunks of tenantID nearest to query. Postgres
// ranks with pgvector's cosine distance; other drivers rank in process.
func (r *Repo) SearchChunks(ctx context.Context, tenantID string, query []float32, k int) ([]RetrievedChunk, error) {
	if r.db.Dialector.Name() == "postgres" {
		return r.searchPG(ctx, tenantID, query, k)
	}

	var chunks []DocChunk
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("id ASC").
		Find(&chunks).Error; err != nil {
		return nil, err
	}
	return rankBySimilarity(query, chunks, k), nil
}

type pgHit struct {
	DocChunk
	Distance float64
}

func (r *Repo) searchPG(ctx context.Context, tenantID string, query []float32, k int) ([]RetrievedChunk, error) {
	vec := pgvector.NewVector(query)
	var hits []pgHit
	if err := r.db.WithContext(ctx).
		Model(&DocChunk{}).
		Select("doc_chunks.*, embedding <=> ? AS distance", vec).
		Where("tenant_id = ?", tenantID).
		Clauses(clause.OrderBy{Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []any{vec}}}).
		Limit(k).
		Scan(&hits).Error; err != nil {
		return nil, err
	}

	out := make([]RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, newRetrieved(h.DocChunk, 1-h.Distance))
	}
	return out, nil
}

// Job CRUD
func (r *Repo) CreateJob(ctx context.Context, job *IngestJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*IngestJob, error) {
	var j IngestJob
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&IngestJob{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

// RequeueJob hands a running job back to the queue after an interrupted run.
func (r *Repo) RequeueJob(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&IngestJob{}).
		Where("id = ? AND status = ?", id, JobRunning).
		Update("status", JobQueued).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id, documentID string, inserted int) error {
	return r.db.WithContext(ctx).Model(&IngestJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          JobSucceeded,
			"document_id":     documentID,
			"inserted_chunks": inserted,
			"error":           nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&IngestJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobFailed,
			"error":  errMsg,
		}).Error
}

func (r *Repo) GetJobByTenantAndIdempotencyKey(ctx context.Context, tenantID, key string) (*IngestJob, error) {
	var job IngestJob
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJobOrGetExisting creates job, unless (tenant_id, idempotency_key)
// already exists, in which case the existing job is returned instead.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *IngestJob) (*IngestJob, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByTenantAndIdempotencyKey(ctx, job.TenantID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}
