package rag

import (
	"time"

	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// IngestJob tracks one asynchronous ingestion. Payload holds the original
// IngestRequest so the worker can replay it.
type IngestJob struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	TenantID string `gorm:"type:varchar(36);not null;index:uniq_tenant_idempo,unique,priority:1" json:"tenant_id"`
	Title    string `gorm:"type:varchar(512)" json:"title"`

	Payload datatypes.JSON `gorm:"not null" json:"-"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_tenant_idempo,unique,priority:2" json:"idempotency_key,omitempty"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	DocumentID     *string `gorm:"type:varchar(36)" json:"document_id"`
	InsertedChunks int     `json:"inserted_chunks"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (IngestJob) TableName() string { return "rag_ingest_jobs" }
