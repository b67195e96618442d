package rag

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// EmbeddingDims matches text-embedding-3-small.
const EmbeddingDims = 1536

type Document struct {
	ID        string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID  string            `gorm:"type:varchar(36);index;not null" json:"tenant_id"`
	Title     string            `gorm:"type:varchar(512)" json:"title"`
	Source    string            `gorm:"type:varchar(255)" json:"source"`
	SourceID  string            `gorm:"type:varchar(255)" json:"source_id"`
	Metadata  datatypes.JSONMap `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

func (Document) TableName() string { return "documents" }

func (d *Document) BeforeCreate(*gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// DocChunk is one embedded window of a document. ChunkIndex counts stored
// chunks from 0; Window is the position of the text in the source.
type DocChunk struct {
	ID         uint64            `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID   string            `gorm:"type:varchar(36);not null;index:idx_chunk_tenant_doc,priority:1" json:"tenant_id"`
	DocumentID string            `gorm:"type:varchar(36);not null;index:idx_chunk_tenant_doc,priority:2;uniqueIndex:uniq_chunk_doc_idx,priority:1" json:"document_id"`
	ChunkIndex int               `gorm:"not null;uniqueIndex:uniq_chunk_doc_idx,priority:2" json:"chunk_index"`
	Window     int               `gorm:"not null" json:"window"`
	Content    string            `gorm:"type:text;not null" json:"content"`
	Tokens     int               `gorm:"not null" json:"tokens"`
	Metadata   datatypes.JSONMap `json:"metadata"`
	Embedding  Embedding         `json:"-"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (DocChunk) TableName() string { return "doc_chunks" }

// Embedding stores a pgvector column on postgres and the vector's text form
// elsewhere, so the same model migrates on every supported driver.
type Embedding struct {
	pgvector.Vector
}

func NewEmbedding(v []float32) Embedding {
	return Embedding{Vector: pgvector.NewVector(v)}
}

func (Embedding) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "vector(1536)"
	case "mysql":
		return "longtext"
	default:
		return "text"
	}
}

// Models lists the tables owned by this package, for migrations.
func Models() []any {
	return []any{&Document{}, &DocChunk{}, &IngestJob{}}
}
