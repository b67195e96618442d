package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/ai"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/common"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/logger"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/observability"
)

const errMissingIngestInput = "Missing tenantId or content/storagePath"

type IngestRequest struct {
	TenantID    string         `json:"tenantId"`
	Title       string         `json:"title"`
	Source      string         `json:"source"`
	SourceID    string         `json:"sourceId"`
	Content     string         `json:"content"`
	StoragePath string         `json:"storagePath"`
	Metadata    map[string]any `json:"metadata"`
}

// Validate reports the same 400 for a missing tenant and for missing text.
func (r IngestRequest) Validate() error {
	if strings.TrimSpace(r.TenantID) == "" || (r.Content == "" && strings.TrimSpace(r.StoragePath) == "") {
		return common.Invalid(errMissingIngestInput)
	}
	return nil
}

type IngestResult struct {
	DocumentID     string `json:"document_id"`
	InsertedChunks int    `json:"inserted_chunks"`

	// Failed lists windows that were skipped; it is logged, not returned.
	Failed []ChunkFailure `json:"-"`
}

type ChunkFailure struct {
	Window int
	Stage  string // embed | insert
	Err    error
}

// outcome accumulates per-chunk results for one ingestion.
type outcome struct {
	inserted int
	failed   []ChunkFailure
}

func (o *outcome) ok() { o.inserted++ }

func (o *outcome) fail(window int, stage string, err error) {
	o.failed = append(o.failed, ChunkFailure{Window: window, Stage: stage, Err: err})
}

type Ingester struct {
	repo     *Repo
	embedder ai.Embedder
	source   ContentSource
	metrics  *observability.Metrics
	log      *logger.Logger

	ChunkSize    int
	ChunkOverlap int
}

// NewIngester wires the write path. embedder must be the one Answerer uses;
// source may be nil, in which case storagePath requests are rejected.
func NewIngester(repo *Repo, embedder ai.Embedder, source ContentSource, metrics *observability.Metrics, log *logger.Logger) *Ingester {
	if log == nil {
		log = logger.Nop()
	}
	return &Ingester{
		repo:         repo,
		embedder:     embedder,
		source:       source,
		metrics:      metrics,
		log:          log,
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
	}
}

// Ingest stores one document and as many of its chunks as can be embedded
// and inserted. Chunk failures are skipped, never retried; the result counts
// only stored chunks.
func (i *Ingester) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if i.embedder == nil {
		return nil, common.Upstream(errors.New("Missing OPENAI_API_KEY"))
	}

	content, err := i.resolveContent(ctx, req)
	if err != nil {
		return nil, err
	}

	meta := req.Metadata
	if meta == nil {
		meta = map[string]any{}
	}

	// 1) chunk
	windows := Chunk(content, i.ChunkSize, i.ChunkOverlap)

	// 2) document row
	doc := &Document{
		TenantID: req.TenantID,
		Title:    req.Title,
		Source:   req.Source,
		SourceID: req.SourceID,
		Metadata: meta,
	}
	if err := i.repo.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	// 3) embed + insert, sequentially
	var out outcome
	for w, text := range windows {
		if err := ctx.Err(); err != nil {
			out.fail(w, "embed", err)
			continue
		}
		vec, err := i.embedder.Embed(ctx, text)
		if err != nil {
			out.fail(w, "embed", err)
			continue
		}
		chunk := &DocChunk{
			TenantID:   req.TenantID,
			DocumentID: doc.ID,
			ChunkIndex: out.inserted,
			Window:     w,
			Content:    text,
			Tokens:     utf8.RuneCountInString(text),
			Metadata:   meta,
			Embedding:  NewEmbedding(vec),
		}
		if err := i.repo.InsertChunk(ctx, chunk); err != nil {
			out.fail(w, "insert", err)
			continue
		}
		out.ok()
	}

	// 4) report
	i.metrics.ObserveChunks(out.inserted, len(out.failed))
	for _, f := range out.failed {
		i.log.Warn("chunk skipped",
			"tenant_id", req.TenantID,
			"document_id", doc.ID,
			"window", f.Window,
			"stage", f.Stage,
			"error", f.Err,
		)
	}
	i.log.Info("document ingested",
		"tenant_id", req.TenantID,
		"document_id", doc.ID,
		"windows", len(windows),
		"inserted", out.inserted,
	)

	return &IngestResult{DocumentID: doc.ID, InsertedChunks: out.inserted, Failed: out.failed}, nil
}

func (i *Ingester) resolveContent(ctx context.Context, req IngestRequest) (string, error) {
	if req.Content != "" {
		return req.Content, nil
	}
	if i.source == nil {
		return "", common.Unavailable("Document storage is not configured")
	}
	text, err := i.source.Fetch(ctx, req.StoragePath)
	if err != nil {
		return "", common.Upstream(err)
	}
	return text, nil
}
