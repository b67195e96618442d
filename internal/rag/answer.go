package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/ai"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/common"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/logger"
)

const (
	DefaultK           = 6
	MaxK               = 50
	DefaultTemperature = 0.2

	groundingPreamble = "You are a helpful assistant. Use only the following context to answer and cite sources as [1], [2], etc.:\n"
)

// Completer is the completion backend used for grounded answers.
type Completer interface {
	Complete(ctx context.Context, messages []ai.Message, temperature float64) (string, error)
}

type AnswerRequest struct {
	TenantID    string
	Query       string
	K           int
	Temperature *float64
	Citations   bool
}

type AnswerResult struct {
	Text      string                    `json:"text"`
	Chunks    []RetrievedChunk          `json:"chunks"`
	Citations map[string]map[string]any `json:"citations,omitempty"`
}

type Answerer struct {
	repo      *Repo
	embedder  ai.Embedder
	completer Completer
	log       *logger.Logger
}

func NewAnswerer(repo *Repo, embedder ai.Embedder, completer Completer, log *logger.Logger) *Answerer {
	if log == nil {
		log = logger.Nop()
	}
	return &Answerer{repo: repo, embedder: embedder, completer: completer, log: log}
}

// Answer retrieves the tenant's closest chunks and asks the completion
// backend to answer from them only.
func (a *Answerer) Answer(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, common.Invalid("Missing query")
	}
	if req.TenantID == "" {
		return nil, common.Forbidden("No tenant is linked to this account.")
	}
	if a.embedder == nil {
		return nil, common.Upstream(errors.New("Missing OPENAI_API_KEY"))
	}

	k := req.K
	if k <= 0 {
		k = DefaultK
	}
	if k > MaxK {
		k = MaxK
	}
	temperature := DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	// 1) embed the query in the ingestion space
	vec, err := a.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, common.Upstream(err)
	}

	// 2) tenant-scoped top-k
	chunks, err := a.repo.SearchChunks(ctx, req.TenantID, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	if chunks == nil {
		chunks = []RetrievedChunk{}
	}

	// 3) grounded prompt
	system, err := BuildGroundingPrompt(chunks)
	if err != nil {
		return nil, err
	}
	msgs := []ai.Message{
		{Role: ai.RoleSystem, Content: system},
		{Role: ai.RoleUser, Content: req.Query},
	}

	// 4) complete
	text, err := a.completer.Complete(ctx, msgs, temperature)
	if err != nil {
		a.log.Warn("grounded completion failed", "tenant_id", req.TenantID, "chunks", len(chunks), "error", err)
		return nil, common.Upstream(err)
	}

	res := &AnswerResult{Text: text, Chunks: chunks}
	if req.Citations {
		res.Citations = MapCitations(text, chunks)
	}
	return res, nil
}

// BuildGroundingPrompt renders the system message: the preamble followed by
// each chunk as "[[Chunk i]]\n<content>\n(Metadata: <json>)", 1-based.
func BuildGroundingPrompt(chunks []RetrievedChunk) (string, error) {
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return "", fmt.Errorf("encode chunk metadata: %w", err)
		}
		parts = append(parts, fmt.Sprintf("[[Chunk %d]]\n%s\n(Metadata: %s)", i+1, c.Content, meta))
	}
	return groundingPreamble + strings.Join(parts, "\n\n"), nil
}
