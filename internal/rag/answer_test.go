package rag

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/ai"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/common"
)

type recordingCompleter struct {
	reply       string
	err         error
	last        []ai.Message
	temperature float64
}

func (c *recordingCompleter) Complete(ctx context.Context, messages []ai.Message, temperature float64) (string, error) {
	c.last = append([]ai.Message(nil), messages...)
	c.temperature = temperature
	return c.reply, c.err
}

func seedCorpus(t *testing.T, ing *Ingester) {
	t.Helper()
	for _, req := range []IngestRequest{
		{TenantID: "t1", Title: "v", Content: "volcano facts", Metadata: map[string]any{"title": "Volcanoes"}},
		{TenantID: "t1", Title: "r", Content: "river facts", Metadata: map[string]any{"title": "Rivers"}},
		{TenantID: "t2", Title: "other", Content: "volcano secrets of another school"},
	} {
		_, err := ing.Ingest(context.Background(), req)
		require.NoError(t, err)
	}
}

func TestAnswer_GroundsOnTenantChunks(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	emb := &fakeEmbedder{}
	seedCorpus(t, NewIngester(repo, emb, nil, nil, nil))

	comp := &recordingCompleter{reply: "Volcanoes erupt [1]."}
	a := NewAnswerer(repo, emb, comp, nil)

	res, err := a.Answer(context.Background(), AnswerRequest{TenantID: "t1", Query: "tell me about the volcano", K: 1})
	require.NoError(t, err)
	assert.Equal(t, "Volcanoes erupt [1].", res.Text)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "volcano facts", res.Chunks[0].Content)
	assert.InDelta(t, 1.0, res.Chunks[0].Similarity, 1e-6)
	assert.Nil(t, res.Citations)

	require.Len(t, comp.last, 2)
	assert.Equal(t, ai.RoleSystem, comp.last[0].Role)
	assert.True(t, strings.HasPrefix(comp.last[0].Content, groundingPreamble+"[[Chunk 1]]\nvolcano facts\n"))
	assert.NotContains(t, comp.last[0].Content, "another school")
	assert.Equal(t, ai.Message{Role: ai.RoleUser, Content: "tell me about the volcano"}, comp.last[1])
	assert.Equal(t, DefaultTemperature, comp.temperature)
}

func TestAnswer_DefaultsAndCitations(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	emb := &fakeEmbedder{}
	seedCorpus(t, NewIngester(repo, emb, nil, nil, nil))

	comp := &recordingCompleter{reply: "Rivers flow [1]; volcanoes [2]; nothing [9]."}
	a := NewAnswerer(repo, emb, comp, nil)

	temp := 0.7
	res, err := a.Answer(context.Background(), AnswerRequest{TenantID: "t1", Query: "river", Temperature: &temp, Citations: true})
	require.NoError(t, err)
	// both t1 chunks come back, best match first
	require.Len(t, res.Chunks, 2)
	assert.Equal(t, "river facts", res.Chunks[0].Content)
	assert.Equal(t, 0.7, comp.temperature)

	assert.Equal(t, map[string]map[string]any{
		"[1]": {"title": "Rivers"},
		"[2]": {"title": "Volcanoes"},
	}, res.Citations)
}

func TestAnswer_EmptyCorpusStillCompletes(t *testing.T) {
	db := openTestDB(t)
	comp := &recordingCompleter{reply: "I don't know."}
	a := NewAnswerer(NewRepo(db), &fakeEmbedder{}, comp, nil)

	res, err := a.Answer(context.Background(), AnswerRequest{TenantID: "t1", Query: "anything"})
	require.NoError(t, err)
	assert.NotNil(t, res.Chunks)
	assert.Empty(t, res.Chunks)
	assert.Equal(t, groundingPreamble, comp.last[0].Content)
}

func TestAnswer_Errors(t *testing.T) {
	db := openTestDB(t)
	comp := &recordingCompleter{}
	a := NewAnswerer(NewRepo(db), &fakeEmbedder{}, comp, nil)
	ctx := context.Background()

	_, err := a.Answer(ctx, AnswerRequest{TenantID: "t1", Query: "  "})
	assert.Equal(t, http.StatusBadRequest, common.StatusOf(err))
	assert.Equal(t, "Missing query", err.Error())

	_, err = a.Answer(ctx, AnswerRequest{Query: "q"})
	assert.Equal(t, http.StatusForbidden, common.StatusOf(err))

	comp.err = &ai.UpstreamError{Provider: "perplexity", Status: 502, Message: "Perplexity API error: Bad gateway"}
	_, err = a.Answer(ctx, AnswerRequest{TenantID: "t1", Query: "q"})
	assert.Equal(t, http.StatusInternalServerError, common.StatusOf(err))
	assert.Equal(t, "Perplexity API error: Bad gateway", err.Error())

	emb := &fakeEmbedder{failOn: map[int]bool{1: true}}
	_, err = NewAnswerer(NewRepo(db), emb, comp, nil).Answer(ctx, AnswerRequest{TenantID: "t1", Query: "q"})
	require.Error(t, err)
	assert.Equal(t, "embedding quota exceeded", err.Error())
	assert.Equal(t, http.StatusInternalServerError, common.StatusOf(err))
}
