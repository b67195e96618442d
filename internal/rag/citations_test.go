package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapCitations(t *testing.T) {
	chunks := []RetrievedChunk{
		{Metadata: map[string]any{"page": float64(1)}},
		{Metadata: map[string]any{"page": float64(2)}},
	}

	got := MapCitations("See [1] and [2], again [1]; not [3] or [0].", chunks)

	assert.Equal(t, map[string]map[string]any{
		"[1]": {"page": float64(1)},
		"[2]": {"page": float64(2)},
	}, got)
}

func TestMapCitations_NoMarkers(t *testing.T) {
	got := MapCitations("plain answer", []RetrievedChunk{{}})
	assert.Empty(t, got)

	got = MapCitations("[1]", nil)
	assert.Empty(t, got)
}

func TestBuildGroundingPrompt(t *testing.T) {
	prompt, err := BuildGroundingPrompt([]RetrievedChunk{
		{Content: "alpha", Metadata: map[string]any{"src": "a.txt"}},
		{Content: "beta"},
	})
	assert.NoError(t, err)
	assert.Equal(t,
		groundingPreamble+
			"[[Chunk 1]]\nalpha\n(Metadata: {\"src\":\"a.txt\"})"+
			"\n\n"+
			"[[Chunk 2]]\nbeta\n(Metadata: null)",
		prompt)
}
