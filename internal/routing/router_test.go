package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoute(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		ingested bool
		want     Choice
	}{
		{"summary with ingested doc beats table", "summarize the document table", true, RAG},
		{"summary without doc falls to data words", "summarize the table", false, DB},
		{"sql schema", "show me the sql schema", false, DB},
		{"names openai", "use openai please", false, OpenAI},
		{"names chatgpt", "what would ChatGPT say", false, OpenAI},
		{"names mistral", "ask Mistral about photosynthesis", false, HuggingFace},
		{"names perplexity", "search with perplexity", false, Perplexity},
		{"ingested without doc words", "hello there", true, RAG},
		{"default", "hello", false, Perplexity},
		{"case insensitive", "SUPABASE rows", false, DB},
		{"data words beat provider names", "gpt, list the records", false, DB},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Route(Input{Text: tc.text, HasIngestedDocument: tc.ingested}))
		})
	}
}

func TestRoute_RequestedNeverOverrides(t *testing.T) {
	got := Route(Input{Text: "hello", Requested: OpenAI})
	assert.Equal(t, Perplexity, got)
}

func TestRoute_DeterministicAndTotal(t *testing.T) {
	inputs := []string{"", "doc", "x", "table", "openai", "mistral", "perplexity", "chapter one"}
	for _, text := range inputs {
		for _, ingested := range []bool{false, true} {
			in := Input{Text: text, HasIngestedDocument: ingested}
			first := Route(in)
			assert.Contains(t, Choices, first)
			for i := 0; i < 5; i++ {
				assert.Equal(t, first, Route(in))
			}
		}
	}
}

func TestExplain_NamesFiringRule(t *testing.T) {
	c, rule := Explain(Input{Text: "read the chapter", HasIngestedDocument: true})
	assert.Equal(t, RAG, c)
	assert.Equal(t, "document reference", rule)

	c, rule = Explain(Input{Text: "hi"})
	assert.Equal(t, Perplexity, c)
	assert.Equal(t, "default", rule)
}

func TestParseChoice(t *testing.T) {
	c, ok := ParseChoice(" HuggingFace ")
	assert.True(t, ok)
	assert.Equal(t, HuggingFace, c)

	_, ok = ParseChoice("gemini")
	assert.False(t, ok)
	_, ok = ParseChoice("")
	assert.False(t, ok)
}
