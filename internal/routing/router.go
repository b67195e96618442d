// Package routing classifies a user turn into one of the five handling
// strategies. Rules are evaluated in order and the first match wins.
package routing

import (
	"regexp"
	"strings"
)

type Choice string

const (
	OpenAI      Choice = "openai"
	HuggingFace Choice = "huggingface"
	Perplexity  Choice = "perplexity"
	RAG         Choice = "rag"
	DB          Choice = "db"
)

// Choices lists every strategy the router can return.
var Choices = []Choice{OpenAI, HuggingFace, Perplexity, RAG, DB}

type Input struct {
	Text                string
	HasIngestedDocument bool
	// Requested is the caller's default selection. It is recorded but never
	// overrides the rules.
	Requested Choice
}

type rule struct {
	name  string
	match func(Input) bool
	pick  Choice
}

var (
	docWords    = regexp.MustCompile(`(?i)doc|file|upload|content|paragraph|section|chapter|text|summar`)
	dataWords   = regexp.MustCompile(`(?i)table|row|column|db|database|sql|record|schema|supabase`)
	openAIWords = regexp.MustCompile(`(?i)openai|gpt|chatgpt`)
	hfWords     = regexp.MustCompile(`(?i)huggingface|mistral`)
	pplxWords   = regexp.MustCompile(`(?i)perplexity`)
)

var rules = []rule{
	{"document reference", func(in Input) bool { return in.HasIngestedDocument && docWords.MatchString(in.Text) }, RAG},
	{"data vocabulary", func(in Input) bool { return dataWords.MatchString(in.Text) }, DB},
	{"names openai", func(in Input) bool { return openAIWords.MatchString(in.Text) }, OpenAI},
	{"names huggingface", func(in Input) bool { return hfWords.MatchString(in.Text) }, HuggingFace},
	{"names perplexity", func(in Input) bool { return pplxWords.MatchString(in.Text) }, Perplexity},
	{"ingested document", func(in Input) bool { return in.HasIngestedDocument }, RAG},
}

// Route is total: anything no rule claims goes to Perplexity.
func Route(in Input) Choice {
	c, _ := Explain(in)
	return c
}

// Explain is Route plus the name of the rule that fired.
func Explain(in Input) (Choice, string) {
	for _, r := range rules {
		if r.match(in) {
			return r.pick, r.name
		}
	}
	return Perplexity, "default"
}

// ParseChoice normalizes a caller-supplied provider name. Unknown or empty
// names report false.
func ParseChoice(s string) (Choice, bool) {
	c := Choice(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Choices {
		if c == known {
			return c, true
		}
	}
	return "", false
}
