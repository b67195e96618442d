package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PerplexityProvider talks to the online-search chat completions API. It is
// used for gateway chat, grounded RAG answers and the raw pass-through.
type PerplexityProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

type perplexityMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexityChatReq struct {
	Model       string          `json:"model"`
	Messages    []perplexityMsg `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	Image       string          `json:"image,omitempty"`
}

type perplexityChatResp struct {
	Choices []struct {
		Message perplexityMsg `json:"message"`
	} `json:"choices"`
}

func NewPerplexityProvider(baseURL, apiKey, model string) *PerplexityProvider {
	if baseURL == "" {
		baseURL = "https://api.perplexity.ai"
	}
	if model == "" {
		model = "sonar-pro"
	}
	return &PerplexityProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

// Chat sends messages as-is. The first attached image, if any, travels in the
// top-level image field.
func (p *PerplexityProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	return p.complete(ctx, messages, nil)
}

// Complete is Chat with an explicit sampling temperature.
func (p *PerplexityProvider) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	return p.complete(ctx, messages, &temperature)
}

func (p *PerplexityProvider) complete(ctx context.Context, messages []Message, temperature *float64) (string, error) {
	if p.Client == nil {
		return "", errors.New("perplexity: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return "", errors.New("Perplexity API key is missing. Please set PERPLEXITY_API_KEY.")
	}

	reqBody := perplexityChatReq{
		Model:       p.Model,
		Temperature: temperature,
		Messages:    make([]perplexityMsg, 0, len(messages)),
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, perplexityMsg{Role: m.Role, Content: m.Content})
		if reqBody.Image == "" && m.Image != "" {
			reqBody.Image = m.Image
		}
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	resp, err := p.post(ctx, b)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", readUpstreamError("perplexity", "Perplexity API error: ", resp)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return "", &UpstreamError{Provider: "perplexity", Status: resp.StatusCode, Message: "Perplexity API did not return JSON."}
	}

	var decoded perplexityChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if len(decoded.Choices) == 0 || decoded.Choices[0].Message.Content == "" {
		return "", &UpstreamError{Provider: "perplexity", Status: resp.StatusCode, Message: "No reply from Perplexity"}
	}
	return decoded.Choices[0].Message.Content, nil
}

// Forward relays a caller-built request body and returns the upstream status
// and body untouched.
func (p *PerplexityProvider) Forward(ctx context.Context, body []byte) (int, []byte, error) {
	if p.Client == nil {
		return 0, nil, errors.New("perplexity: http client is nil")
	}
	resp, err := p.post(ctx, body)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, out, nil
}

func (p *PerplexityProvider) post(ctx context.Context, body []byte) (*http.Response, error) {
	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	return p.Client.Do(req)
}
