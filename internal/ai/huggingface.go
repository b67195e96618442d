package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HuggingFaceProvider calls the hosted inference API. The endpoint takes a
// single prompt, so only the latest user turn is sent.
type HuggingFaceProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

type huggingFaceReq struct {
	Inputs string `json:"inputs"`
}

type huggingFaceGen struct {
	GeneratedText string `json:"generated_text"`
}

func NewHuggingFaceProvider(baseURL, apiKey, model string) *HuggingFaceProvider {
	if baseURL == "" {
		baseURL = "https://api-inference.huggingface.co/models"
	}
	if model == "" {
		model = "mistralai/Mistral-7B-Instruct-v0.2"
	}
	return &HuggingFaceProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func (p *HuggingFaceProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.Client == nil {
		return "", errors.New("huggingface: http client is nil")
	}

	b, err := json.Marshal(huggingFaceReq{Inputs: LastUserMessage(messages).Content})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s", strings.TrimRight(p.BaseURL, "/"), p.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", readUpstreamError("huggingface", "Hugging Face API error: ", resp)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", err
	}
	if text := generatedText(raw); text != "" {
		return text, nil
	}
	return "", &UpstreamError{Provider: "huggingface", Status: resp.StatusCode, Message: "No reply from Hugging Face"}
}

// generatedText accepts both [{generated_text}] and {generated_text}.
func generatedText(raw json.RawMessage) string {
	var list []huggingFaceGen
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) > 0 {
			return list[0].GeneratedText
		}
		return ""
	}
	var one huggingFaceGen
	if err := json.Unmarshal(raw, &one); err == nil {
		return one.GeneratedText
	}
	return ""
}
