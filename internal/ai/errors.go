package ai

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

// UpstreamError is a non-success answer from a model provider.
type UpstreamError struct {
	Provider string
	Status   int
	Message  string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
}

var htmlTag = regexp.MustCompile(`<[^>]+>`)

const maxErrorText = 200

// StripHTML removes markup from an error page and keeps the first 200 chars.
func StripHTML(s string) string {
	s = htmlTag.ReplaceAllString(s, "")
	r := []rune(s)
	if len(r) > maxErrorText {
		r = r[:maxErrorText]
	}
	return string(r)
}

type errorEnvelope struct {
	Error json.RawMessage `json:"error"`
}

// readUpstreamError turns a failed response into an UpstreamError. JSON bodies
// yield error.message (or a bare error string); anything else is stripped of
// tags, truncated and prefixed with label.
func readUpstreamError(provider, label string, resp *http.Response) *UpstreamError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	out := &UpstreamError{Provider: provider, Status: resp.StatusCode}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		out.Message = jsonErrorMessage(body)
		return out
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = fmt.Sprintf("status %d", resp.StatusCode)
	}
	out.Message = label + StripHTML(msg)
	return out
}

func jsonErrorMessage(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		var flat string
		if err := json.Unmarshal(env.Error, &flat); err == nil && flat != "" {
			return flat
		}
	}
	return strings.TrimSpace(string(body))
}
