package rag

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/ai"
)

// maxObjectBytes bounds downloaded documents.
const maxObjectBytes = 20 << 20

// ContentSource resolves a storage path into document text.
type ContentSource interface {
	Fetch(ctx context.Context, path string) (string, error)
}

// StorageFetcher downloads objects from the hosted storage API with the
// service key.
type StorageFetcher struct {
	BaseURL    string
	ServiceKey string
	Client     *http.Client
}

func NewStorageFetcher(baseURL, serviceKey string) *StorageFetcher {
	return &StorageFetcher{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ServiceKey: serviceKey,
		Client:     &http.Client{Timeout: 90 * time.Second},
	}
}

func (s *StorageFetcher) Fetch(ctx context.Context, path string) (string, error) {
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if path == "" {
		return "", fmt.Errorf("empty storage path")
	}
	if s.BaseURL == "" {
		return "", fmt.Errorf("storage is not configured")
	}

	segs := strings.Split(path, "/")
	for i, p := range segs {
		segs[i] = url.PathEscape(p)
	}
	endpoint := s.BaseURL + "/storage/v1/object/" + strings.Join(segs, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	if s.ServiceKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.ServiceKey)
		req.Header.Set("apikey", s.ServiceKey)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &ai.UpstreamError{
			Provider: "storage",
			Status:   resp.StatusCode,
			Message:  "Storage download failed: " + ai.StripHTML(string(b)),
		}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxObjectBytes+1))
	if err != nil {
		return "", err
	}
	if len(b) > maxObjectBytes {
		return "", fmt.Errorf("storage object %q exceeds %d bytes", path, maxObjectBytes)
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("storage object %q is not UTF-8 text", path)
	}
	return string(b), nil
}
