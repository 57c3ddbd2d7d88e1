package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// SupabaseStore is the secondary, CDN-backed object store, driven over the
// Supabase Storage REST surface. All operations are best-effort from the
// upload path's point of view; the retrieval chain uses both the public URL
// and the authenticated download.
type SupabaseStore struct {
	baseURL    string
	serviceKey string
	bucket     string
	http       *retryablehttp.Client
	logger     *slog.Logger
}

func NewSupabaseStore(baseURL, serviceKey, bucket string, logger *slog.Logger) *SupabaseStore {
	if logger == nil {
		logger = slog.Default()
	}
	hc := retryablehttp.NewClient()
	hc.Logger = nil
	hc.RetryMax = 2
	hc.HTTPClient.Timeout = 30 * time.Second

	return &SupabaseStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		bucket:     bucket,
		http:       hc,
		logger:     logger,
	}
}

func (s *SupabaseStore) objectURL(kind, path string) string {
	escaped := url.PathEscape(path)
	// keep slashes as path separators
	escaped = strings.ReplaceAll(escaped, "%2F", "/")
	if kind == "" {
		return fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, escaped)
	}
	return fmt.Sprintf("%s/storage/v1/object/%s/%s/%s", s.baseURL, kind, s.bucket, escaped)
}

// Put uploads bytes under path and returns the public URL.
func (s *SupabaseStore) Put(ctx context.Context, path, contentType string, data []byte) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.objectURL("", path), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build supabase upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("supabase upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("supabase upload status %d: %s", resp.StatusCode, string(body))
	}

	s.logger.Info("storage.secondary.put_ok", "path", path, "bytes", len(data))
	return s.PublicURL(path), nil
}

// Download fetches object bytes through the authenticated storage API.
func (s *SupabaseStore) Download(ctx context.Context, path string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.objectURL("authenticated", path), nil)
	if err != nil {
		return nil, fmt.Errorf("build supabase download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("supabase download status %d for %s", resp.StatusCode, path)
	}
	return io.ReadAll(resp.Body)
}

// PublicURL returns the CDN-backed public URL for a path.
func (s *SupabaseStore) PublicURL(path string) string {
	return s.objectURL("public", path)
}

// List returns object names under a prefix.
func (s *SupabaseStore) List(ctx context.Context, prefix string) ([]string, error) {
	body, err := json.Marshal(map[string]any{"prefix": prefix, "limit": 100})
	if err != nil {
		return nil, err
	}
	listURL := fmt.Sprintf("%s/storage/v1/object/list/%s", s.baseURL, s.bucket)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, listURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build supabase list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("supabase list status %d", resp.StatusCode)
	}

	var items []struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode supabase list: %w", err)
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	return names, nil
}

// FetchPublic retrieves an object over its plain public URL, outside the
// authenticated API. Used as its own step in the retrieval chain.
func FetchPublic(ctx context.Context, client *http.Client, publicURL string) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, publicURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build public fetch request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("public fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("public fetch status %d for %s", resp.StatusCode, publicURL)
	}
	return io.ReadAll(resp.Body)
}
