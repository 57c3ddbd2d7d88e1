package manus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/murphyws/finance-portal/constants"
)

// TaskService is the external service the upload pipeline streams documents
// into. Task completion is webhook/poll-driven on the remote side and never
// awaited here.
type TaskService interface {
	CreateTask(ctx context.Context, company constants.Company) (string, error)
	UploadFile(ctx context.Context, taskID, filename, contentType string, data []byte) error
}

type Client struct {
	baseURL string
	apiKey  string
	http    *retryablehttp.Client
	logger  *slog.Logger
}

func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	hc := retryablehttp.NewClient()
	hc.Logger = nil
	hc.RetryMax = 2
	hc.HTTPClient.Timeout = 60 * time.Second

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    hc,
		logger:  logger,
	}
}

// CreateTask opens a long-lived remote task for a company's documents.
func (c *Client) CreateTask(ctx context.Context, company constants.Company) (string, error) {
	body, err := json.Marshal(map[string]any{
		"title":   fmt.Sprintf("Accounting documents: %s", company),
		"company": company,
		"mode":    "long_running",
	})
	if err != nil {
		return "", fmt.Errorf("encode task request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tasks", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build task request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("create manus task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("create manus task status %d: %s", resp.StatusCode, string(raw))
	}

	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode task response: %w", err)
	}
	if out.TaskID == "" {
		return "", fmt.Errorf("create manus task: empty task_id")
	}

	c.logger.Info("manus.task.created", "company", company, "task_id", out.TaskID)
	return out.TaskID, nil
}

// UploadFile streams document bytes into an existing task, retrying
// transient failures with exponential backoff.
func (c *Client) UploadFile(ctx context.Context, taskID, filename, contentType string, data []byte) error {
	op := func() error {
		return c.uploadOnce(ctx, taskID, filename, contentType, data)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		c.logger.Error("manus.file.upload_failed", "task_id", taskID, "filename", filename, "error", err)
		return err
	}
	c.logger.Info("manus.file.upload_ok", "task_id", taskID, "filename", filename, "bytes", len(data))
	return nil
}

func (c *Client) uploadOnce(ctx context.Context, taskID, filename, contentType string, data []byte) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fw, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create form file: %w", err))
	}
	if _, err := io.Copy(fw, bytes.NewReader(data)); err != nil {
		return backoff.Permanent(fmt.Errorf("copy file content: %w", err))
	}
	if err := writer.WriteField("content_type", contentType); err != nil {
		return backoff.Permanent(fmt.Errorf("write content_type field: %w", err))
	}
	if err := writer.Close(); err != nil {
		return backoff.Permanent(fmt.Errorf("close multipart writer: %w", err))
	}

	url := fmt.Sprintf("%s/v1/tasks/%s/files", c.baseURL, taskID)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body.Bytes()))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build upload request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload to manus task %s: %w", taskID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("manus upload status %d: %s", resp.StatusCode, string(raw))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}
	return nil
}
