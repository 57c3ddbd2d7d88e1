package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/murphyws/finance-portal/internal/llm"
)

const apiVersion = "2023-06-01"

// Extract implements llm.Extractor against the Messages API. The document is
// attached inline as a base64 content block; PDFs go in as documents, images
// as image blocks.
func (c *Client) Extract(ctx context.Context, req llm.ExtractRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"filename", req.Filename,
		"content_type", req.ContentType,
		"bytes", len(req.Content),
		"company", req.Company,
		"document_type", req.DocumentType,
	)

	attachment, err := attachmentBlock(req)
	if err != nil {
		c.log.Error("llm.extract.unsupported_content", "req_id", rid, "content_type", req.ContentType, "error", err)
		return "", err
	}

	body := map[string]any{
		"model":      c.cfg.Model,
		"max_tokens": c.cfg.MaxTokens,
		"system":     buildSystemPrompt(req),
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					attachment,
					{"type": "text", "text": buildUserPrompt(req)},
				},
			},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/messages"
	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": apiVersion,
	}

	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.log)
	if err != nil {
		if classified := classifyStatus(status); classified != nil {
			err = fmt.Errorf("%w: %v", classified, err)
		}
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	var msg struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("decode anthropic response: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		c.log.Error("llm.extract.empty_response",
			"req_id", rid, "stop_reason", msg.StopReason,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("no text content in anthropic response (stop_reason=%s)", msg.StopReason)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"text_len", len(text),
		"stop_reason", msg.StopReason,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// attachmentBlock picks the content block for the document bytes. Images go
// in as image blocks, PDFs as base64 document blocks, and text-like files
// (csv and friends) inline as plain text; anything else cannot be attached
// truthfully and fails before the API call.
func attachmentBlock(req llm.ExtractRequest) (map[string]any, error) {
	ct := req.ContentType
	switch {
	case strings.HasPrefix(ct, "image/"):
		return base64Block("image", ct, req.Content), nil
	case ct == "application/pdf":
		return base64Block("document", ct, req.Content), nil
	case strings.HasPrefix(ct, "text/"):
		return map[string]any{
			"type": "text",
			"text": fmt.Sprintf("Contents of %s:\n\n%s", req.Filename, req.Content),
		}, nil
	default:
		return nil, fmt.Errorf("content type %q cannot be attached for extraction", ct)
	}
}

func base64Block(blockType, mediaType string, data []byte) map[string]any {
	return map[string]any{
		"type": blockType,
		"source": map[string]any{
			"type":       "base64",
			"media_type": mediaType,
			"data":       base64.StdEncoding.EncodeToString(data),
		},
	}
}

func buildSystemPrompt(req llm.ExtractRequest) string {
	parts := []string{
		"You are an accounting analyst extracting a profit-and-loss summary from a business document.",
		"Return ONLY a JSON object, no prose, matching this shape:",
		`{"plStatement":{"totalRevenue":0,"totalExpenses":0,"netIncome":0,"categories":{}},` +
			`"transactions":[{"date":"YYYY-MM-DD","description":"...","amount":0,"type":"credit|debit","category":"..."}],` +
			`"insights":["..."],"confidence":0.0}`,
		"Every money value is a positive number; direction is carried by 'type' (credit = money in, debit = money out).",
		"List every transaction you can identify. Totals must be consistent with the transaction list.",
		"confidence is your own 0..1 estimate of extraction quality.",
	}
	return strings.Join(parts, " ")
}

func buildUserPrompt(req llm.ExtractRequest) string {
	var b strings.Builder
	b.WriteString("Document: ")
	b.WriteString(req.Filename)
	b.WriteString("\nDocument type: ")
	b.WriteString(string(req.DocumentType))
	b.WriteString("\nCompany: ")
	b.WriteString(string(req.Company))
	fmt.Fprintf(&b, "\nAccounting period: %s %d\n", req.Month, req.Year)
	b.WriteString("\nExtract the P&L data from the attached document.")
	return b.String()
}
