package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// FetchSource is one step of the retrieval chain: a named fetch function
// tried in order. Expressing the chain as data keeps each source testable in
// isolation and the fallback order explicit.
type FetchSource struct {
	Name  string
	Fetch func(ctx context.Context) ([]byte, string, error)
}

// FetchResult carries the first successful retrieval plus the diagnostic
// trail of every attempt made before it.
type FetchResult struct {
	Data        []byte
	ContentType string
	Source      string
	Attempts    []string
}

// FetchFirst tries sources in order and stops at the first success. When all
// fail, the returned error names every identifier tried.
func FetchFirst(ctx context.Context, sources []FetchSource, logger *slog.Logger) (*FetchResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	attempts := make([]string, 0, len(sources))
	for _, src := range sources {
		data, contentType, err := src.Fetch(ctx)
		if err != nil {
			attempts = append(attempts, fmt.Sprintf("%s: %v", src.Name, err))
			logger.Warn("reprocess.fetch.attempt_failed", "source", src.Name, "error", err)
			continue
		}
		attempts = append(attempts, fmt.Sprintf("%s: ok (%d bytes)", src.Name, len(data)))
		logger.Info("reprocess.fetch.ok", "source", src.Name, "bytes", len(data))
		return &FetchResult{
			Data:        data,
			ContentType: contentType,
			Source:      src.Name,
			Attempts:    attempts,
		}, nil
	}

	return nil, fmt.Errorf("file retrieval failed across all sources: %s", strings.Join(attempts, "; "))
}
