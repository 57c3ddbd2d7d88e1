package storage

import (
	"context"
	"time"
)

// ObjectInfo describes a stored blob.
type ObjectInfo struct {
	Filename    string
	ContentType string
	Size        int64
	UploadedAt  time.Time
}

// PrimaryStore wraps the required blob store. Objects are addressed by an
// opaque handle assigned at write time. A primary write failure aborts the
// upload; nothing else is attempted.
type PrimaryStore interface {
	Put(ctx context.Context, filename, contentType string, data []byte) (string, error)
	Get(ctx context.Context, handle string) ([]byte, string, error)
	Info(ctx context.Context, handle string) (*ObjectInfo, error)
	Delete(ctx context.Context, handle string) error
}

// SecondaryStore wraps the best-effort CDN-backed bucket store. Failures here
// are logged and never surfaced as upload errors.
type SecondaryStore interface {
	Put(ctx context.Context, path, contentType string, data []byte) (string, error)
	Download(ctx context.Context, path string) ([]byte, error)
	PublicURL(path string) string
	List(ctx context.Context, prefix string) ([]string, error)
}
