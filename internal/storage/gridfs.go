package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSStore is the primary blob store. The opaque handle is the GridFS
// file ObjectID in hex.
//
// The bucket's read/write deadlines are shared, unsynchronized state, so the
// deadline-set-plus-transfer pair runs under a mutex: without it a concurrent
// request's short deadline would clobber an in-flight stream.
type GridFSStore struct {
	bucket *gridfs.Bucket
	mu     sync.Mutex
	logger *slog.Logger
}

func NewGridFSStore(db *mongo.Database, logger *slog.Logger) (*GridFSStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName("documents"))
	if err != nil {
		return nil, fmt.Errorf("create gridfs bucket: %w", err)
	}
	return &GridFSStore{bucket: bucket, logger: logger}, nil
}

func (s *GridFSStore) Put(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyDeadline(ctx)
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "content_type", Value: contentType}})
	id, err := s.bucket.UploadFromStream(filename, bytes.NewReader(data), opts)
	if err != nil {
		s.logger.Error("storage.primary.put_failed", "filename", filename, "error", err)
		return "", fmt.Errorf("gridfs upload: %w", err)
	}
	s.logger.Info("storage.primary.put_ok", "filename", filename, "handle", id.Hex(), "bytes", len(data))
	return id.Hex(), nil
}

func (s *GridFSStore) Get(ctx context.Context, handle string) ([]byte, string, error) {
	oid, err := primitive.ObjectIDFromHex(handle)
	if err != nil {
		return nil, "", fmt.Errorf("invalid primary handle %q: %w", handle, err)
	}

	info, err := s.Info(ctx, handle)
	if err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyDeadline(ctx)
	var buf bytes.Buffer
	if _, err := s.bucket.DownloadToStream(oid, &buf); err != nil {
		return nil, "", fmt.Errorf("gridfs download %s: %w", handle, err)
	}
	return buf.Bytes(), info.ContentType, nil
}

func (s *GridFSStore) Info(ctx context.Context, handle string) (*ObjectInfo, error) {
	oid, err := primitive.ObjectIDFromHex(handle)
	if err != nil {
		return nil, fmt.Errorf("invalid primary handle %q: %w", handle, err)
	}

	cursor, err := s.bucket.Find(bson.M{"_id": oid})
	if err != nil {
		return nil, fmt.Errorf("gridfs find %s: %w", handle, err)
	}
	defer cursor.Close(ctx)

	var files []gridfs.File
	if err := cursor.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("gridfs decode %s: %w", handle, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("gridfs file %s not found", handle)
	}

	f := files[0]
	info := &ObjectInfo{
		Filename:   f.Name,
		Size:       f.Length,
		UploadedAt: f.UploadDate,
	}
	if len(f.Metadata) > 0 {
		var meta struct {
			ContentType string `bson:"content_type"`
		}
		if err := bson.Unmarshal(f.Metadata, &meta); err == nil {
			info.ContentType = meta.ContentType
		}
	}
	if info.ContentType == "" {
		info.ContentType = "application/octet-stream"
	}
	return info, nil
}

func (s *GridFSStore) Delete(ctx context.Context, handle string) error {
	oid, err := primitive.ObjectIDFromHex(handle)
	if err != nil {
		return fmt.Errorf("invalid primary handle %q: %w", handle, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyDeadline(ctx)
	if err := s.bucket.Delete(oid); err != nil {
		return fmt.Errorf("gridfs delete %s: %w", handle, err)
	}
	return nil
}

// applyDeadline bridges context deadlines onto the bucket, which predates
// context-aware APIs. Callers must hold mu.
func (s *GridFSStore) applyDeadline(ctx context.Context) {
	dl := deadlineFor(ctx)
	_ = s.bucket.SetWriteDeadline(dl)
	_ = s.bucket.SetReadDeadline(dl)
}

func deadlineFor(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		return dl
	}
	return time.Now().Add(60 * time.Second)
}
