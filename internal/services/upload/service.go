package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/murphyws/finance-portal/constants"
	"github.com/murphyws/finance-portal/internal/entity"
	"github.com/murphyws/finance-portal/internal/manus"
	"github.com/murphyws/finance-portal/internal/repository"
	"github.com/murphyws/finance-portal/internal/storage"
)

// Service drives document intake: the required primary-storage write, the
// best-effort secondary write, record creation, and the optional hand-off to
// the external task service.
type Service struct {
	docs      repository.DocumentRepository
	tasks     repository.TaskRepository
	primary   storage.PrimaryStore
	secondary storage.SecondaryStore // nil when not configured
	manus     manus.TaskService      // nil when not configured
	logger    *slog.Logger
}

func NewService(
	docs repository.DocumentRepository,
	tasks repository.TaskRepository,
	primary storage.PrimaryStore,
	secondary storage.SecondaryStore,
	taskSvc manus.TaskService,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		docs:      docs,
		tasks:     tasks,
		primary:   primary,
		secondary: secondary,
		manus:     taskSvc,
		logger:    logger,
	}
}

// Request carries an incoming file and its accounting metadata.
type Request struct {
	Content      []byte
	Filename     string
	ContentType  string
	Company      string
	Month        string
	Year         int
	DocumentType string
	UploadedBy   string
}

// Result is what the upload endpoint returns. ManusWarning is set when the
// file stored fine but the AI hand-off did not; it never fails the upload.
type Result struct {
	Document     *entity.Document
	ManusWarning string
}

// ErrValidation marks rejections that happen before any side effect; the
// HTTP layer maps them to 400.
var ErrValidation = errors.New("invalid upload request")

func (r Request) validate() error {
	if len(r.Content) == 0 {
		return fmt.Errorf("%w: file is required", ErrValidation)
	}
	if !constants.IsValidCompany(r.Company) {
		return fmt.Errorf("%w: company must be one of the known tenant codes", ErrValidation)
	}
	if !constants.IsValidMonth(r.Month) {
		return fmt.Errorf("%w: month must be a full month name", ErrValidation)
	}
	if r.Year <= 0 {
		return fmt.Errorf("%w: year is required", ErrValidation)
	}
	if !constants.IsValidDocumentType(r.DocumentType) {
		return fmt.Errorf("%w: documentType must be one of bank_statement, invoice, receipt, other", ErrValidation)
	}
	ext := constants.NormalizeExt(filepath.Ext(r.Filename))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return fmt.Errorf("%w: file extension %q is not accepted", ErrValidation, ext)
	}
	return nil
}

// Upload runs the intake pipeline. Primary-storage failure is the only fatal
// outcome; everything after it degrades into record state, not errors.
func (s *Service) Upload(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	ext := constants.NormalizeExt(filepath.Ext(req.Filename))
	contentType := req.ContentType
	if contentType == "" {
		contentType = constants.ContentTypeForExt(ext)
	}
	path := storagePath(req.Company, req.Year, req.Month, ext)

	s.logger.Info("upload.start",
		"company", req.Company, "month", req.Month, "year", req.Year,
		"document_type", req.DocumentType, "filename", req.Filename, "bytes", len(req.Content))

	// 1) primary storage write, required
	handle, err := s.primary.Put(ctx, path, contentType, req.Content)
	if err != nil {
		s.logger.Error("upload.primary.failed", "path", path, "error", err)
		return nil, fmt.Errorf("primary storage write failed: %w", err)
	}

	doc := &entity.Document{
		ID:               uuid.New().String(),
		Company:          constants.Company(req.Company),
		Month:            req.Month,
		Year:             req.Year,
		DocumentType:     constants.DocumentType(req.DocumentType),
		Filename:         req.Filename,
		ContentType:      contentType,
		FileSize:         int64(len(req.Content)),
		StorageType:      constants.StoragePrimary,
		PrimaryHandle:    handle,
		ProcessingStatus: constants.StatusStored,
		UploadedBy:       req.UploadedBy,
	}

	// 2) secondary storage write, best effort: a success switches the
	// canonical public URL to the CDN-backed one, a failure only logs
	if s.secondary != nil {
		if publicURL, err := s.secondary.Put(ctx, path, contentType, req.Content); err != nil {
			s.logger.Warn("upload.secondary.failed", "path", path, "error", err)
		} else {
			doc.StorageType = constants.StorageSecondary
			doc.SecondaryPath = path
			doc.SecondaryURL = publicURL
			doc.PublicURL = publicURL
		}
	}

	// 3) no task service: record is terminal at "stored"
	if s.manus == nil {
		if err := s.docs.Create(ctx, doc); err != nil {
			s.rollbackBlob(ctx, handle)
			return nil, err
		}
		return &Result{Document: doc}, nil
	}

	// 4) find or create the company's task, then attach the record
	doc.ProcessingStatus = constants.StatusUploaded
	taskID, taskErr := s.resolveTask(ctx, doc.Company)
	if taskErr == nil {
		doc.ExternalTaskID = taskID
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		s.rollbackBlob(ctx, handle)
		return nil, err
	}
	if taskErr != nil {
		s.logger.Warn("upload.task.resolve_failed", "document_id", doc.ID, "error", taskErr)
		msg := fmt.Sprintf("task service unavailable: %v", taskErr)
		_ = s.docs.SetStatus(ctx, doc.ID, constants.StatusFailed, msg)
		doc.ProcessingStatus = constants.StatusFailed
		doc.ErrorMessage = msg
		return &Result{Document: doc, ManusWarning: msg}, nil
	}

	// 5) stream the file to the task; hand-off failure is recorded on the
	// document but the upload still succeeds — the file IS stored
	if err := s.manus.UploadFile(ctx, taskID, req.Filename, contentType, req.Content); err != nil {
		msg := fmt.Sprintf("file stored but AI hand-off failed: %v", err)
		_ = s.docs.SetStatus(ctx, doc.ID, constants.StatusFailed, msg)
		doc.ProcessingStatus = constants.StatusFailed
		doc.ErrorMessage = msg
		return &Result{Document: doc, ManusWarning: msg}, nil
	}

	if err := s.docs.SetStatus(ctx, doc.ID, constants.StatusProcessing, ""); err != nil {
		return nil, err
	}
	doc.ProcessingStatus = constants.StatusProcessing

	s.logger.Info("upload.ok", "document_id", doc.ID, "storage_type", doc.StorageType, "task_id", taskID)
	return &Result{Document: doc}, nil
}

// resolveTask returns the company's active task id, creating one remotely
// and claiming it atomically when none exists.
func (s *Service) resolveTask(ctx context.Context, company constants.Company) (string, error) {
	existing, err := s.tasks.GetActive(ctx, company)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.TaskID, nil
	}

	taskID, err := s.manus.CreateTask(ctx, company)
	if err != nil {
		return "", err
	}
	claimed, err := s.tasks.ClaimActive(ctx, company, taskID)
	if err != nil {
		return "", err
	}
	return claimed.TaskID, nil
}

// rollbackBlob removes a stored blob that ended up without a record.
func (s *Service) rollbackBlob(ctx context.Context, handle string) {
	if err := s.primary.Delete(ctx, handle); err != nil {
		s.logger.Warn("upload.rollback.delete_failed", "handle", handle, "error", err)
	}
}

func storagePath(company string, year int, month, ext string) string {
	name := fmt.Sprintf("%d", time.Now().UnixMilli())
	if ext != "" {
		name += "." + ext
	}
	return strings.Join([]string{company, fmt.Sprintf("%d", year), month, name}, "/")
}
