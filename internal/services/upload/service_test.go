package upload

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murphyws/finance-portal/constants"
	"github.com/murphyws/finance-portal/internal/entity"
	"github.com/murphyws/finance-portal/internal/repository"
	"github.com/murphyws/finance-portal/internal/storage"
)

type fakeDocs struct {
	created   []*entity.Document
	createErr error
	statuses  map[string]constants.ProcessingStatus
	errors    map[string]string
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{
		statuses: map[string]constants.ProcessingStatus{},
		errors:   map[string]string{},
	}
}

func (f *fakeDocs) Create(ctx context.Context, doc *entity.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, doc)
	return nil
}

func (f *fakeDocs) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakeDocs) List(ctx context.Context, filter repository.ListFilter) ([]*entity.Document, error) {
	return nil, nil
}

func (f *fakeDocs) ListReprocessable(ctx context.Context, company constants.Company, limit int) ([]*entity.Document, error) {
	return nil, nil
}

func (f *fakeDocs) SetStatus(ctx context.Context, id string, status constants.ProcessingStatus, errorMessage string) error {
	f.statuses[id] = status
	f.errors[id] = errorMessage
	return nil
}

func (f *fakeDocs) SetExternalTask(ctx context.Context, id, taskID string) error { return nil }

func (f *fakeDocs) SaveAnalysis(ctx context.Context, id string, analysis []byte) error { return nil }

type fakeTasks struct {
	active *entity.ManusTask
	claims []string
}

func (f *fakeTasks) GetActive(ctx context.Context, company constants.Company) (*entity.ManusTask, error) {
	return f.active, nil
}

func (f *fakeTasks) ClaimActive(ctx context.Context, company constants.Company, taskID string) (*entity.ManusTask, error) {
	f.claims = append(f.claims, taskID)
	if f.active != nil {
		return f.active, nil
	}
	return &entity.ManusTask{Company: company, TaskID: taskID, Status: entity.TaskStatusActive}, nil
}

func (f *fakeTasks) MarkFailed(ctx context.Context, id string) error { return nil }

type fakePrimary struct {
	fail    bool
	puts    int
	deletes []string
}

func (f *fakePrimary) Put(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	f.puts++
	if f.fail {
		return "", fmt.Errorf("gridfs unavailable")
	}
	return "handle-1", nil
}

func (f *fakePrimary) Get(ctx context.Context, handle string) ([]byte, string, error) {
	return nil, "", fmt.Errorf("not used")
}

func (f *fakePrimary) Info(ctx context.Context, handle string) (*storage.ObjectInfo, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakePrimary) Delete(ctx context.Context, handle string) error {
	f.deletes = append(f.deletes, handle)
	return nil
}

type fakeSecondary struct {
	fail bool
}

func (f *fakeSecondary) Put(ctx context.Context, path, contentType string, data []byte) (string, error) {
	if f.fail {
		return "", fmt.Errorf("bucket rejected write")
	}
	return "https://cdn.example.com/" + path, nil
}

func (f *fakeSecondary) Download(ctx context.Context, path string) ([]byte, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakeSecondary) PublicURL(path string) string { return "https://cdn.example.com/" + path }

func (f *fakeSecondary) List(ctx context.Context, prefix string) ([]string, error) { return nil, nil }

type fakeManus struct {
	createErr error
	uploadErr error
	created   int
	uploads   int
}

func (f *fakeManus) CreateTask(ctx context.Context, company constants.Company) (string, error) {
	f.created++
	if f.createErr != nil {
		return "", f.createErr
	}
	return "task-remote-1", nil
}

func (f *fakeManus) UploadFile(ctx context.Context, taskID, filename, contentType string, data []byte) error {
	f.uploads++
	return f.uploadErr
}

func validRequest() Request {
	return Request{
		Content:      []byte("%PDF-1.4 fake"),
		Filename:     "march-statement.pdf",
		ContentType:  "application/pdf",
		Company:      "murphy_web_services",
		Month:        "March",
		Year:         2025,
		DocumentType: "bank_statement",
		UploadedBy:   "ops@example.com",
	}
}

func TestUpload_ValidationRejectsBeforeAnyWrite(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"empty file", func(r *Request) { r.Content = nil }},
		{"unknown company", func(r *Request) { r.Company = "enron" }},
		{"bad month", func(r *Request) { r.Month = "13" }},
		{"zero year", func(r *Request) { r.Year = 0 }},
		{"bad document type", func(r *Request) { r.DocumentType = "meme" }},
		{"disallowed extension", func(r *Request) { r.Filename = "malware.exe" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := newFakeDocs()
			primary := &fakePrimary{}
			svc := NewService(docs, &fakeTasks{}, primary, nil, nil, nil)

			req := validRequest()
			tt.mutate(&req)

			_, err := svc.Upload(context.Background(), req)
			require.ErrorIs(t, err, ErrValidation)
			assert.Zero(t, primary.puts, "no storage write on validation failure")
			assert.Empty(t, docs.created)
		})
	}
}

func TestUpload_PrimaryFailureIsFatal(t *testing.T) {
	docs := newFakeDocs()
	svc := NewService(docs, &fakeTasks{}, &fakePrimary{fail: true}, &fakeSecondary{}, &fakeManus{}, nil)

	_, err := svc.Upload(context.Background(), validRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary storage write failed")
	assert.Empty(t, docs.created, "no record without a stored file")
}

func TestUpload_RecordCreateFailureRollsBackBlob(t *testing.T) {
	docs := newFakeDocs()
	docs.createErr = fmt.Errorf("write concern error")
	primary := &fakePrimary{}
	svc := NewService(docs, &fakeTasks{}, primary, nil, nil, nil)

	_, err := svc.Upload(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, []string{"handle-1"}, primary.deletes, "orphaned blob must be removed")
}

func TestUpload_SecondaryFailureDegradesToPrimary(t *testing.T) {
	docs := newFakeDocs()
	svc := NewService(docs, &fakeTasks{}, &fakePrimary{}, &fakeSecondary{fail: true}, nil, nil)

	res, err := svc.Upload(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, constants.StoragePrimary, res.Document.StorageType)
	assert.Empty(t, res.Document.SecondaryURL)
	assert.Equal(t, "handle-1", res.Document.PrimaryHandle)
}

func TestUpload_SecondarySuccessSwitchesStorageType(t *testing.T) {
	docs := newFakeDocs()
	svc := NewService(docs, &fakeTasks{}, &fakePrimary{}, &fakeSecondary{}, nil, nil)

	res, err := svc.Upload(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, constants.StorageSecondary, res.Document.StorageType)
	assert.Contains(t, res.Document.SecondaryURL, "https://cdn.example.com/murphy_web_services/2025/March/")
	assert.Equal(t, res.Document.SecondaryURL, res.Document.PublicURL)
	assert.Equal(t, "handle-1", res.Document.PrimaryHandle, "primary handle kept alongside the CDN copy")
}

func TestUpload_NoTaskServiceLeavesRecordStored(t *testing.T) {
	docs := newFakeDocs()
	svc := NewService(docs, &fakeTasks{}, &fakePrimary{}, nil, nil, nil)

	res, err := svc.Upload(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, constants.StatusStored, res.Document.ProcessingStatus)
	assert.Empty(t, res.Document.ExternalTaskID)
	assert.Empty(t, res.ManusWarning)
	require.Len(t, docs.created, 1)
}

func TestUpload_ReusesExistingActiveTask(t *testing.T) {
	docs := newFakeDocs()
	tasks := &fakeTasks{active: &entity.ManusTask{TaskID: "task-existing", Status: entity.TaskStatusActive}}
	manusSvc := &fakeManus{}
	svc := NewService(docs, tasks, &fakePrimary{}, nil, manusSvc, nil)

	res, err := svc.Upload(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, "task-existing", res.Document.ExternalTaskID)
	assert.Zero(t, manusSvc.created, "no remote task created when one is active")
	assert.Equal(t, constants.StatusProcessing, res.Document.ProcessingStatus)
}

func TestUpload_TaskCreateFailureStillSucceeds(t *testing.T) {
	docs := newFakeDocs()
	manusSvc := &fakeManus{createErr: fmt.Errorf("manus is down")}
	svc := NewService(docs, &fakeTasks{}, &fakePrimary{}, nil, manusSvc, nil)

	res, err := svc.Upload(context.Background(), validRequest())
	require.NoError(t, err, "the file is stored; hand-off failure is not an upload failure")

	assert.NotEmpty(t, res.ManusWarning)
	assert.Contains(t, res.ManusWarning, "task service unavailable")
	assert.Equal(t, constants.StatusFailed, res.Document.ProcessingStatus)
	require.Len(t, docs.created, 1, "record is created even when hand-off fails")
	assert.Equal(t, constants.StatusFailed, docs.statuses[res.Document.ID])
}

func TestUpload_FileHandOffFailureStillSucceeds(t *testing.T) {
	docs := newFakeDocs()
	manusSvc := &fakeManus{uploadErr: fmt.Errorf("upload timed out")}
	svc := NewService(docs, &fakeTasks{}, &fakePrimary{}, nil, manusSvc, nil)

	res, err := svc.Upload(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Contains(t, res.ManusWarning, "file stored but AI hand-off failed")
	assert.Equal(t, constants.StatusFailed, res.Document.ProcessingStatus)
	assert.Equal(t, "task-remote-1", res.Document.ExternalTaskID, "task id kept for a later retry")
}

func TestUpload_FullHandOffReachesProcessing(t *testing.T) {
	docs := newFakeDocs()
	tasks := &fakeTasks{}
	manusSvc := &fakeManus{}
	svc := NewService(docs, tasks, &fakePrimary{}, &fakeSecondary{}, manusSvc, nil)

	res, err := svc.Upload(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, constants.StatusProcessing, res.Document.ProcessingStatus)
	assert.Equal(t, "task-remote-1", res.Document.ExternalTaskID)
	assert.Equal(t, 1, manusSvc.uploads)
	require.Equal(t, []string{"task-remote-1"}, tasks.claims, "freshly created task must be claimed atomically")
	assert.Empty(t, res.ManusWarning)
}
