package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murphyws/finance-portal/constants"
	"github.com/murphyws/finance-portal/internal/entity"
	"github.com/murphyws/finance-portal/internal/llm"
	"github.com/murphyws/finance-portal/internal/pnl"
	"github.com/murphyws/finance-portal/internal/repository"
	"github.com/murphyws/finance-portal/internal/storage"
)

type fakeDocs struct {
	byID          map[string]*entity.Document
	reprocessable []*entity.Document

	statuses   map[string]constants.ProcessingStatus
	errors     map[string]string
	analyses   map[string][]byte
	seenLimits []int
}

func newFakeDocs(docs ...*entity.Document) *fakeDocs {
	f := &fakeDocs{
		byID:     map[string]*entity.Document{},
		statuses: map[string]constants.ProcessingStatus{},
		errors:   map[string]string{},
		analyses: map[string][]byte{},
	}
	for _, d := range docs {
		f.byID[d.ID] = d
		f.reprocessable = append(f.reprocessable, d)
	}
	return f
}

func (f *fakeDocs) Create(ctx context.Context, doc *entity.Document) error {
	f.byID[doc.ID] = doc
	return nil
}

func (f *fakeDocs) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	doc, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("document %s not found", id)
	}
	return doc, nil
}

func (f *fakeDocs) List(ctx context.Context, filter repository.ListFilter) ([]*entity.Document, error) {
	return f.reprocessable, nil
}

func (f *fakeDocs) ListReprocessable(ctx context.Context, company constants.Company, limit int) ([]*entity.Document, error) {
	f.seenLimits = append(f.seenLimits, limit)
	docs := f.reprocessable
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (f *fakeDocs) SetStatus(ctx context.Context, id string, status constants.ProcessingStatus, errorMessage string) error {
	f.statuses[id] = status
	f.errors[id] = errorMessage
	return nil
}

func (f *fakeDocs) SetExternalTask(ctx context.Context, id, taskID string) error { return nil }

func (f *fakeDocs) SaveAnalysis(ctx context.Context, id string, analysis []byte) error {
	f.analyses[id] = analysis
	f.statuses[id] = constants.StatusCompleted
	return nil
}

type fakePrimary struct {
	objects map[string][]byte
}

func (f *fakePrimary) Put(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	return "", fmt.Errorf("not used")
}

func (f *fakePrimary) Get(ctx context.Context, handle string) ([]byte, string, error) {
	data, ok := f.objects[handle]
	if !ok {
		return nil, "", fmt.Errorf("object %s not found", handle)
	}
	return data, "application/pdf", nil
}

func (f *fakePrimary) Info(ctx context.Context, handle string) (*storage.ObjectInfo, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakePrimary) Delete(ctx context.Context, handle string) error { return nil }

type fakeExtractor struct {
	response string
	err      error
	calls    int
}

func (f *fakeExtractor) Extract(ctx context.Context, req llm.ExtractRequest) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

const goodResponse = `{
  "plStatement": {"totalRevenue": 1000.00, "totalExpenses": 250.00, "netIncome": 750.00},
  "transactions": [
    {"date": "2025-04-01", "description": "invoice 42", "amount": 1000.00, "type": "credit"},
    {"date": "2025-04-03", "description": "software", "amount": 250.00, "type": "debit"}
  ],
  "insights": [],
  "confidence": 0.9
}`

func docWithHandle(id, handle string) *entity.Document {
	return &entity.Document{
		ID:               id,
		Company:          constants.Company("murphy_web_services"),
		Month:            "April",
		Year:             2025,
		DocumentType:     constants.DocumentType("bank_statement"),
		Filename:         "statement.pdf",
		ContentType:      "application/pdf",
		PrimaryHandle:    handle,
		ProcessingStatus: constants.StatusStored,
	}
}

func TestProcessOne_Success(t *testing.T) {
	doc := docWithHandle("doc-1", "h1")
	docs := newFakeDocs(doc)
	primary := &fakePrimary{objects: map[string][]byte{"h1": []byte("%PDF-1.4")}}
	extractor := &fakeExtractor{response: goodResponse}

	p := NewProcessor(docs, primary, nil, extractor, 10, nil)
	res := p.ProcessOne(context.Background(), doc)

	assert.Equal(t, "success", res.Status)
	require.NotNil(t, res.PLStatement)
	assert.Equal(t, "1000", res.PLStatement.TotalRevenue.String())
	assert.Equal(t, constants.StatusCompleted, docs.statuses["doc-1"])

	var saved pnl.AnalysisResult
	require.NoError(t, json.Unmarshal(docs.analyses["doc-1"], &saved))
	assert.Equal(t, "anthropic", saved.Model)
	assert.True(t, saved.PLStatement.NetIncome.Equal(saved.PLStatement.TotalRevenue.Sub(saved.PLStatement.TotalExpenses)))
}

func TestProcessOne_AllSourcesExhausted(t *testing.T) {
	doc := docWithHandle("doc-2", "") // no handle, no secondary refs
	docs := newFakeDocs(doc)
	primary := &fakePrimary{objects: map[string][]byte{}}
	extractor := &fakeExtractor{response: goodResponse}

	p := NewProcessor(docs, primary, nil, extractor, 10, nil)
	res := p.ProcessOne(context.Background(), doc)

	assert.Equal(t, "error", res.Status)
	assert.Contains(t, res.Error, "file retrieval failed across all sources")
	assert.Equal(t, constants.StatusFailed, docs.statuses["doc-2"])
	assert.NotEmpty(t, docs.errors["doc-2"])
	assert.Zero(t, extractor.calls, "extraction must not run without bytes")
}

func TestProcessOne_ExtractionFailureMarksRecordFailed(t *testing.T) {
	doc := docWithHandle("doc-3", "h3")
	docs := newFakeDocs(doc)
	primary := &fakePrimary{objects: map[string][]byte{"h3": []byte("data")}}
	extractor := &fakeExtractor{err: fmt.Errorf("rate limited")}

	p := NewProcessor(docs, primary, nil, extractor, 10, nil)
	res := p.ProcessOne(context.Background(), doc)

	assert.Equal(t, "error", res.Status)
	assert.Contains(t, res.Error, "AI extraction failed")
	assert.Equal(t, constants.StatusFailed, docs.statuses["doc-3"])
}

func TestProcessOne_UnparseableOutputStillCompletes(t *testing.T) {
	doc := docWithHandle("doc-4", "h4")
	docs := newFakeDocs(doc)
	primary := &fakePrimary{objects: map[string][]byte{"h4": []byte("data")}}
	extractor := &fakeExtractor{response: "I see charges of $120.00 and $80.00 but cannot structure them."}

	p := NewProcessor(docs, primary, nil, extractor, 10, nil)
	res := p.ProcessOne(context.Background(), doc)

	assert.Equal(t, "success", res.Status, "degraded parses still complete the record")
	assert.Equal(t, constants.StatusCompleted, docs.statuses["doc-4"])

	var saved pnl.AnalysisResult
	require.NoError(t, json.Unmarshal(docs.analyses["doc-4"], &saved))
	assert.InDelta(t, 0.2, saved.Confidence, 1e-9)
}

func TestReprocess_BatchIsolatesFailures(t *testing.T) {
	good := docWithHandle("doc-ok", "h-ok")
	bad := docWithHandle("doc-bad", "") // will exhaust retrieval
	docs := newFakeDocs(good, bad)
	primary := &fakePrimary{objects: map[string][]byte{"h-ok": []byte("data")}}
	extractor := &fakeExtractor{response: goodResponse}

	p := NewProcessor(docs, primary, nil, extractor, 10, nil)
	batch, err := p.Reprocess(context.Background(), "", "")
	require.NoError(t, err)

	assert.Equal(t, 1, batch.Processed)
	assert.Equal(t, 1, batch.Failed)
	require.Len(t, batch.Results, 2)
	assert.Equal(t, constants.StatusCompleted, docs.statuses["doc-ok"])
	assert.Equal(t, constants.StatusFailed, docs.statuses["doc-bad"])
}

func TestReprocess_BatchCapApplied(t *testing.T) {
	var all []*entity.Document
	objects := map[string][]byte{}
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("doc-%d", i)
		handle := fmt.Sprintf("h-%d", i)
		all = append(all, docWithHandle(id, handle))
		objects[handle] = []byte("data")
	}
	docs := newFakeDocs(all...)
	primary := &fakePrimary{objects: objects}
	extractor := &fakeExtractor{response: goodResponse}

	p := NewProcessor(docs, primary, nil, extractor, 10, nil)
	batch, err := p.Reprocess(context.Background(), "", "")
	require.NoError(t, err)

	require.Equal(t, []int{10}, docs.seenLimits)
	assert.Len(t, batch.Results, 10)
	assert.Equal(t, 10, batch.Processed)
}

func TestReprocess_CompanyScopeIsUncapped(t *testing.T) {
	var all []*entity.Document
	objects := map[string][]byte{}
	for i := 0; i < 15; i++ {
		id := fmt.Sprintf("doc-%d", i)
		handle := fmt.Sprintf("h-%d", i)
		all = append(all, docWithHandle(id, handle))
		objects[handle] = []byte("data")
	}
	docs := newFakeDocs(all...)
	primary := &fakePrimary{objects: objects}
	extractor := &fakeExtractor{response: goodResponse}

	p := NewProcessor(docs, primary, nil, extractor, 10, nil)
	batch, err := p.Reprocess(context.Background(), "", "murphy_web_services")
	require.NoError(t, err)

	require.Equal(t, []int{0}, docs.seenLimits, "company scope must not pass the global cap")
	assert.Len(t, batch.Results, 15)
	assert.Equal(t, 15, batch.Processed)
}

func TestReprocess_SingleDocumentNotFound(t *testing.T) {
	docs := newFakeDocs()
	p := NewProcessor(docs, &fakePrimary{}, nil, &fakeExtractor{}, 10, nil)

	_, err := p.Reprocess(context.Background(), "missing", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
