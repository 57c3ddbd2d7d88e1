package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/murphyws/finance-portal/constants"
	"github.com/murphyws/finance-portal/internal/entity"
	"github.com/murphyws/finance-portal/internal/llm"
	"github.com/murphyws/finance-portal/internal/pnl"
	"github.com/murphyws/finance-portal/internal/repository"
	"github.com/murphyws/finance-portal/internal/storage"
)

// Processor re-runs extraction for stored documents: retrieval across the
// three storage sources, the AI call, reconciliation, persistence. Records
// are processed strictly one at a time; one record's failure never aborts
// its siblings.
type Processor struct {
	docs       repository.DocumentRepository
	primary    storage.PrimaryStore
	secondary  storage.SecondaryStore // nil when not configured
	extractor  llm.Extractor
	httpClient *http.Client // plain client for public-URL fetches
	batchLimit int
	logger     *slog.Logger
}

func NewProcessor(
	docs repository.DocumentRepository,
	primary storage.PrimaryStore,
	secondary storage.SecondaryStore,
	extractor llm.Extractor,
	batchLimit int,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if batchLimit <= 0 {
		batchLimit = 10
	}
	return &Processor{
		docs:       docs,
		primary:    primary,
		secondary:  secondary,
		extractor:  extractor,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		batchLimit: batchLimit,
		logger:     logger,
	}
}

// RecordResult is the per-document outcome reported by the reprocess endpoint.
type RecordResult struct {
	DocumentID  string         `json:"documentId"`
	Status      string         `json:"status"` // success | error
	PLStatement *pnl.Statement `json:"plStatement,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// BatchResult aggregates a reprocessing run.
type BatchResult struct {
	Results   []RecordResult `json:"results"`
	Processed int            `json:"processed"`
	Failed    int            `json:"failed"`
}

// Reprocess selects records and runs them sequentially. Scope: a specific
// document id, a company's eligible records (all of them), or, with neither,
// up to batchLimit eligible records globally, the cap bounding batch duration.
func (p *Processor) Reprocess(ctx context.Context, documentID string, company constants.Company) (*BatchResult, error) {
	var docs []*entity.Document

	switch {
	case documentID != "":
		doc, err := p.docs.GetByID(ctx, documentID)
		if err != nil {
			return nil, err
		}
		if !doc.ProcessingStatus.Reprocessable() {
			// explicit requests may re-run any record, including completed ones
			p.logger.Info("reprocess.explicit_override", "document_id", doc.ID, "status", doc.ProcessingStatus)
		}
		docs = []*entity.Document{doc}
	case company != "":
		// company scope is explicit and uncapped; only the global sweep
		// below is bounded
		var err error
		docs, err = p.docs.ListReprocessable(ctx, company, 0)
		if err != nil {
			return nil, err
		}
	default:
		var err error
		docs, err = p.docs.ListReprocessable(ctx, "", p.batchLimit)
		if err != nil {
			return nil, err
		}
	}

	batch := &BatchResult{Results: make([]RecordResult, 0, len(docs))}
	for _, doc := range docs {
		res := p.ProcessOne(ctx, doc)
		if res.Status == "success" {
			batch.Processed++
		} else {
			batch.Failed++
		}
		batch.Results = append(batch.Results, res)
	}

	p.logger.Info("reprocess.batch.done",
		"selected", len(docs), "processed", batch.Processed, "failed", batch.Failed,
		"document_id", documentID, "company", company)
	return batch, nil
}

// ProcessOne runs the full per-record pipeline. All failures resolve into
// the record's failed status and error message, never a panic or batch abort.
func (p *Processor) ProcessOne(ctx context.Context, doc *entity.Document) RecordResult {
	p.logger.Info("reprocess.start",
		"document_id", doc.ID, "status", doc.ProcessingStatus,
		"has_storage_ref", doc.HasStorageReference())

	fetched, err := FetchFirst(ctx, p.sourcesFor(doc), p.logger)
	if err != nil {
		msg := err.Error()
		_ = p.docs.SetStatus(ctx, doc.ID, constants.StatusFailed, msg)
		return RecordResult{DocumentID: doc.ID, Status: "error", Error: msg}
	}

	if err := p.docs.SetStatus(ctx, doc.ID, constants.StatusProcessing, ""); err != nil {
		return RecordResult{DocumentID: doc.ID, Status: "error", Error: err.Error()}
	}

	contentType := fetched.ContentType
	if contentType == "" {
		contentType = doc.ContentType
	}

	if p.extractor == nil {
		msg := "AI extraction failed: no extractor configured"
		_ = p.docs.SetStatus(ctx, doc.ID, constants.StatusFailed, msg)
		return RecordResult{DocumentID: doc.ID, Status: "error", Error: msg}
	}

	text, err := p.extractor.Extract(ctx, llm.ExtractRequest{
		Content:      fetched.Data,
		Filename:     doc.Filename,
		ContentType:  contentType,
		DocumentType: doc.DocumentType,
		Company:      doc.Company,
		Month:        doc.Month,
		Year:         doc.Year,
	})
	if err != nil {
		msg := fmt.Sprintf("AI extraction failed: %v", err)
		_ = p.docs.SetStatus(ctx, doc.ID, constants.StatusFailed, msg)
		return RecordResult{DocumentID: doc.ID, Status: "error", Error: msg}
	}

	// parse never hard-fails; unparseable output degrades to the
	// currency-scan fallback inside ParseAnalysis
	result := llm.ParseAnalysis(text, p.logger)
	result.Model = "anthropic"

	raw, err := json.Marshal(result)
	if err != nil {
		msg := fmt.Sprintf("encode analysis: %v", err)
		_ = p.docs.SetStatus(ctx, doc.ID, constants.StatusFailed, msg)
		return RecordResult{DocumentID: doc.ID, Status: "error", Error: msg}
	}
	if err := p.docs.SaveAnalysis(ctx, doc.ID, raw); err != nil {
		return RecordResult{DocumentID: doc.ID, Status: "error", Error: err.Error()}
	}

	p.logger.Info("reprocess.ok",
		"document_id", doc.ID,
		"source", fetched.Source,
		"revenue", result.PLStatement.TotalRevenue,
		"expenses", result.PLStatement.TotalExpenses,
		"net_income", result.PLStatement.NetIncome,
		"transactions", len(result.Transactions),
		"confidence", result.Confidence,
	)
	stmt := result.PLStatement
	return RecordResult{DocumentID: doc.ID, Status: "success", PLStatement: &stmt}
}

// sourcesFor builds the ordered retrieval chain for a record: primary by
// handle, then the secondary public URL over plain HTTP, then the
// authenticated secondary API. Sources with missing identifiers still show
// up in the diagnostic trail.
func (p *Processor) sourcesFor(doc *entity.Document) []FetchSource {
	return []FetchSource{
		{
			Name: "primary-storage",
			Fetch: func(ctx context.Context) ([]byte, string, error) {
				if doc.PrimaryHandle == "" {
					return nil, "", fmt.Errorf("no primary handle on record")
				}
				return p.primary.Get(ctx, doc.PrimaryHandle)
			},
		},
		{
			Name: "secondary-public-url",
			Fetch: func(ctx context.Context) ([]byte, string, error) {
				if doc.SecondaryURL == "" {
					return nil, "", fmt.Errorf("no secondary url on record")
				}
				data, err := storage.FetchPublic(ctx, p.httpClient, doc.SecondaryURL)
				return data, "", err
			},
		},
		{
			Name: "secondary-storage-api",
			Fetch: func(ctx context.Context) ([]byte, string, error) {
				if p.secondary == nil {
					return nil, "", fmt.Errorf("secondary storage not configured")
				}
				if doc.SecondaryPath == "" {
					return nil, "", fmt.Errorf("no secondary path on record")
				}
				data, err := p.secondary.Download(ctx, doc.SecondaryPath)
				return data, "", err
			},
		},
	}
}
