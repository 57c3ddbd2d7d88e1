package llm

import (
	"context"

	"github.com/murphyws/finance-portal/constants"
)

// ExtractRequest carries a retrieved document and its accounting context to
// the model. Content is the raw file bytes; they are attached inline
// (base64) rather than by reference.
type ExtractRequest struct {
	Content      []byte
	Filename     string
	ContentType  string
	DocumentType constants.DocumentType
	Company      constants.Company
	Month        string
	Year         int
}

// Extractor is the interface the reprocessing pipeline depends on. It returns
// the model's free-form text response; parsing and reconciliation happen in
// the pipeline so they stay testable without a network.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (string, error)
}
