package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/murphyws/finance-portal/constants"
	"github.com/murphyws/finance-portal/internal/pipeline"
)

type ReprocessHandler struct {
	processor *pipeline.Processor
	logger    *slog.Logger
}

func NewReprocessHandler(processor *pipeline.Processor, logger *slog.Logger) *ReprocessHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReprocessHandler{processor: processor, logger: logger}
}

type reprocessRequest struct {
	DocumentID string `json:"documentId"`
	Company    string `json:"company"`
}

// Reprocess re-runs extraction for one record, a company's eligible records,
// or a capped global batch when neither is given.
func (h *ReprocessHandler) Reprocess(c *gin.Context) {
	var req reprocessRequest
	// an empty body means "global batch"; anything else malformed is a 400
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Company != "" && !constants.IsValidCompany(req.Company) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown company"})
		return
	}

	batch, err := h.processor.Reprocess(c.Request.Context(), req.DocumentID, constants.Company(req.Company))
	if err != nil {
		h.logger.Error("reprocess failed", "document_id", req.DocumentID, "company", req.Company, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, batch)
}
