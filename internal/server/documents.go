package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/murphyws/finance-portal/constants"
	"github.com/murphyws/finance-portal/internal/entity"
	"github.com/murphyws/finance-portal/internal/repository"
	"github.com/murphyws/finance-portal/internal/services/upload"
	"github.com/murphyws/finance-portal/internal/storage"
)

type DocumentsHandler struct {
	uploads *upload.Service
	docs    repository.DocumentRepository
	primary storage.PrimaryStore
	logger  *slog.Logger
}

func NewDocumentsHandler(uploads *upload.Service, docs repository.DocumentRepository, primary storage.PrimaryStore, logger *slog.Logger) *DocumentsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentsHandler{uploads: uploads, docs: docs, primary: primary, logger: logger}
}

// documentResponse exposes the analysis blob as raw JSON instead of the
// base64 the []byte field would produce.
type documentResponse struct {
	*entity.Document
	AnalysisResult json.RawMessage `json:"analysisResult,omitempty"`
}

func toResponse(doc *entity.Document) documentResponse {
	return documentResponse{Document: doc, AnalysisResult: doc.AnalysisResult}
}

// Upload handles the multipart intake form. Only missing fields and a
// primary-storage failure produce a non-2xx; secondary-storage and task
// hand-off problems ride back as a warning on a 201.
func (h *DocumentsHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	company := c.PostForm("company")
	month := c.PostForm("month")
	yearStr := c.PostForm("year")
	documentType := c.PostForm("documentType")
	if company == "" || month == "" || yearStr == "" || documentType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "company, month, year and documentType are required"})
		return
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year must be an integer"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded file"})
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
		return
	}

	result, err := h.uploads.Upload(c.Request.Context(), upload.Request{
		Content:      content,
		Filename:     fileHeader.Filename,
		ContentType:  fileHeader.Header.Get("Content-Type"),
		Company:      company,
		Month:        month,
		Year:         year,
		DocumentType: documentType,
		UploadedBy:   c.GetHeader("X-User-ID"),
	})
	if err != nil {
		if errors.Is(err, upload.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("upload failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"document":    toResponse(result.Document),
		"storageType": result.Document.StorageType,
	}
	if result.ManusWarning != "" {
		resp["manusWarning"] = result.ManusWarning
	}
	c.JSON(http.StatusCreated, resp)
}

// List returns document records, optionally filtered by company and status.
func (h *DocumentsHandler) List(c *gin.Context) {
	filter := repository.ListFilter{
		Company: constants.Company(c.Query("company")),
		Status:  constants.ProcessingStatus(c.Query("status")),
		Limit:   100,
	}
	if y := c.Query("year"); y != "" {
		if year, err := strconv.Atoi(y); err == nil {
			filter.Year = year
		}
	}

	docs, err := h.docs.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("list documents failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list documents"})
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toResponse(d))
	}
	c.JSON(http.StatusOK, gin.H{"documents": out, "count": len(out)})
}

// Get returns one record with its analysis blob.
func (h *DocumentsHandler) Get(c *gin.Context) {
	doc, err := h.docs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toResponse(doc))
}

// Download streams the stored bytes for a primary-storage handle with a
// long-lived cache header; stored blobs are immutable.
func (h *DocumentsHandler) Download(c *gin.Context) {
	handle := c.Param("handle")
	data, contentType, err := h.primary.Get(c.Request.Context(), handle)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	if info, err := h.primary.Info(c.Request.Context(), handle); err == nil && info.Filename != "" {
		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", info.Filename))
	}
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, contentType, data)
}
