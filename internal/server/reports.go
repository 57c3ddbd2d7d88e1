package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/murphyws/finance-portal/constants"
	"github.com/murphyws/finance-portal/internal/export"
	"github.com/murphyws/finance-portal/internal/report"
)

type ReportsHandler struct {
	reports *report.Service
	exports *export.Service
	logger  *slog.Logger
}

func NewReportsHandler(reports *report.Service, exports *export.Service, logger *slog.Logger) *ReportsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportsHandler{reports: reports, exports: exports, logger: logger}
}

func (h *ReportsHandler) params(c *gin.Context) (constants.Company, int, bool) {
	company := c.Query("company")
	if !constants.IsValidCompany(company) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown company"})
		return "", 0, false
	}
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil || year <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year must be a positive integer"})
		return "", 0, false
	}
	return constants.Company(company), year, true
}

// YearPL returns the monthly P&L rollup for a company and year.
func (h *ReportsHandler) YearPL(c *gin.Context) {
	company, year, ok := h.params(c)
	if !ok {
		return
	}

	r, err := h.reports.YearPL(c.Request.Context(), company, year)
	if err != nil {
		h.logger.Error("report failed", "company", company, "year", year, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})
		return
	}
	c.JSON(http.StatusOK, r)
}

// ExportYearPL streams the same rollup as an XLSX download.
func (h *ReportsHandler) ExportYearPL(c *gin.Context) {
	company, year, ok := h.params(c)
	if !ok {
		return
	}

	r, err := h.reports.YearPL(c.Request.Context(), company, year)
	if err != nil {
		h.logger.Error("report failed", "company", company, "year", year, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})
		return
	}

	data, err := h.exports.YearPLXLSX(r)
	if err != nil {
		h.logger.Error("export failed", "company", company, "year", year, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export report"})
		return
	}

	filename := fmt.Sprintf("pnl_%s_%d.xlsx", company, year)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
